//go:build !amd64 && !arm64

package simdcap

func hasAVX2() bool {
	return false
}

func hasNEON() bool {
	return false
}
