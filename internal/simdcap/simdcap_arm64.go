package simdcap

// NEON is part of the baseline arm64 ABI; no runtime probe is needed.
func hasNEON() bool {
	return true
}

func hasAVX2() bool {
	return false
}
