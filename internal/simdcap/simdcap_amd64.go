package simdcap

import "golang.org/x/sys/cpu"

func hasAVX2() bool {
	return cpu.X86.HasAVX2
}

func hasNEON() bool {
	return false
}
