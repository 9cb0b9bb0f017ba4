// Package quantize implements EVEC's C4 component: an elementwise
// min/max scalar quantizer (SQ8) and a fixed-sign binary quantizer,
// both trained without any learned parameters per spec.md's
// "training of learned quantizers" non-goal.
package quantize

import "github.com/calvinalkan/evec/errs"

// SQ8 holds the trained (min, max) range used to map f32 components
// to u8 codes and back. Quantize/Dequantize are idempotent over the
// trained range: dequantize(quantize(x)) reproduces x to within one
// quantization step.
type SQ8 struct {
	Min, Max float32
}

// TrainSQ8 computes the elementwise min/max across a batch of
// equal-length vectors, used to initialize a SQ8 quantizer.
func TrainSQ8(batch [][]float32) SQ8 {
	if len(batch) == 0 || len(batch[0]) == 0 {
		return SQ8{}
	}

	min, max := batch[0][0], batch[0][0]

	for _, vec := range batch {
		for _, x := range vec {
			if x < min {
				min = x
			}

			if x > max {
				max = x
			}
		}
	}

	return SQ8{Min: min, Max: max}
}

// Quantize maps dst[i] = round(clamp(src[i], min, max) - min) / (max -
// min) * 255). If Min == Max (degenerate trained range), every code is
// 0.
func (q SQ8) Quantize(dst []uint8, src []float32) {
	span := q.Max - q.Min
	if span == 0 {
		for i := range src {
			dst[i] = 0
		}

		return
	}

	for i, x := range src {
		if x < q.Min {
			x = q.Min
		}

		if x > q.Max {
			x = q.Max
		}

		dst[i] = uint8(roundHalfAwayFromZero((x - q.Min) / span * 255))
	}
}

// Dequantize maps dst[i] = min + code[i] * (max - min) / 255.
func (q SQ8) Dequantize(dst []float32, codes []uint8) {
	span := q.Max - q.Min

	for i, c := range codes {
		dst[i] = q.Min + float32(c)*span/255
	}
}

func roundHalfAwayFromZero(x float32) float32 {
	if x >= 0 {
		return float32(int32(x + 0.5))
	}

	return float32(int32(x - 0.5))
}

// BinaryQuantize sign-quantizes src into dst, a dim/8-byte packed bit
// array: bit i of byte i/8 is 1 iff src[i] > 0. dim must be a multiple
// of 8.
func BinaryQuantize(dst []byte, src []float32) error {
	if len(src)%8 != 0 {
		return errs.ErrInvalidConfig
	}

	if len(dst) != len(src)/8 {
		return &errs.DimensionMismatchError{Expected: len(src) / 8, Actual: len(dst)}
	}

	for i := range dst {
		dst[i] = 0
	}

	for i, x := range src {
		if x > 0 {
			dst[i/8] |= 1 << uint(i%8)
		}
	}

	return nil
}
