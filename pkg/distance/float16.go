package distance

import "github.com/x448/float16"

// ToFloat16 narrows a vector to IEEE 754 half precision bit patterns.
func ToFloat16(vec []float32) []uint16 {
	out := make([]uint16, len(vec))
	for i, v := range vec {
		out[i] = float16.Fromfloat32(v).Bits()
	}
	return out
}

// FromFloat16 widens half precision bit patterns back to float32.
func FromFloat16(bits []uint16) []float32 {
	out := make([]float32, len(bits))
	for i, b := range bits {
		out[i] = float16.Frombits(b).Float32()
	}
	return out
}
