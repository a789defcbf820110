package sdr

import (
	"encoding/binary"
	"math"
)

// The wire and file format for IQ data is CF32: interleaved little-endian
// 4-byte floats, I then Q, 8 bytes per complex sample.
const BytesPerSample = 8

// DecodeCF32 converts len(src)/8 samples from src into dst and returns the
// number of samples decoded. Trailing partial samples in src are ignored.
func DecodeCF32(dst []complex64, src []byte) int {
	n := min(len(dst), len(src)/BytesPerSample)
	for i := 0; i < n; i++ {
		re := math.Float32frombits(binary.LittleEndian.Uint32(src[i*BytesPerSample:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(src[i*BytesPerSample+4:]))
		dst[i] = complex(re, im)
	}
	return n
}

// EncodeCF32 serializes samples into dst, which must hold at least
// len(src)*8 bytes, and returns the number of bytes written.
func EncodeCF32(dst []byte, src []complex64) int {
	for i, s := range src {
		binary.LittleEndian.PutUint32(dst[i*BytesPerSample:], math.Float32bits(real(s)))
		binary.LittleEndian.PutUint32(dst[i*BytesPerSample+4:], math.Float32bits(imag(s)))
	}
	return len(src) * BytesPerSample
}
