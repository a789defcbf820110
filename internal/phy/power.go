package phy

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// PowerDBFS returns the mean sample power of buf in dB relative to full
// scale. Returns -inf for an empty buffer.
func PowerDBFS(buf []complex64) float64 {
	if len(buf) == 0 {
		return math.Inf(-1)
	}

	var acc float64
	for _, s := range buf {
		re, im := float64(real(s)), float64(imag(s))
		acc += re*re + im*im
	}

	return 10 * math.Log10(acc/float64(len(buf))+1e-30)
}

// NoiseFloorDB estimates the noise floor from a set of per-window power
// readings as the first decile of the distribution.
func NoiseFloorDB(powers []float64) float64 {
	if len(powers) == 0 {
		return math.Inf(-1)
	}

	sorted := make([]float64, len(powers))
	copy(sorted, powers)
	sort.Float64s(sorted)

	return stat.Quantile(0.1, stat.Empirical, sorted, nil)
}

// MeanPowerDB returns the mean of a set of per-window power readings.
func MeanPowerDB(powers []float64) float64 {
	if len(powers) == 0 {
		return math.Inf(-1)
	}
	return stat.Mean(powers, nil)
}
