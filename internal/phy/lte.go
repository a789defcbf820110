package phy

// Subframes per TTI wrap: 1024 system frames of 10 subframes each.
const (
	MaxTTI          = 10240
	SubframesPerSec = 1000

	// PRBBandwidthHz is the nominal channel width contributed by one
	// resource block (180 kHz occupied plus guard, 200 kHz raster).
	PRBBandwidthHz = 200_000
)

// fftSizes are the supported symbol sizes, in ascending order. The sampling
// frequency for a carrier is the subcarrier spacing times the symbol size.
var fftSizes = []uint32{128, 256, 512, 576, 768, 1024, 1152, 1536, 2048}

// SymbolSize returns the smallest supported FFT size able to carry nofPRB
// resource blocks (12 subcarriers each) with standard guard overhead, or 0
// when the width is not representable.
func SymbolSize(nofPRB uint32) uint32 {
	need := nofPRB * 12 * 4 / 3
	for _, sz := range fftSizes {
		if sz >= need {
			return sz
		}
	}
	return 0
}

// SamplingFrequency returns the sample rate in Hz required to receive a
// carrier of nofPRB resource blocks at 15 kHz subcarrier spacing, or 0 when
// the width is not representable.
//
// The standard widths map as 6 PRB -> 1.92 MHz, 15 -> 3.84, 25 -> 7.68,
// 50 -> 15.36, 75 -> 23.04 and 100 -> 30.72 MHz.
func SamplingFrequency(nofPRB uint32) uint32 {
	return SymbolSize(nofPRB) * 15_000
}

// ChannelBandwidth returns the nominal occupied bandwidth in Hz of a carrier
// of nofPRB resource blocks.
func ChannelBandwidth(nofPRB uint32) uint32 {
	return nofPRB * PRBBandwidthHz
}

// SubframeSamples returns the number of complex samples in one 1 ms subframe
// at the given sample rate.
func SubframeSamples(sampleRate uint32) int {
	return int(sampleRate / SubframesPerSec)
}

// PRBForBandwidthMHz converts a channel bandwidth in MHz to the resource
// block count of its CAS region (5 MHz -> 25 PRB).
func PRBForBandwidthMHz(mhz uint32) uint32 {
	return mhz * 5
}
