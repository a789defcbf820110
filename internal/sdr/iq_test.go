package sdr

import "testing"

func TestCF32RoundTrip(t *testing.T) {
	samples := []complex64{
		complex(0.5, -0.25),
		complex(-1, 1),
		complex(0, 0.125),
	}

	wire := make([]byte, len(samples)*BytesPerSample)
	if n := EncodeCF32(wire, samples); n != len(wire) {
		t.Fatalf("Expected %d bytes encoded, got %d", len(wire), n)
	}

	decoded := make([]complex64, len(samples))
	if n := DecodeCF32(decoded, wire); n != len(samples) {
		t.Fatalf("Expected %d samples decoded, got %d", len(samples), n)
	}

	for i := range samples {
		if decoded[i] != samples[i] {
			t.Errorf("Expected sample %v at %d, got %v", samples[i], i, decoded[i])
		}
	}
}

func TestDecodeCF32_PartialSample(t *testing.T) {
	wire := make([]byte, BytesPerSample+3) // one full sample plus a fragment

	decoded := make([]complex64, 4)
	if n := DecodeCF32(decoded, wire); n != 1 {
		t.Fatalf("Expected 1 sample from a partial buffer, got %d", n)
	}
}

func TestDecodeCF32_DstLimits(t *testing.T) {
	wire := make([]byte, 4*BytesPerSample)

	decoded := make([]complex64, 2)
	if n := DecodeCF32(decoded, wire); n != 2 {
		t.Fatalf("Expected decode limited to dst size 2, got %d", n)
	}
}
