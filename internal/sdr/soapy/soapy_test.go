package soapy

import (
	"slices"
	"testing"

	"github.com/rt-wireless/mbms-modem/internal/sdr"
)

func TestArgs(t *testing.T) {
	config := &Config{DeviceArgs: "driver=lime"}
	params := sdr.TuneParams{
		Frequency:  738_000_000,
		SampleRate: 7_680_000,
		Bandwidth:  6_000_000,
		Gain:       0.5,
		Antenna:    "LNAW",
	}

	args := Args(config, params)

	expected := []string{
		"-f", "738000000",
		"-s", "7680000",
		"-F", "CF32",
		"-d", "driver=lime",
		"-b", "6000000",
		"-a", "LNAW",
		"-g", "30.0",
		"-",
	}
	if !slices.Equal(args, expected) {
		t.Errorf("Expected args %v, got %v", expected, args)
	}
}

func TestArgs_AGC(t *testing.T) {
	args := Args(nil, sdr.TuneParams{
		Frequency:  738_000_000,
		SampleRate: 7_680_000,
		AGC:        true,
	})

	expected := []string{
		"-f", "738000000",
		"-s", "7680000",
		"-F", "CF32",
		"-g", "auto",
		"-",
	}
	if !slices.Equal(args, expected) {
		t.Errorf("Expected args %v, got %v", expected, args)
	}
}
