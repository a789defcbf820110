// Package soapy drives a SoapySDR-compatible device through the rx_sdr
// streaming binary from rx_tools, the same way other receivers in this family
// shell out to rtl_power or hackrf_sweep. The process writes CF32 samples to
// stdout at the tuned rate.
package soapy

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rt-wireless/mbms-modem/internal/sdr"
	"github.com/rt-wireless/mbms-modem/internal/sdr/driver"
)

const (
	Runtime     = "rx_sdr"
	EnumRuntime = "SoapySDRUtil"
	Device      = "SoapySDR"
)

// Config selects the device rx_sdr attaches to.
type Config struct {
	// DeviceArgs is the SoapySDR device selection string,
	// e.g. "driver=lime".
	DeviceArgs string `yaml:"deviceArgs"`
}

// handler builds rx_sdr invocations for the tuned parameters.
type handler struct {
	binPath string
	config  *Config
}

// New creates a SoapySDR device handler.
func New(config *Config) (sdr.Handler, error) {
	binPath, err := driver.FindRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("error finding runtime: %w", err)
	}

	return &handler{binPath, config}, nil
}

// Cmd returns an exec.Cmd streaming CF32 samples for the given parameters.
func (h handler) Cmd(ctx context.Context, p sdr.TuneParams) *exec.Cmd {
	return exec.CommandContext(ctx, h.binPath, Args(h.config, p)...)
}

func (h handler) Device() string {
	return Device
}

// Args builds the rx_sdr argument list for the given parameters.
func Args(config *Config, p sdr.TuneParams) []string {
	args := []string{
		"-f", fmt.Sprintf("%d", p.Frequency),
		"-s", fmt.Sprintf("%d", p.SampleRate),
		"-F", "CF32",
	}

	if config != nil && config.DeviceArgs != "" {
		args = append(args, "-d", config.DeviceArgs)
	}
	if p.Bandwidth > 0 {
		args = append(args, "-b", fmt.Sprintf("%d", p.Bandwidth))
	}
	if p.Antenna != "" {
		args = append(args, "-a", p.Antenna)
	}
	if p.AGC {
		args = append(args, "-g", "auto")
	} else {
		// rx_sdr expects gain in dB; the normalized [0..1] system gain maps
		// onto a 0-60 dB range.
		args = append(args, "-g", fmt.Sprintf("%.1f", p.Gain*60))
	}

	args = append(args, "-") // stream to stdout
	return args
}

// Enumerate lists the SDR devices visible to SoapySDR.
func Enumerate(ctx context.Context) (string, error) {
	binPath, err := driver.FindRuntime(EnumRuntime)
	if err != nil {
		return "", fmt.Errorf("error finding runtime: %w", err)
	}

	out, err := exec.CommandContext(ctx, binPath, "--find").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("enumerating devices: %w", err)
	}

	return string(out), nil
}
