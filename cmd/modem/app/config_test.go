package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_BroadcastRegion(t *testing.T) {
	path := writeConfig(t, `
sdr:
  centerFrequencies: [738000000]
phy:
  nofPrb: 25
  broadcastPrb: 40
  services:
    - lcid: 1
      tmgi: "000001f123"
      dest: "239.0.0.1:5000"
    - lcid: 2
      tmgi: "000002f123"
      dest: "239.0.0.2:5000"
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Phy.BroadcastPrb != 40 {
		t.Errorf("Expected broadcastPrb 40, got %d", config.Phy.BroadcastPrb)
	}
	if len(config.Phy.Services) != 2 {
		t.Fatalf("Expected 2 services, got %d", len(config.Phy.Services))
	}
	svc := config.Phy.Services[0]
	if svc.LCID != 1 || svc.TMGI != "000001f123" || svc.Dest != "239.0.0.1:5000" {
		t.Errorf("Unexpected first service: %+v", svc)
	}
}

func TestLoadConfig_CaptureFileRequiresBandwidth(t *testing.T) {
	path := writeConfig(t, `
sdr:
  centerFrequencies: [738000000]
  captureFile: samples.cf32
`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("Expected an error for a capture file without a bandwidth")
	} else if !strings.Contains(err.Error(), "captureBandwidthMHz") {
		t.Errorf("Expected the error to name captureBandwidthMHz, got %q", err.Error())
	}

	path = writeConfig(t, `
sdr:
  centerFrequencies: [738000000]
  captureFile: samples.cf32
  captureBandwidthMHz: 8
`)
	if _, err := LoadConfig(path); err != nil {
		t.Fatalf("Expected a capture file with a bandwidth to validate, got %v", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
sdr:
  centerFrequencies: [738000000]
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Settings.LogLevel != defaultLogLevel {
		t.Errorf("Expected log level %q, got %q", defaultLogLevel, config.Settings.LogLevel)
	}
	if config.SDR.SearchSampleRate != defaultSearchSampleRate {
		t.Errorf("Expected search sample rate %d, got %d", defaultSearchSampleRate, config.SDR.SearchSampleRate)
	}
	if config.Phy.Threads != defaultThreads {
		t.Errorf("Expected %d threads, got %d", defaultThreads, config.Phy.Threads)
	}
	if config.Phy.MbsfnProcessors != config.Phy.Threads {
		t.Errorf("Expected mbsfnProcessors to default to threads, got %d", config.Phy.MbsfnProcessors)
	}
}
