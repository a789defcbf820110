package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultLogLevel         = "info"
	defaultSearchSampleRate = 7_680_000
	defaultBandwidth        = 6_000_000
	defaultThreads          = 4
	defaultIntervalSecs     = 5
)

// Config represents the main application configuration
type Config struct {
	Settings    Settings          `yaml:"settings"`
	SDR         SDRConfig         `yaml:"sdr"`
	Phy         PhyConfig         `yaml:"phy"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`

	// SCHED_RR priorities. Zero leaves a thread at the default policy. The
	// control thread must outrank the decode workers.
	MainThreadPriority int `yaml:"mainThreadPriority"`
	PoolThreadPriority int `yaml:"poolThreadPriority"`
}

// SDRConfig represents the RF frontend settings
type SDRConfig struct {
	DeviceArgs string `yaml:"deviceArgs"`
	Antenna    string `yaml:"antenna"`

	// CenterFrequencies are tried in order until one tunes.
	CenterFrequencies []uint32 `yaml:"centerFrequencies"`

	SearchSampleRate uint32  `yaml:"searchSampleRate"`
	Bandwidth        uint32  `yaml:"bandwidth"`
	Gain             float64 `yaml:"gain"`
	AGC              bool    `yaml:"agc"`
	BufferSamples    int     `yaml:"bufferSamples"`

	CaptureFile         string `yaml:"captureFile"`
	CaptureBandwidthMHz uint32 `yaml:"captureBandwidthMHz"`
	WriteCaptureFile    string `yaml:"writeCaptureFile"`
}

// PhyConfig represents physical layer settings
type PhyConfig struct {
	// Threads is the decode worker pool size.
	Threads int `yaml:"threads"`

	// MbsfnProcessors is the number of broadcast processor slots. Defaults to
	// Threads and must not exceed it.
	MbsfnProcessors int `yaml:"mbsfnProcessors"`

	// NofPRB overrides the control region width of a detected cell.
	NofPRB uint32 `yaml:"nofPrb"`

	// BroadcastPrb sets the broadcast region width reported once the
	// schedule is known. Wider than the cell triggers the mid-stream
	// retune.
	BroadcastPrb uint32 `yaml:"broadcastPrb"`

	CellID       uint32 `yaml:"cellId"`
	SyncAttempts int    `yaml:"syncAttempts"`

	// Services is the traffic sub-channel listing reported for the
	// broadcast channel once the schedule is known.
	Services []ServiceConfig `yaml:"services"`
}

// ServiceConfig describes one broadcast service.
type ServiceConfig struct {
	LCID uint32 `yaml:"lcid"`
	TMGI string `yaml:"tmgi"`
	Dest string `yaml:"dest"`
}

// MeasurementConfig represents the quality measurement settings
type MeasurementConfig struct {
	IntervalSecs uint32 `yaml:"intervalSecs"`
	Database     string `yaml:"database"`
}

// MonitoringConfig represents the monitoring HTTP API settings
type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoadConfig reads, parses and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err = config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaultLogLevel
	}

	if len(c.SDR.CenterFrequencies) == 0 {
		return fmt.Errorf("at least one center frequency must be configured")
	}
	if c.SDR.SearchSampleRate == 0 {
		c.SDR.SearchSampleRate = defaultSearchSampleRate
	}
	if c.SDR.Bandwidth == 0 {
		c.SDR.Bandwidth = defaultBandwidth
	}
	if c.SDR.CaptureFile != "" && c.SDR.CaptureBandwidthMHz == 0 {
		return fmt.Errorf("captureFile requires captureBandwidthMHz: the playback bandwidth cannot be derived from the file")
	}

	if c.Phy.Threads <= 0 {
		c.Phy.Threads = defaultThreads
	}
	if c.Phy.MbsfnProcessors <= 0 {
		c.Phy.MbsfnProcessors = c.Phy.Threads
	}
	if c.Phy.MbsfnProcessors > c.Phy.Threads {
		return fmt.Errorf("mbsfnProcessors (%d) cannot exceed threads (%d): every in-flight decode needs a free worker",
			c.Phy.MbsfnProcessors, c.Phy.Threads)
	}

	if c.Measurement.IntervalSecs == 0 {
		c.Measurement.IntervalSecs = defaultIntervalSecs
	}

	if c.Monitoring.Enabled && c.Monitoring.Listen == "" {
		return fmt.Errorf("monitoring is enabled but no listen address is configured")
	}

	return nil
}
