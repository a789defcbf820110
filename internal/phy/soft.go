package phy

import (
	"fmt"
	"io"
	"log/slog"
)

const (
	// DefaultCASPRB is assumed for a detected cell when no override is
	// configured (5 MHz carrier).
	DefaultCASPRB = 25

	// Subframes examined per cell search attempt.
	searchWindowSubframes = 5

	defaultDetectThresholdDB = -40.0
	defaultScheduleFrames    = 8
)

// SampleSource is the engine's view of the RF source: a blocking fetch of
// interleaved complex samples at the currently tuned rate.
type SampleSource interface {
	Samples(buf []complex64) error
	SampleRate() uint32
}

// SoftEngineConfig tunes the soft engine's detection behavior.
type SoftEngineConfig struct {
	// CASNofPRB is the control-region width assigned to a detected cell.
	// Full MIB decoding is out of scope for the soft engine, so the width
	// comes from configuration. Zero means DefaultCASPRB.
	CASNofPRB uint32

	// BroadcastPRB, when non-zero and wider than CASNofPRB, is reported as
	// the broadcast-region width once the schedule is known. This models the
	// SIB-signaled MBSFN widening on 6/7/8 MHz carriers.
	BroadcastPRB uint32

	// DetectThresholdDB is the mean power (dBFS) above which a carrier is
	// considered present.
	DetectThresholdDB float64

	// ScheduleAfterFrames is the number of control subframes that must be
	// delivered before BroadcastScheduleKnown reports true.
	ScheduleAfterFrames int

	CellID            uint32
	AreaID            uint16
	SubcarrierSpacing SubcarrierSpacing

	// Services is the traffic sub-channel list reported once the schedule is
	// known. A DSP-backed engine decodes this from the MCCH; the soft engine
	// takes it from configuration.
	Services []MTCH
}

// WithSoftEngineLogger sets the logger for a SoftEngine.
func WithSoftEngineLogger(logger *slog.Logger) func(*SoftEngine) {
	return func(e *SoftEngine) {
		e.logger = logger.With(slog.String("component", "phy"))
	}
}

// SoftEngine implements Engine with measurement-grade signal statistics:
// energy detection for cell search and timing lock, frame slicing by sample
// count. Production deployments substitute a DSP-backed Engine behind the
// same interface; the soft engine keeps the acquisition core exercisable end
// to end on live hardware and capture files.
type SoftEngine struct {
	cfg SoftEngineConfig
	src SampleSource

	logger *slog.Logger

	cellFound bool
	cell      Cell
	mbsfnPRB  uint32

	tti           uint32
	controlFrames int
	noiseFloorDB  float64

	scratch []complex64
}

// NewSoftEngine creates a soft engine reading from src.
func NewSoftEngine(src SampleSource, cfg SoftEngineConfig, options ...func(*SoftEngine)) *SoftEngine {
	if cfg.CASNofPRB == 0 {
		cfg.CASNofPRB = DefaultCASPRB
	}
	if cfg.DetectThresholdDB == 0 {
		cfg.DetectThresholdDB = defaultDetectThresholdDB
	}
	if cfg.ScheduleAfterFrames == 0 {
		cfg.ScheduleAfterFrames = defaultScheduleFrames
	}

	e := SoftEngine{
		cfg:    cfg,
		src:    src,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&e)
	}

	return &e
}

func (e *SoftEngine) subframeLen() int {
	return SubframeSamples(e.src.SampleRate())
}

func (e *SoftEngine) readSubframe(buf []complex64) ([]complex64, error) {
	n := e.subframeLen()
	if n == 0 || n > len(buf) {
		return nil, fmt.Errorf("subframe of %d samples does not fit buffer of %d", n, len(buf))
	}
	if err := e.src.Samples(buf[:n]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSamples, err)
	}
	return buf[:n], nil
}

func (e *SoftEngine) scratchBuf() []complex64 {
	if n := e.subframeLen(); len(e.scratch) < n {
		e.scratch = make([]complex64, n)
	}
	return e.scratch
}

func (e *SoftEngine) CellSearch() error {
	powers := make([]float64, 0, searchWindowSubframes)
	for i := 0; i < searchWindowSubframes; i++ {
		sf, err := e.readSubframe(e.scratchBuf())
		if err != nil {
			return err
		}
		powers = append(powers, PowerDBFS(sf))
	}

	mean := MeanPowerDB(powers)
	if mean < e.cfg.DetectThresholdDB {
		return ErrNoCell
	}

	e.cellFound = true
	e.cell = Cell{
		ID:       e.cfg.CellID,
		NofPRB:   e.cfg.CASNofPRB,
		MbsfnPRB: e.cfg.CASNofPRB,
		NofPorts: 1,
	}
	e.mbsfnPRB = e.cfg.CASNofPRB
	e.noiseFloorDB = NoiseFloorDB(powers)
	e.controlFrames = 0

	e.logger.Debug("carrier detected",
		slog.Float64("meanPowerDB", mean),
		slog.Float64("noiseFloorDB", e.noiseFloorDB))

	return nil
}

func (e *SoftEngine) SynchronizeSubframe() error {
	sf, err := e.readSubframe(e.scratchBuf())
	if err != nil {
		return err
	}
	if PowerDBFS(sf) < e.cfg.DetectThresholdDB {
		return ErrNoSync
	}
	return nil
}

func (e *SoftEngine) NextFrame(buf []complex64) error {
	if _, err := e.readSubframe(buf); err != nil {
		return err
	}

	e.tti = (e.tti + 1) % MaxTTI
	if e.IsControlSubframe(e.tti) && e.controlFrames < e.cfg.ScheduleAfterFrames {
		e.controlFrames++
	}
	return nil
}

// IsControlSubframe reports CAS subframes: subframe 0 of every fourth radio
// frame on a dedicated FeMBMS carrier.
func (e *SoftEngine) IsControlSubframe(tti uint32) bool {
	return tti%40 == 0
}

func (e *SoftEngine) IsBroadcastSubframe(tti uint32) bool {
	return !e.IsControlSubframe(tti)
}

func (e *SoftEngine) BroadcastScheduleKnown() bool {
	return e.cellFound && e.controlFrames >= e.cfg.ScheduleAfterFrames
}

func (e *SoftEngine) TTI() uint32 {
	return e.tti
}

func (e *SoftEngine) Cell() Cell {
	return e.cell
}

func (e *SoftEngine) NumResourceBlocks() uint32 {
	return e.cell.NofPRB
}

func (e *SoftEngine) NumBroadcastResourceBlocks() uint32 {
	if e.BroadcastScheduleKnown() && e.cfg.BroadcastPRB > e.cell.NofPRB {
		return e.cfg.BroadcastPRB
	}
	return e.mbsfnPRB
}

func (e *SoftEngine) SetBroadcastResourceBlocks(n uint32) {
	e.mbsfnPRB = n
}

func (e *SoftEngine) ApplyCellConfig() {
	e.mbsfnPRB = e.NumBroadcastResourceBlocks()
	e.cell.MbsfnPRB = e.mbsfnPRB
	e.scratch = nil // rate may have changed, resize on next read
}

func (e *SoftEngine) BroadcastAreaID() uint16 {
	return e.cfg.AreaID
}

func (e *SoftEngine) BroadcastSubcarrierSpacing() SubcarrierSpacing {
	return e.cfg.SubcarrierSpacing
}

func (e *SoftEngine) BroadcastServices() []MTCH {
	if !e.BroadcastScheduleKnown() {
		return nil
	}
	return e.cfg.Services
}

func (e *SoftEngine) Reset() {
	e.cellFound = false
	e.cell = Cell{}
	e.mbsfnPRB = 0
	e.tti = 0
	e.controlFrames = 0
}
