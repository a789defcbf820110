// Package receiver implements the acquisition state machine and the
// real-time frame dispatch loop: find a cell, lock subframe timing, pull one
// frame per TTI from the sample stream and hand it to the right processor,
// detect loss of synchronization, and retune mid-stream when the broadcast
// region turns out wider than the control channel.
package receiver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dustin/go-humanize"

	"github.com/rt-wireless/mbms-modem/internal/frameproc"
	"github.com/rt-wireless/mbms-modem/internal/monitoring"
	"github.com/rt-wireless/mbms-modem/internal/phy"
	"github.com/rt-wireless/mbms-modem/internal/pool"
	"github.com/rt-wireless/mbms-modem/internal/sdr"
)

// State is the receiver's acquisition state. Only the control goroutine
// mutates it.
type State int

const (
	StateSearching State = iota
	StateSyncing
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateSyncing:
		return "syncing"
	case StateProcessing:
		return "processing"
	default:
		return "searching"
	}
}

const (
	// DefaultSyncAttempts bounds the subframe synchronization tries before
	// falling back to searching.
	DefaultSyncAttempts = 200

	// DefaultBackoff is the wait after any recoverable failure.
	DefaultBackoff = time.Second

	// guard margin applied over the nominal channel width when computing the
	// low pass filter bandwidth: 20%.
	bandwidthGuardNum = 6
	bandwidthGuardDen = 5
)

// RFSource is the subset of the RF source contract the control loop drives.
// Tune is only valid on a stopped source.
type RFSource interface {
	Start() error
	Stop() error
	Tune(p sdr.TuneParams) error
	ClearBuffer()
	EnableCaptureWrite()
	DisableCaptureWrite()
}

// Stack is the protocol-stack entry point above the physical layer. The
// receiver only ever resets it to a clean state.
type Stack interface {
	Reset()
}

// MeasurementSink persists one quality snapshot per measurement interval.
// Sink failures are logged and never affect acquisition.
type MeasurementSink interface {
	Append(ctx context.Context, s monitoring.Snapshot) error
}

// Config carries the acquisition parameters.
type Config struct {
	// Frequencies is the ordered list of candidate center frequencies in Hz;
	// they are tried in order, stopping at the first that tunes.
	Frequencies []uint32

	SearchSampleRate uint32 // sample rate used while searching, Hz
	Bandwidth        uint32 // initial low pass filter bandwidth, Hz
	Gain             float64
	Antenna          string
	AGC              bool

	// CaptureBandwidthMHz declares the channel width of a capture file being
	// played back. Non-zero selects capture mode: the operating rate stays at
	// the file's native rate and the engine decodes a narrow CAS inside the
	// wider channel.
	CaptureBandwidthMHz uint32

	// Workers is the pool size. Must be at least the number of broadcast
	// processor slots so no two in-flight tasks ever share a slot.
	Workers int

	MainPriority   int // SCHED_RR priority of the control goroutine
	WorkerPriority int // SCHED_RR priority of pool workers, below MainPriority

	SyncAttempts        int
	Backoff             time.Duration
	MeasurementInterval uint32 // processing-loop ticks between quality reports
}

// WithLogger sets the logger for the receiver.
func WithLogger(logger *slog.Logger) func(*Receiver) {
	return func(r *Receiver) {
		r.logger = logger.With(slog.String("component", "receiver"))
	}
}

// WithMetrics publishes state and quality to the given collector.
func WithMetrics(collector *monitoring.Collector) func(*Receiver) {
	return func(r *Receiver) {
		r.metrics = collector
	}
}

// WithMeasurementSink persists periodic quality snapshots.
func WithMeasurementSink(sink MeasurementSink) func(*Receiver) {
	return func(r *Receiver) {
		r.sink = sink
	}
}

// Receiver owns the acquisition state machine. All fields are control-
// goroutine private except the parameter store and the counters, which have
// their own locking.
type Receiver struct {
	cfg Config

	src    RFSource
	engine phy.Engine
	stack  Stack

	cas   *frameproc.CasProcessor
	mbsfn []*frameproc.MbsfnProcessor
	pool  *pool.Pool

	params   *monitoring.ParamStore
	counters *monitoring.Counters
	metrics  *monitoring.Collector
	sink     MeasurementSink

	state State
	rf    sdr.TuneParams

	freqIdx  int
	casPRB   uint32
	mbsfnPRB uint32
	tti      uint32
	tick     uint32
	mbIdx    int
	gen      uint64
	fatal    error

	bo    *backoff.ConstantBackOff
	sleep func(time.Duration)

	logger *slog.Logger
}

// New creates a receiver and its worker pool.
func New(
	cfg Config,
	src RFSource,
	engine phy.Engine,
	stack Stack,
	cas *frameproc.CasProcessor,
	mbsfn []*frameproc.MbsfnProcessor,
	params *monitoring.ParamStore,
	counters *monitoring.Counters,
	options ...func(*Receiver),
) (*Receiver, error) {
	if len(cfg.Frequencies) == 0 {
		return nil, fmt.Errorf("at least one center frequency is required")
	}
	if cfg.SearchSampleRate == 0 {
		return nil, fmt.Errorf("search sample rate is required")
	}
	if len(mbsfn) == 0 {
		return nil, fmt.Errorf("at least one broadcast processor is required")
	}
	if cfg.Workers < len(mbsfn) {
		return nil, fmt.Errorf("worker count %d is below the broadcast slot count %d", cfg.Workers, len(mbsfn))
	}
	if cfg.SyncAttempts <= 0 {
		cfg.SyncAttempts = DefaultSyncAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}

	r := Receiver{
		cfg:      cfg,
		src:      src,
		engine:   engine,
		stack:    stack,
		cas:      cas,
		mbsfn:    mbsfn,
		params:   params,
		counters: counters,
		state:    StateSearching,
		bo:       backoff.NewConstantBackOff(cfg.Backoff),
		sleep:    time.Sleep,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	var err error
	if r.pool, err = pool.New(cfg.Workers, cfg.WorkerPriority, r.runTask, pool.WithLogger(r.logger)); err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	return &r, nil
}

// State returns the current acquisition state. Control goroutine only;
// exposed for tests and for the monitoring callback wiring.
func (r *Receiver) State() State {
	return r.state
}

// Run drives the state machine until the context is cancelled or a fatal
// dispatch failure occurs.
func (r *Receiver) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	r.logger.Info("raising control thread to realtime scheduling priority",
		slog.Int("priority", r.cfg.MainPriority))
	if err := pool.SetRealtime(r.cfg.MainPriority); err != nil {
		r.logger.Warn(fmt.Sprintf("cannot set control thread priority to realtime: %s. Thread will run at default priority.", err.Error()))
	}

	if err := r.tuneInitial(); err != nil {
		return err
	}

	r.setState(StateSearching)

	for ctx.Err() == nil && r.fatal == nil {
		switch r.state {
		case StateSearching:
			r.stepSearching()
		case StateSyncing:
			r.stepSyncing()
		case StateProcessing:
			r.stepProcessing(ctx)
		}
	}

	r.pool.Close()
	return r.fatal
}

// tuneInitial walks the candidate frequency list in order and starts the
// source on the first frequency that tunes. Exhausting the list is a
// deployment fault, not a transient RF condition.
func (r *Receiver) tuneInitial() error {
	r.rf = sdr.TuneParams{
		SampleRate: r.cfg.SearchSampleRate,
		Bandwidth:  r.cfg.Bandwidth,
		Gain:       r.cfg.Gain,
		Antenna:    r.cfg.Antenna,
		AGC:        r.cfg.AGC,
	}

	for i, freq := range r.cfg.Frequencies {
		r.rf.Frequency = freq
		if err := r.src.Tune(r.rf); err != nil {
			r.logger.Warn(fmt.Sprintf("failed to set center frequency %d: %s", freq, err.Error()))
			continue
		}

		r.freqIdx = i
		if err := r.src.Start(); err != nil {
			return fmt.Errorf("starting source: %w", err)
		}
		return nil
	}

	return fmt.Errorf("unable to tune any configured center frequency")
}

func (r *Receiver) setState(s State) {
	if r.state != s {
		r.logger.Info("state transition",
			slog.String("from", r.state.String()),
			slog.String("to", s.String()))
	}
	r.state = s
	r.metrics.SetState(int(s))
}

// wait sleeps out the recoverable-failure backoff.
func (r *Receiver) wait() {
	r.sleep(r.bo.NextBackOff())
}

func guardBandwidth(prb uint32) uint32 {
	return phy.ChannelBandwidth(prb) / bandwidthGuardDen * bandwidthGuardNum
}

func humanHz(hz uint32) string {
	v, suffix := humanize.ComputeSI(float64(hz))
	return fmt.Sprintf("%.2f %sHz", v, suffix)
}
