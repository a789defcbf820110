package frameproc

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rt-wireless/mbms-modem/internal/monitoring"
	"github.com/rt-wireless/mbms-modem/internal/phy"
)

// MCCH repetition pattern assumed by the measurement-grade decode: subframe
// 8 of every 32nd radio frame carries the broadcast control channel.
const (
	mcchTTIPeriod = 320
	mcchTTIOffset = 8
)

// WithMbsfnLogger sets the logger for an MBSFN processor.
func WithMbsfnLogger(logger *slog.Logger) func(*MbsfnProcessor) {
	return func(p *MbsfnProcessor) {
		p.logger = logger.With(
			slog.String("processor", "mbsfn"),
			slog.Int("index", p.index))
	}
}

// MbsfnProcessor decodes broadcast (MBSFN) subframes. N instances exist, one
// per pool worker; the control loop hands them subframes round-robin.
//
// A processor starts locked and becomes eligible for work only once the
// receiver unlocks it after subframe synchronization.
type MbsfnProcessor struct {
	slot
	quality quality

	index int

	mu         sync.Mutex
	cell       phy.Cell
	gen        uint64
	configured bool
	areaID     uint16
	spacing    phy.SubcarrierSpacing

	counters *monitoring.Counters
	logger   *slog.Logger
}

// NewMbsfnProcessor creates the idx-th MBSFN processor reporting into
// counters.
func NewMbsfnProcessor(idx int, counters *monitoring.Counters, options ...func(*MbsfnProcessor)) *MbsfnProcessor {
	p := MbsfnProcessor{
		index:    idx,
		counters: counters,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}

	return &p
}

// Init allocates the receive buffer and leaves the slot locked; no work is
// accepted until Unlock.
func (p *MbsfnProcessor) Init() error {
	if p.counters == nil {
		return fmt.Errorf("counter registry is required")
	}

	p.slot.init()
	p.slot.acquire() // locked until synchronization succeeds
	return nil
}

// SetCell installs the cell parameters under the given geometry generation.
// Changing the cell invalidates the broadcast-area configuration.
func (p *MbsfnProcessor) SetCell(cell phy.Cell, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cell = cell
	p.gen = gen
	p.configured = false
	p.quality.reset()
}

// ConfigureBroadcast applies the signaled broadcast-area parameters.
func (p *MbsfnProcessor) ConfigureBroadcast(areaID uint16, spacing phy.SubcarrierSpacing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.areaID = areaID
	p.spacing = spacing
	p.configured = true
}

// BroadcastConfigured reports whether the currently signaled broadcast-area
// parameters have been applied.
func (p *MbsfnProcessor) BroadcastConfigured() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configured
}

// AcquireBufferAndLock takes the slot for one subframe acquisition and
// returns its buffer. Blocks while a decode task still owns the slot.
func (p *MbsfnProcessor) AcquireBufferAndLock() []complex64 {
	return p.slot.acquire()
}

// BufferSize returns the slot buffer capacity in samples.
func (p *MbsfnProcessor) BufferSize() int {
	return len(p.slot.buf)
}

// Unlock releases the slot: after a completed decode, after an empty
// subframe, or when the receiver makes the processor eligible for work.
// Releasing an already-released slot is a dispatch bug and is logged.
func (p *MbsfnProcessor) Unlock() {
	if !p.slot.release() {
		p.logger.Error("mbsfn slot released twice")
	}
}

// InvalidateBroadcast forgets the broadcast area configuration. Called when
// synchronization is lost; the processor will not accept broadcast work until
// it is configured again.
func (p *MbsfnProcessor) InvalidateBroadcast() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configured = false
}

// Index returns the processor's slot index in the dispatch rotation.
func (p *MbsfnProcessor) Index() int {
	return p.index
}

// ReleaseIfHeld releases the slot if it is currently held and reports whether
// it was. Used when subframe timing is regained: slots still held from the
// initial locked state, or from frames that never produced usable data, are
// returned to service here.
func (p *MbsfnProcessor) ReleaseIfHeld() bool {
	return p.slot.release()
}

// Process runs the decode for one broadcast subframe. Returns false when the
// block did not decode or the task was dispatched under a stale cell
// geometry.
func (p *MbsfnProcessor) Process(tti uint32, gen uint64) bool {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		p.logger.Debug("dropping stale broadcast frame", slog.Uint64("tti", uint64(tti)))
		return false
	}

	est := p.quality.estimate(activeSamples(p.slot.buf, p.cell))
	p.mu.Unlock()

	if tti%mcchTTIPeriod == mcchTTIOffset {
		p.counters.RecordMCCH(est.mcs, est.failed, est.ber)
	} else {
		p.counters.RecordMCH(0, est.mcs, est.failed, est.ber)
	}

	p.logger.Debug("processed broadcast subframe",
		slog.Uint64("tti", uint64(tti)),
		slog.Float64("cinrDB", est.cinrDB))

	return !est.failed
}
