package frameproc

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rt-wireless/mbms-modem/internal/monitoring"
	"github.com/rt-wireless/mbms-modem/internal/phy"
)

// WithCasLogger sets the logger for a CAS processor.
func WithCasLogger(logger *slog.Logger) func(*CasProcessor) {
	return func(p *CasProcessor) {
		p.logger = logger.With(slog.String("processor", "cas"))
	}
}

// CasProcessor decodes control-channel (CAS) subframes. One instance exists
// per receiver; its slot buffer is filled by the control loop and processed
// on a pool worker.
type CasProcessor struct {
	slot
	quality quality

	mu   sync.Mutex
	cell phy.Cell
	gen  uint64

	counters *monitoring.Counters
	logger   *slog.Logger
}

// NewCasProcessor creates a CAS processor reporting into counters.
func NewCasProcessor(counters *monitoring.Counters, options ...func(*CasProcessor)) *CasProcessor {
	p := CasProcessor{
		counters: counters,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}

	return &p
}

// Init allocates the receive buffer.
func (p *CasProcessor) Init() error {
	if p.counters == nil {
		return fmt.Errorf("counter registry is required")
	}

	p.slot.init()
	return nil
}

// SetCell installs the cell parameters under the given geometry generation.
func (p *CasProcessor) SetCell(cell phy.Cell, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cell = cell
	p.gen = gen
	p.quality.reset()
}

// AcquireBufferAndLock takes the slot for one subframe acquisition and
// returns its buffer. Blocks while a decode task still owns the slot.
func (p *CasProcessor) AcquireBufferAndLock() []complex64 {
	return p.slot.acquire()
}

// BufferSize returns the slot buffer capacity in samples.
func (p *CasProcessor) BufferSize() int {
	return len(p.slot.buf)
}

// Unlock releases the slot. Releasing an already-released slot is a
// dispatch bug and is logged.
func (p *CasProcessor) Unlock() {
	if !p.slot.release() {
		p.logger.Error("cas slot released twice")
	}
}

// Process runs the decode for one control subframe. Returns false when the
// block did not decode or the task was dispatched under a stale cell
// geometry.
func (p *CasProcessor) Process(tti uint32, gen uint64) bool {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		p.logger.Debug("dropping stale control frame", slog.Uint64("tti", uint64(tti)))
		return false
	}

	est := p.quality.estimate(activeSamples(p.slot.buf, p.cell))
	p.mu.Unlock()

	p.counters.AddCINR(est.cinrDB)
	p.counters.RecordPDSCH(est.mcs, est.failed, est.ber)

	p.logger.Debug("processed control subframe",
		slog.Uint64("tti", uint64(tti)),
		slog.Float64("cinrDB", est.cinrDB))

	return !est.failed
}
