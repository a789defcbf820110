// Package frameproc holds the per-channel frame processors. Each processor
// owns one exclusive receive buffer: the control loop acquires the slot
// before the engine writes samples into it, and the decode task releases it
// exactly once on completion. Decode here is measurement-grade: signal
// statistics stand in for the out-of-scope demodulation chain, feeding the
// same quality counters a full decoder would.
package frameproc

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/rt-wireless/mbms-modem/internal/phy"
)

// MaxSubframeSamples is one 1 ms subframe at the widest supported rate
// (30.72 MHz); every slot buffer is sized for it so retunes never
// reallocate.
const MaxSubframeSamples = 30_720

// Decode thresholds for the measurement-grade quality estimate.
const (
	minDecodeCINRdB = 3.0
	maxMCSIndex     = 28
	mcsPerDB        = 1.0
)

// slot is the exclusive receive buffer shared by the control loop and one
// in-flight decode task. Lock ownership transfers from the acquiring
// goroutine to the worker running the task; release is idempotent so the
// busy flag transitions true->false exactly once per acquisition.
type slot struct {
	mu   sync.Mutex
	busy atomic.Bool
	buf  []complex64
}

func (s *slot) init() {
	s.buf = make([]complex64, MaxSubframeSamples)
}

func (s *slot) acquire() []complex64 {
	s.mu.Lock()
	s.busy.Store(true)
	return s.buf
}

func (s *slot) release() bool {
	if s.busy.CompareAndSwap(true, false) {
		s.mu.Unlock()
		return true
	}
	return false
}

// Busy reports whether the slot is bound to an in-flight acquisition.
func (s *slot) Busy() bool {
	return s.busy.Load()
}

// quality derives the decode-quality estimate for one subframe of samples:
// CINR against a tracked noise floor, an MCS index proportional to it, and
// the coherent-detection bit error rate at that CINR.
type quality struct {
	noiseFloorDB float64
	calibrated   bool
}

type qualityEstimate struct {
	cinrDB float64
	mcs    uint32
	ber    float64
	failed bool
}

func (q *quality) estimate(samples []complex64) qualityEstimate {
	power := phy.PowerDBFS(samples)

	if !q.calibrated || power < q.noiseFloorDB {
		// First reading seeds the floor below the observed power; later
		// quieter readings pull it down.
		if !q.calibrated {
			q.noiseFloorDB = power - 20
			q.calibrated = true
		} else {
			q.noiseFloorDB = power
		}
	}

	cinr := power - q.noiseFloorDB
	snr := math.Pow(10, cinr/10)
	ber := 0.5 * math.Erfc(math.Sqrt(snr)/math.Sqrt2)

	mcs := uint32(math.Max(0, math.Min(maxMCSIndex, cinr*mcsPerDB)))

	return qualityEstimate{
		cinrDB: cinr,
		mcs:    mcs,
		ber:    ber,
		failed: cinr < minDecodeCINRdB,
	}
}

func (q *quality) reset() {
	q.calibrated = false
	q.noiseFloorDB = 0
}

// activeSamples returns the portion of a slot buffer carrying the current
// subframe for the given cell geometry.
func activeSamples(buf []complex64, cell phy.Cell) []complex64 {
	prb := cell.MbsfnPRB
	if prb == 0 {
		prb = cell.NofPRB
	}

	n := phy.SubframeSamples(phy.SamplingFrequency(prb))
	if n <= 0 || n > len(buf) {
		return buf
	}
	return buf[:n]
}
