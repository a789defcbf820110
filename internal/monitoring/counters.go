package monitoring

import (
	"sync"

	"gonum.org/v1/gonum/stat"
)

// cinrWindow bounds the number of recent CINR readings kept for averaging.
const cinrWindow = 100

// ChannelStats holds the decode-quality counters for one logical channel.
type ChannelStats struct {
	MCS    uint32
	Errors uint64
	Total  uint64
	BER    float64
}

// BLER returns the block error ratio observed so far.
func (c ChannelStats) BLER() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Errors) / float64(c.Total)
}

// MTCHInfo describes one traffic sub-channel inside a broadcast channel.
type MTCHInfo struct {
	LCID uint32
	TMGI string
	Dest string
}

// MCHStats extends ChannelStats with the traffic sub-channels carried on a
// broadcast channel.
type MCHStats struct {
	ChannelStats
	MTCHs []MTCHInfo
}

// Snapshot is a point-in-time copy of all decode-quality counters, taken for
// the measurement interval report and the live metrics endpoint.
type Snapshot struct {
	CINRdB float64
	PDSCH  ChannelStats
	MCCH   ChannelStats
	MCH    []MCHStats
}

// Counters aggregates decode quality across the frame processors. Decode
// tasks on pool workers write, the control loop and the metrics endpoint
// read; all access goes through one mutex.
type Counters struct {
	mu sync.Mutex

	cinr  []float64
	pdsch ChannelStats
	mcch  ChannelStats
	mch   []MCHStats
}

// NewCounters creates an empty counter registry.
func NewCounters() *Counters {
	return &Counters{}
}

// AddCINR records a channel-quality estimate in dB.
func (c *Counters) AddCINR(db float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cinr = append(c.cinr, db)
	if len(c.cinr) > cinrWindow {
		c.cinr = c.cinr[len(c.cinr)-cinrWindow:]
	}
}

// CINRdB returns the mean of the recent channel-quality estimates.
func (c *Counters) CINRdB() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cinr) == 0 {
		return 0
	}
	return stat.Mean(c.cinr, nil)
}

// RecordPDSCH accounts one control-channel block decode.
func (c *Counters) RecordPDSCH(mcs uint32, failed bool, ber float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record(&c.pdsch, mcs, failed, ber)
}

// RecordMCCH accounts one broadcast-control-channel block decode.
func (c *Counters) RecordMCCH(mcs uint32, failed bool, ber float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record(&c.mcch, mcs, failed, ber)
}

// RecordMCH accounts one broadcast-service-channel block decode.
func (c *Counters) RecordMCH(idx int, mcs uint32, failed bool, ber float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.growMCH(idx)
	record(&c.mch[idx].ChannelStats, mcs, failed, ber)
}

// SetMTCHInfo publishes the traffic sub-channels currently carried on a
// broadcast channel.
func (c *Counters) SetMTCHInfo(idx int, infos []MTCHInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.growMCH(idx)
	c.mch[idx].MTCHs = append([]MTCHInfo(nil), infos...)
}

// Snapshot returns a copy of all counters.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		PDSCH: c.pdsch,
		MCCH:  c.mcch,
	}
	if len(c.cinr) > 0 {
		s.CINRdB = stat.Mean(c.cinr, nil)
	}

	s.MCH = make([]MCHStats, len(c.mch))
	for i, m := range c.mch {
		s.MCH[i] = MCHStats{
			ChannelStats: m.ChannelStats,
			MTCHs:        append([]MTCHInfo(nil), m.MTCHs...),
		}
	}
	return s
}

// ClearIntervalStats zeroes the per-interval block counters so the next
// measurement report covers only its own interval. The CINR window and the
// published traffic sub-channels carry over.
func (c *Counters) ClearIntervalStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pdsch = ChannelStats{}
	c.mcch = ChannelStats{}
	for i := range c.mch {
		c.mch[i].ChannelStats = ChannelStats{}
	}
}

// Reset clears all counters. Called when the receiver loses the cell.
func (c *Counters) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cinr = c.cinr[:0]
	c.pdsch = ChannelStats{}
	c.mcch = ChannelStats{}
	c.mch = nil
}

func (c *Counters) growMCH(idx int) {
	for len(c.mch) <= idx {
		c.mch = append(c.mch, MCHStats{})
	}
}

func record(s *ChannelStats, mcs uint32, failed bool, ber float64) {
	s.MCS = mcs
	s.Total++
	if failed {
		s.Errors++
	}
	s.BER = ber
}
