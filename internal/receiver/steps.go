package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rt-wireless/mbms-modem/internal/monitoring"
	"github.com/rt-wireless/mbms-modem/internal/phy"
	"github.com/rt-wireless/mbms-modem/internal/pool"
)

// stepSearching runs one cell-search attempt. Losing here is the normal idle
// condition of the receiver, so misses are quiet and rate limited by the
// backoff.
func (r *Receiver) stepSearching() {
	if p, ok := r.params.Consume(); ok {
		r.applyRequestedParams(p)
	}

	r.src.DisableCaptureWrite()
	r.src.ClearBuffer()

	if err := r.engine.CellSearch(); err != nil {
		if errors.Is(err, phy.ErrNoCell) {
			r.logger.Debug("no cell found", slog.Uint64("frequency", uint64(r.rf.Frequency)))
		} else {
			r.logger.Warn(fmt.Sprintf("cell search failed: %s", err.Error()))
		}
		r.nextFrequency()
		r.wait()
		return
	}

	cell := r.engine.Cell()
	r.casPRB = r.engine.NumResourceBlocks()
	r.mbsfnPRB = r.casPRB
	r.logger.Info("cell found",
		slog.Uint64("frequency", uint64(r.rf.Frequency)),
		slog.Uint64("cell_id", uint64(cell.ID)),
		slog.Uint64("prb", uint64(r.casPRB)),
		slog.Uint64("ports", uint64(cell.NofPorts)))

	if r.cfg.CaptureBandwidthMHz > 0 {
		// Capture playback: the file was recorded at the channel's native
		// rate, so instead of switching rates the broadcast region is widened
		// to span the whole file bandwidth.
		r.mbsfnPRB = phy.PRBForBandwidthMHz(r.cfg.CaptureBandwidthMHz)
		r.engine.SetBroadcastResourceBlocks(r.mbsfnPRB)
		r.engine.ApplyCellConfig()
		r.setState(StateSyncing)
		return
	}

	rate := phy.SamplingFrequency(r.casPRB)
	if rate == 0 {
		r.logger.Warn(fmt.Sprintf("no sampling frequency for a %d PRB cell", r.casPRB))
		r.engine.Reset()
		r.wait()
		return
	}

	if rate != r.rf.SampleRate {
		r.logger.Info(fmt.Sprintf("setting sample rate %s for a %d PRB cell (%s channel)",
			humanHz(rate), r.casPRB, humanHz(phy.ChannelBandwidth(r.casPRB))))

		if err := r.retune(rate, guardBandwidth(r.casPRB)); err != nil {
			r.logger.Warn(fmt.Sprintf("cannot switch to operating sample rate: %s", err.Error()))
			r.engine.Reset()
			r.wait()
			return
		}
	}
	r.engine.ApplyCellConfig()

	r.setState(StateSyncing)
}

// applyRequestedParams restarts the RF frontend with a tuple requested
// through the monitoring API. The sample rate is forced back to the search
// rate regardless of the request; the operating rate is re-derived once a
// cell is found.
func (r *Receiver) applyRequestedParams(p monitoring.RFParams) {
	r.logger.Info("applying requested RF parameters",
		slog.Uint64("frequency", uint64(p.Frequency)),
		slog.Float64("gain", p.Gain),
		slog.String("antenna", p.Antenna))

	if err := r.src.Stop(); err != nil {
		r.logger.Warn(fmt.Sprintf("stopping source for a parameter change: %s", err.Error()))
	}

	r.rf.Frequency = p.Frequency
	r.rf.Gain = p.Gain
	r.rf.SampleRate = r.cfg.SearchSampleRate
	if p.Antenna != "" {
		r.rf.Antenna = p.Antenna
	}
	if p.Bandwidth != 0 {
		r.rf.Bandwidth = p.Bandwidth
	}
	if i := r.frequencyIndex(p.Frequency); i >= 0 {
		r.freqIdx = i
	}

	if err := r.src.Tune(r.rf); err != nil {
		r.logger.Warn(fmt.Sprintf("cannot apply requested RF parameters: %s", err.Error()))
	}
	if err := r.src.Start(); err != nil {
		r.logger.Warn(fmt.Sprintf("restarting source after a parameter change: %s", err.Error()))
	}
	r.engine.Reset()
}

func (r *Receiver) frequencyIndex(freq uint32) int {
	for i, f := range r.cfg.Frequencies {
		if f == freq {
			return i
		}
	}
	return -1
}

// nextFrequency rotates to the next candidate center frequency after a
// search miss. With a single candidate the source stays tuned as is.
func (r *Receiver) nextFrequency() {
	if len(r.cfg.Frequencies) < 2 {
		return
	}

	r.freqIdx = (r.freqIdx + 1) % len(r.cfg.Frequencies)
	freq := r.cfg.Frequencies[r.freqIdx]
	r.logger.Info("trying next center frequency", slog.Uint64("frequency", uint64(freq)))

	if err := r.src.Stop(); err != nil {
		r.logger.Warn(fmt.Sprintf("stopping source for a frequency change: %s", err.Error()))
	}
	r.rf.Frequency = freq
	r.rf.SampleRate = r.cfg.SearchSampleRate
	if err := r.src.Tune(r.rf); err != nil {
		r.logger.Warn(fmt.Sprintf("cannot set center frequency %d: %s", freq, err.Error()))
	}
	if err := r.src.Start(); err != nil {
		r.logger.Warn(fmt.Sprintf("restarting source after a frequency change: %s", err.Error()))
	}
}

// retune applies a new sample rate and filter bandwidth on the current
// center frequency. The source must be restarted around the change.
func (r *Receiver) retune(rate, bandwidth uint32) error {
	if err := r.src.Stop(); err != nil {
		return fmt.Errorf("stopping source: %w", err)
	}

	r.rf.SampleRate = rate
	r.rf.Bandwidth = bandwidth
	if err := r.src.Tune(r.rf); err != nil {
		return fmt.Errorf("tuning: %w", err)
	}
	if err := r.src.Start(); err != nil {
		return fmt.Errorf("restarting source: %w", err)
	}
	return nil
}

// stepSyncing acquires subframe timing with a bounded number of attempts.
// Success arms the processors and the TTI clock; failure goes back to
// searching after the backoff.
func (r *Receiver) stepSyncing() {
	var synced bool
	for i := 0; i < r.cfg.SyncAttempts && !synced; i++ {
		err := r.engine.SynchronizeSubframe()
		if err == nil {
			synced = true
			break
		}
		if !errors.Is(err, phy.ErrNoSync) {
			r.logger.Warn(fmt.Sprintf("subframe synchronization: %s", err.Error()))
			break
		}
	}

	if !synced {
		r.logger.Warn("synchronization failed, going back to searching")
		r.setState(StateSearching)
		r.wait()
		return
	}

	r.tti = r.engine.TTI()
	r.logger.Info("subframe synchronized", slog.Uint64("tti", uint64(r.tti)))

	r.cas.SetCell(r.engine.Cell(), r.gen)
	for _, p := range r.mbsfn {
		p.ReleaseIfHeld()
	}
	r.stack.Reset()
	r.src.EnableCaptureWrite()
	r.mbIdx = 0

	r.setState(StateProcessing)
}

// stepProcessing is the steady-state loop: one subframe per iteration, CAS
// subframes to the CAS processor, everything else round robin over the
// broadcast processors.
func (r *Receiver) stepProcessing(ctx context.Context) {
	for r.state == StateProcessing && r.fatal == nil && ctx.Err() == nil {
		r.processSubframe(ctx)
	}
}

func (r *Receiver) processSubframe(ctx context.Context) {
	r.tti = (r.tti + 1) % phy.MaxTTI

	if r.engine.IsControlSubframe(r.tti) {
		r.processControlSubframe()
	} else {
		r.processBroadcastSubframe()
	}

	r.tick++
	if r.cfg.MeasurementInterval > 0 && r.tick%r.cfg.MeasurementInterval == 0 {
		r.reportMeasurements(ctx)
	}
}

func (r *Receiver) processControlSubframe() {
	buf := r.cas.AcquireBufferAndLock()

	if r.params.Pending() {
		r.cas.Unlock()
		r.logger.Info("RF parameter change requested, restarting acquisition")
		r.loseSync()
		return
	}
	if err := r.engine.NextFrame(buf); err != nil {
		r.cas.Unlock()
		r.logger.Warn(fmt.Sprintf("synchronization lost on the control channel: %s", err.Error()))
		r.loseSync()
		return
	}

	if err := r.pool.Submit(pool.Task{Slot: pool.SlotCAS, TTI: r.tti, Gen: r.gen}); err != nil {
		r.cas.Unlock()
		r.fatal = fmt.Errorf("dispatching control subframe: %w", err)
		return
	}

	// The broadcast region can widen once scheduling information arrives.
	if prb := r.engine.NumBroadcastResourceBlocks(); prb != r.mbsfnPRB {
		r.reconfigure(prb)
	}
}

func (r *Receiver) processBroadcastSubframe() {
	p := r.mbsfn[r.mbIdx]
	r.mbIdx = (r.mbIdx + 1) % len(r.mbsfn)

	buf := p.AcquireBufferAndLock()

	if r.params.Pending() {
		p.Unlock()
		r.logger.Info("RF parameter change requested, restarting acquisition")
		r.loseSync()
		return
	}
	if err := r.engine.NextFrame(buf); err != nil {
		p.Unlock()
		r.logger.Warn(fmt.Sprintf("synchronization lost while processing: %s", err.Error()))
		r.loseSync()
		return
	}

	if !r.engine.BroadcastScheduleKnown() || !r.engine.IsBroadcastSubframe(r.tti) {
		// No decodable payload here yet; the samples are discarded.
		p.Unlock()
		return
	}

	if !p.BroadcastConfigured() {
		cell := r.engine.Cell()
		p.SetCell(cell, r.gen)
		p.ConfigureBroadcast(r.engine.BroadcastAreaID(), r.engine.BroadcastSubcarrierSpacing())
		r.publishServices()
	}

	if err := r.pool.Submit(pool.Task{Slot: p.Index(), TTI: r.tti, Gen: r.gen}); err != nil {
		p.Unlock()
		r.fatal = fmt.Errorf("dispatching broadcast subframe: %w", err)
	}
}

// publishServices refreshes the traffic sub-channel listing attached to the
// broadcast channel counters from the decoded schedule.
func (r *Receiver) publishServices() {
	svcs := r.engine.BroadcastServices()
	if len(svcs) == 0 {
		return
	}

	infos := make([]monitoring.MTCHInfo, len(svcs))
	for i, s := range svcs {
		infos[i] = monitoring.MTCHInfo{LCID: s.LCID, TMGI: s.TMGI, Dest: s.Dest}
	}
	r.counters.SetMTCHInfo(0, infos)
}

// reconfigure retunes mid-stream after the broadcast region turned out to
// have a different width than the control channel. In-flight decode tasks
// keep their buffers; the generation bump makes their results stale.
func (r *Receiver) reconfigure(prb uint32) {
	rate := phy.SamplingFrequency(prb)
	if rate == 0 {
		r.logger.Warn(fmt.Sprintf("no sampling frequency for a %d PRB broadcast region", prb))
		return
	}

	r.logger.Info(fmt.Sprintf("setting sample rate %s for the %d PRB broadcast region (%s channel)",
		humanHz(rate), prb, humanHz(phy.ChannelBandwidth(prb))))

	r.mbsfnPRB = prb
	r.gen++

	if err := r.retune(rate, guardBandwidth(prb)); err != nil {
		r.logger.Warn(fmt.Sprintf("broadcast region retune failed: %s", err.Error()))
		r.loseSync()
		return
	}

	r.engine.ApplyCellConfig()
	r.cas.SetCell(r.engine.Cell(), r.gen)
	for _, p := range r.mbsfn {
		p.SetCell(r.engine.Cell(), r.gen)
	}

	r.logger.Info("synchronizing subframe after broadcast region extension")
	r.setState(StateSyncing)
}

// loseSync performs the full recovery: drop back to the search sample rate,
// reset the engine and the stack, and start over after the backoff.
func (r *Receiver) loseSync() {
	if err := r.src.Stop(); err != nil {
		r.logger.Warn(fmt.Sprintf("stopping source after sync loss: %s", err.Error()))
	}

	r.rf.SampleRate = r.cfg.SearchSampleRate
	if err := r.src.Tune(r.rf); err != nil {
		r.logger.Warn(fmt.Sprintf("retuning after sync loss: %s", err.Error()))
	}
	if err := r.src.Start(); err != nil {
		r.logger.Warn(fmt.Sprintf("restarting source after sync loss: %s", err.Error()))
	}

	r.stack.Reset()
	r.engine.Reset()
	for _, p := range r.mbsfn {
		p.InvalidateBroadcast()
	}

	r.setState(StateSearching)
	r.wait()
}

// runTask executes one decode task on a pool worker and releases the slot
// when done. This is the only place slots transition back to free for
// dispatched work.
func (r *Receiver) runTask(t pool.Task) {
	if t.Slot == pool.SlotCAS {
		r.cas.Process(t.TTI, t.Gen)
		r.cas.Unlock()
		return
	}

	p := r.mbsfn[t.Slot]
	p.Process(t.TTI, t.Gen)
	p.Unlock()
}

// reportMeasurements emits one aggregated quality report: structured log,
// live metrics and, when a sink is attached, one persisted row. Sink errors
// never feed back into acquisition.
func (r *Receiver) reportMeasurements(ctx context.Context) {
	s := r.counters.Snapshot()

	r.logger.Info(fmt.Sprintf("CINR %.2f dB", s.CINRdB))
	r.logger.Info(fmt.Sprintf("PDSCH: MCS %d, BLER %.4f, BER %.6f",
		s.PDSCH.MCS, s.PDSCH.BLER(), s.PDSCH.BER))
	r.logger.Info(fmt.Sprintf("MCCH: MCS %d, BLER %.4f, BER %.6f",
		s.MCCH.MCS, s.MCCH.BLER(), s.MCCH.BER))
	for i, mch := range s.MCH {
		r.logger.Info(fmt.Sprintf("MCH %d: MCS %d, BLER %.4f, BER %.6f",
			i, mch.MCS, mch.BLER(), mch.BER))
		for _, mtch := range mch.MTCHs {
			r.logger.Info(fmt.Sprintf("  MTCH: LCID %d, TMGI 0x%s, %s", mtch.LCID, mtch.TMGI, mtch.Dest))
		}
	}

	r.metrics.Update(s)

	if r.sink != nil {
		if err := r.sink.Append(ctx, s); err != nil {
			r.logger.Warn(fmt.Sprintf("writing measurement: %s", err.Error()))
		}
	}

	r.counters.ClearIntervalStats()
}
