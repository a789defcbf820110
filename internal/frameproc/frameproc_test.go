package frameproc

import (
	"testing"
	"time"

	"github.com/rt-wireless/mbms-modem/internal/monitoring"
	"github.com/rt-wireless/mbms-modem/internal/phy"
)

func fillSamples(buf []complex64, level float32) {
	for i := range buf {
		buf[i] = complex(level, 0)
	}
}

func TestCasProcessor_SlotDiscipline(t *testing.T) {
	p := NewCasProcessor(monitoring.NewCounters())
	if err := p.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if p.slot.Busy() {
		t.Fatal("Expected a fresh CAS slot to be free")
	}

	buf := p.AcquireBufferAndLock()
	if len(buf) != MaxSubframeSamples {
		t.Fatalf("Expected a %d sample buffer, got %d", MaxSubframeSamples, len(buf))
	}
	if !p.slot.Busy() {
		t.Fatal("Expected the slot to be busy after acquisition")
	}

	p.Unlock()
	if p.slot.Busy() {
		t.Fatal("Expected the slot to be free after release")
	}

	// The busy flag transitions exactly once per acquisition.
	if p.slot.release() {
		t.Fatal("Expected a second release to be rejected")
	}
}

func TestCasProcessor_AcquireBlocksWhileHeld(t *testing.T) {
	p := NewCasProcessor(monitoring.NewCounters())
	if err := p.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	p.AcquireBufferAndLock()

	acquired := make(chan struct{})
	go func() {
		p.AcquireBufferAndLock()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("Second acquisition must block while the slot is held")
	case <-time.After(20 * time.Millisecond):
	}

	p.Unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Second acquisition did not proceed after release")
	}
	p.Unlock()
}

func TestCasProcessor_Process(t *testing.T) {
	counters := monitoring.NewCounters()
	p := NewCasProcessor(counters)
	if err := p.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	p.SetCell(phy.Cell{NofPRB: 6}, 1)

	buf := p.AcquireBufferAndLock()
	fillSamples(buf, 0.5)

	if !p.Process(40, 1) {
		t.Fatal("Expected the control subframe to decode")
	}
	p.Unlock()

	s := counters.Snapshot()
	if s.PDSCH.Total != 1 {
		t.Errorf("Expected 1 PDSCH block accounted, got %d", s.PDSCH.Total)
	}
	if s.PDSCH.Errors != 0 {
		t.Errorf("Expected no PDSCH errors, got %d", s.PDSCH.Errors)
	}
	if s.CINRdB <= 0 {
		t.Errorf("Expected a positive CINR estimate, got %f", s.CINRdB)
	}
}

func TestCasProcessor_DropsStaleGeneration(t *testing.T) {
	counters := monitoring.NewCounters()
	p := NewCasProcessor(counters)
	if err := p.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	p.SetCell(phy.Cell{NofPRB: 6}, 2)

	buf := p.AcquireBufferAndLock()
	fillSamples(buf, 0.5)

	if p.Process(40, 1) {
		t.Fatal("Expected a stale-generation task to be dropped")
	}
	p.Unlock()

	if s := counters.Snapshot(); s.PDSCH.Total != 0 {
		t.Errorf("Expected no blocks accounted for a stale task, got %d", s.PDSCH.Total)
	}
}

func TestMbsfnProcessor_StartsLocked(t *testing.T) {
	p := NewMbsfnProcessor(0, monitoring.NewCounters())
	if err := p.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if !p.slot.Busy() {
		t.Fatal("Expected an MBSFN slot to start locked")
	}

	if !p.ReleaseIfHeld() {
		t.Fatal("Expected the initial lock to be releasable")
	}
	if p.ReleaseIfHeld() {
		t.Fatal("Expected a second release to report not held")
	}
	if p.slot.Busy() {
		t.Fatal("Expected the slot to be free after release")
	}
}

func TestMbsfnProcessor_BroadcastConfiguration(t *testing.T) {
	counters := monitoring.NewCounters()
	p := NewMbsfnProcessor(1, counters)
	if err := p.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	p.ReleaseIfHeld()

	if p.BroadcastConfigured() {
		t.Fatal("Expected no broadcast configuration initially")
	}

	p.SetCell(phy.Cell{NofPRB: 6, MbsfnPRB: 6}, 1)
	p.ConfigureBroadcast(7, phy.Spacing7k5Hz)
	if !p.BroadcastConfigured() {
		t.Fatal("Expected the processor to be configured")
	}

	// A geometry change invalidates the configuration.
	p.SetCell(phy.Cell{NofPRB: 6, MbsfnPRB: 40}, 2)
	if p.BroadcastConfigured() {
		t.Fatal("Expected a cell change to invalidate the broadcast configuration")
	}

	p.ConfigureBroadcast(7, phy.Spacing7k5Hz)
	p.InvalidateBroadcast()
	if p.BroadcastConfigured() {
		t.Fatal("Expected InvalidateBroadcast to clear the configuration")
	}
}

func TestMbsfnProcessor_Process(t *testing.T) {
	counters := monitoring.NewCounters()
	p := NewMbsfnProcessor(0, counters)
	if err := p.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	p.ReleaseIfHeld()

	p.SetCell(phy.Cell{NofPRB: 6, MbsfnPRB: 6}, 1)
	p.ConfigureBroadcast(1, phy.Spacing15kHz)

	buf := p.AcquireBufferAndLock()
	fillSamples(buf, 0.5)
	if !p.Process(8, 1) { // control-channel acquisition TTI, carries MCCH
		t.Fatal("Expected the broadcast subframe to decode")
	}
	p.Unlock()

	buf = p.AcquireBufferAndLock()
	fillSamples(buf, 0.5)
	if !p.Process(9, 1) {
		t.Fatal("Expected the broadcast subframe to decode")
	}
	p.Unlock()

	s := counters.Snapshot()
	if s.MCCH.Total != 1 {
		t.Errorf("Expected 1 MCCH block accounted, got %d", s.MCCH.Total)
	}
	if len(s.MCH) != 1 || s.MCH[0].Total != 1 {
		t.Errorf("Expected 1 MCH block accounted, got %+v", s.MCH)
	}
}
