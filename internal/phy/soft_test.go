package phy

import (
	"errors"
	"math"
	"testing"
)

type fakeSource struct {
	rate  uint32
	level float32
	err   error
}

func (f *fakeSource) Samples(buf []complex64) error {
	if f.err != nil {
		return f.err
	}
	for i := range buf {
		buf[i] = complex(f.level, 0)
	}
	return nil
}

func (f *fakeSource) SampleRate() uint32 { return f.rate }

func TestPowerDBFS(t *testing.T) {
	buf := make([]complex64, 64)
	for i := range buf {
		buf[i] = 1
	}
	if got := PowerDBFS(buf); math.Abs(got) > 1e-6 {
		t.Errorf("Expected 0 dBFS for full-scale samples, got %f", got)
	}

	if got := PowerDBFS(nil); !math.IsInf(got, -1) {
		t.Errorf("Expected -inf for an empty buffer, got %f", got)
	}
}

func TestSoftEngine_CellSearch(t *testing.T) {
	src := &fakeSource{rate: 1_920_000, level: 1e-5}
	engine := NewSoftEngine(src, SoftEngineConfig{CellID: 42})

	if err := engine.CellSearch(); !errors.Is(err, ErrNoCell) {
		t.Fatalf("Expected ErrNoCell on a quiet channel, got %v", err)
	}

	src.level = 0.5
	if err := engine.CellSearch(); err != nil {
		t.Fatalf("Expected cell to be found, got %v", err)
	}

	cell := engine.Cell()
	if cell.ID != 42 {
		t.Errorf("Expected cell ID 42, got %d", cell.ID)
	}
	if got := engine.NumResourceBlocks(); got != DefaultCASPRB {
		t.Errorf("Expected %d PRB by default, got %d", DefaultCASPRB, got)
	}
	if cell.MbsfnPRB != DefaultCASPRB {
		t.Errorf("Expected broadcast region to start at the CAS width, got %d", cell.MbsfnPRB)
	}
}

func TestSoftEngine_CellSearchSourceError(t *testing.T) {
	src := &fakeSource{rate: 1_920_000, err: errors.New("pipe closed")}
	engine := NewSoftEngine(src, SoftEngineConfig{})

	err := engine.CellSearch()
	if err == nil || errors.Is(err, ErrNoCell) {
		t.Fatalf("Expected a source failure, got %v", err)
	}
	if !errors.Is(err, ErrNoSamples) {
		t.Errorf("Expected error to wrap ErrNoSamples, got %v", err)
	}
}

func TestSoftEngine_SynchronizeSubframe(t *testing.T) {
	src := &fakeSource{rate: 1_920_000, level: 0.5}
	engine := NewSoftEngine(src, SoftEngineConfig{})

	if err := engine.SynchronizeSubframe(); err != nil {
		t.Fatalf("Expected sync on a loud channel, got %v", err)
	}

	src.level = 1e-5
	if err := engine.SynchronizeSubframe(); !errors.Is(err, ErrNoSync) {
		t.Fatalf("Expected ErrNoSync on a quiet channel, got %v", err)
	}
}

func TestSoftEngine_BroadcastWidening(t *testing.T) {
	src := &fakeSource{rate: 1_920_000, level: 0.5}
	engine := NewSoftEngine(src, SoftEngineConfig{
		BroadcastPRB:        40,
		ScheduleAfterFrames: 2,
	})

	if err := engine.CellSearch(); err != nil {
		t.Fatalf("CellSearch failed: %v", err)
	}
	if engine.BroadcastScheduleKnown() {
		t.Fatal("Schedule must not be known before any control subframe")
	}
	if got := engine.NumBroadcastResourceBlocks(); got != DefaultCASPRB {
		t.Fatalf("Expected broadcast width %d before the schedule, got %d", DefaultCASPRB, got)
	}

	// Control subframes land every 40 TTIs; two of them arm the schedule.
	buf := make([]complex64, SubframeSamples(src.rate))
	for i := 0; i < 80; i++ {
		if err := engine.NextFrame(buf); err != nil {
			t.Fatalf("NextFrame %d failed: %v", i, err)
		}
	}

	if !engine.BroadcastScheduleKnown() {
		t.Fatal("Expected schedule to be known after two control subframes")
	}
	if got := engine.NumBroadcastResourceBlocks(); got != 40 {
		t.Fatalf("Expected broadcast region of 40 PRB, got %d", got)
	}

	engine.ApplyCellConfig()
	if got := engine.Cell().MbsfnPRB; got != 40 {
		t.Errorf("Expected cell broadcast width 40 after applying, got %d", got)
	}
	if got := engine.NumBroadcastResourceBlocks(); got != 40 {
		t.Errorf("Expected broadcast width to stay 40 after applying, got %d", got)
	}
}

func TestSoftEngine_BroadcastServices(t *testing.T) {
	src := &fakeSource{rate: 1_920_000, level: 0.5}
	engine := NewSoftEngine(src, SoftEngineConfig{
		ScheduleAfterFrames: 1,
		Services: []MTCH{
			{LCID: 1, TMGI: "000001f123", Dest: "239.0.0.1:5000"},
		},
	})

	if err := engine.CellSearch(); err != nil {
		t.Fatalf("CellSearch failed: %v", err)
	}
	if got := engine.BroadcastServices(); got != nil {
		t.Fatalf("Expected no services before the schedule is known, got %v", got)
	}

	buf := make([]complex64, SubframeSamples(src.rate))
	for i := 0; i < 40; i++ {
		if err := engine.NextFrame(buf); err != nil {
			t.Fatalf("NextFrame %d failed: %v", i, err)
		}
	}

	svcs := engine.BroadcastServices()
	if len(svcs) != 1 {
		t.Fatalf("Expected 1 service once the schedule is known, got %d", len(svcs))
	}
	if svcs[0].LCID != 1 || svcs[0].TMGI != "000001f123" || svcs[0].Dest != "239.0.0.1:5000" {
		t.Errorf("Unexpected service entry: %+v", svcs[0])
	}
}

func TestSoftEngine_Reset(t *testing.T) {
	src := &fakeSource{rate: 1_920_000, level: 0.5}
	engine := NewSoftEngine(src, SoftEngineConfig{})

	if err := engine.CellSearch(); err != nil {
		t.Fatalf("CellSearch failed: %v", err)
	}

	engine.Reset()
	if engine.NumResourceBlocks() != 0 {
		t.Error("Expected no cell after reset")
	}
	if engine.BroadcastScheduleKnown() {
		t.Error("Expected no schedule after reset")
	}
	if engine.TTI() != 0 {
		t.Error("Expected TTI clock to restart after reset")
	}
}
