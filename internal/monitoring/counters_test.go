package monitoring

import (
	"math"
	"testing"
)

func TestCounters_ChannelAccounting(t *testing.T) {
	c := NewCounters()

	c.RecordPDSCH(20, false, 0.001)
	c.RecordPDSCH(18, true, 0.1)
	c.RecordMCCH(15, false, 0.01)
	c.RecordMCH(0, 12, false, 0.02)
	c.RecordMCH(2, 10, true, 0.2)

	s := c.Snapshot()

	if s.PDSCH.Total != 2 || s.PDSCH.Errors != 1 {
		t.Errorf("Expected PDSCH 2 blocks / 1 error, got %d / %d", s.PDSCH.Total, s.PDSCH.Errors)
	}
	if got := s.PDSCH.BLER(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Expected PDSCH BLER 0.5, got %f", got)
	}
	if s.PDSCH.MCS != 18 {
		t.Errorf("Expected the last PDSCH MCS to win, got %d", s.PDSCH.MCS)
	}

	if s.MCCH.Total != 1 || s.MCCH.MCS != 15 {
		t.Errorf("Unexpected MCCH stats: %+v", s.MCCH)
	}

	// Recording MCH 2 grows the slice through the gap.
	if len(s.MCH) != 3 {
		t.Fatalf("Expected 3 MCH entries, got %d", len(s.MCH))
	}
	if s.MCH[0].Total != 1 || s.MCH[2].Errors != 1 {
		t.Errorf("Unexpected MCH stats: %+v", s.MCH)
	}
}

func TestCounters_CINRWindow(t *testing.T) {
	c := NewCounters()

	c.AddCINR(10)
	c.AddCINR(20)
	if got := c.CINRdB(); math.Abs(got-15) > 1e-9 {
		t.Errorf("Expected mean CINR 15 dB, got %f", got)
	}

	// The window keeps only the most recent readings.
	for i := 0; i < cinrWindow; i++ {
		c.AddCINR(30)
	}
	if got := c.CINRdB(); math.Abs(got-30) > 1e-9 {
		t.Errorf("Expected the window to roll over to 30 dB, got %f", got)
	}
}

func TestCounters_MTCHInfo(t *testing.T) {
	c := NewCounters()

	c.SetMTCHInfo(0, []MTCHInfo{{LCID: 1, TMGI: "0xF00D", Dest: "239.0.0.1:5000"}})

	s := c.Snapshot()
	if len(s.MCH) != 1 || len(s.MCH[0].MTCHs) != 1 {
		t.Fatalf("Expected one MTCH on MCH 0, got %+v", s.MCH)
	}
	if s.MCH[0].MTCHs[0].TMGI != "0xF00D" {
		t.Errorf("Unexpected MTCH info: %+v", s.MCH[0].MTCHs[0])
	}
}

func TestCounters_ClearIntervalStats(t *testing.T) {
	c := NewCounters()

	c.AddCINR(25)
	c.RecordPDSCH(20, false, 0.001)
	c.RecordMCH(0, 12, true, 0.1)
	c.SetMTCHInfo(0, []MTCHInfo{{LCID: 1, TMGI: "0xF00D"}})

	c.ClearIntervalStats()

	s := c.Snapshot()
	if s.PDSCH.Total != 0 {
		t.Error("Expected PDSCH counters to be cleared")
	}
	if s.MCH[0].Total != 0 {
		t.Error("Expected MCH counters to be cleared")
	}

	// CINR and the published sub-channels carry over between intervals.
	if math.Abs(s.CINRdB-25) > 1e-9 {
		t.Errorf("Expected CINR to survive the interval clear, got %f", s.CINRdB)
	}
	if len(s.MCH[0].MTCHs) != 1 {
		t.Error("Expected MTCH info to survive the interval clear")
	}
}

func TestCounters_Reset(t *testing.T) {
	c := NewCounters()

	c.AddCINR(25)
	c.RecordPDSCH(20, false, 0.001)
	c.RecordMCH(1, 12, false, 0.1)

	c.Reset()

	s := c.Snapshot()
	if s.CINRdB != 0 || s.PDSCH.Total != 0 || len(s.MCH) != 0 {
		t.Errorf("Expected empty counters after reset, got %+v", s)
	}
}
