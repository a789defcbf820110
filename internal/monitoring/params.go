package monitoring

import "sync"

// RFParams is the RF parameter tuple the monitoring API can request. It is
// always replaced as a whole.
type RFParams struct {
	Antenna    string  `json:"antenna,omitempty"`
	Frequency  uint32  `json:"frequency"`
	Gain       float64 `json:"gain"`
	SampleRate uint32  `json:"sample_rate,omitempty"`
	Bandwidth  uint32  `json:"bandwidth,omitempty"`
}

// ParamStore is the only state shared between the monitoring API goroutine
// and the control loop: a complete parameter tuple plus a restart-requested
// flag, written together and read-and-cleared together under one lock so the
// control loop never observes a half-updated tuple.
type ParamStore struct {
	mu      sync.Mutex
	params  RFParams
	restart bool
}

// Request stores a replacement tuple and flags a restart. This is the
// parameter-change callback handed to the monitoring API; requesting the
// same tuple twice before the control loop consumes it still results in a
// single retune cycle.
func (s *ParamStore) Request(p RFParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	s.restart = true
}

// Pending reports whether a restart request is waiting, without consuming it.
func (s *ParamStore) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restart
}

// Consume returns the requested tuple and clears the restart flag. The
// second return is false when no request was pending.
func (s *ParamStore) Consume() (RFParams, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.restart {
		return RFParams{}, false
	}

	s.restart = false
	return s.params, true
}
