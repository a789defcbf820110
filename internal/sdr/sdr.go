package sdr

import "errors"

var (
	// ErrStopped is returned by Samples when the source is stopped while a
	// read is in progress.
	ErrStopped = errors.New("source stopped")

	// ErrRunning is returned by Tune when the source has not been stopped
	// first. Retuning is only valid on a stopped source.
	ErrRunning = errors.New("source is running")

	// ErrEndOfCapture is returned by Samples when a capture file playback
	// reaches the end of the recording.
	ErrEndOfCapture = errors.New("end of capture file")
)

// TuneParams is the complete RF parameter tuple applied in one Tune call.
type TuneParams struct {
	Frequency  uint32  // center frequency in Hz
	SampleRate uint32  // sample rate in Hz
	Bandwidth  uint32  // low pass filter bandwidth in Hz
	Gain       float64 // normalized overall system gain [0..1]
	Antenna    string  // antenna input name
	AGC        bool    // hardware gain control instead of a fixed gain
}

// Source is the RF sample source contract consumed by the receiver and the
// physical-layer engine. Start, Stop, Tune and ClearBuffer are control-thread
// only; Samples is the blocking fetch the engine reads from.
type Source interface {
	Start() error
	Stop() error
	Tune(p TuneParams) error
	ClearBuffer()
	Samples(buf []complex64) error
	SampleRate() uint32
	EnableCaptureWrite()
	DisableCaptureWrite()
	Close() error
}
