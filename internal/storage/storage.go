// Package storage persists receiver sessions and their periodic signal
// quality measurements, and reads them back for reporting.
package storage

import (
	"context"
	"time"
)

// Store provides an interface for managing measurement storage operations.
// It handles sessions and quality measurements in a thread-safe manner. All
// operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession initializes a new receiver session and returns its unique
	// identifier. deviceType names the RF frontend driver, deviceID its
	// device arguments or capture file; config is the optional receiver
	// configuration and can be a string, []byte or a JSON-serializable
	// object.
	CreateSession(ctx context.Context, deviceType, deviceID string, config any) (sessionID int64, err error)

	// Session retrieves a session by its ID; nil when not found.
	Session(ctx context.Context, id int64) (*Session, error)

	// Sessions returns all sessions ordered by start time.
	Sessions(ctx context.Context) ([]*Session, error)

	// StoreMeasurement appends one measurement row to a session.
	StoreMeasurement(ctx context.Context, sessionID int64, m *Measurement) (measurementID int64, err error)

	// ReadMeasurements returns a reader over a session's measurements in
	// timestamp order. The reader must be closed after use.
	ReadMeasurements(ctx context.Context, sessionID int64, opts ...ReaderOption) (*MeasurementReader, error)

	// Close releases all database resources.
	Close() error
}

// Session describes one receiver run.
type Session struct {
	ID         int64
	StartTime  time.Time
	DeviceType string
	DeviceID   string
	Config     *string
}

// Measurement is one interval's aggregated signal quality.
type Measurement struct {
	ID        int64
	SessionID int64
	Timestamp time.Time

	CINRdB float64

	PDSCHMCS  uint32
	PDSCHBLER float64
	PDSCHBER  float64

	MCCHMCS  uint32
	MCCHBLER float64
	MCCHBER  float64

	MCH []MCHMeasurement
}

// MCHMeasurement is the per-broadcast-channel slice of a measurement,
// stored as a JSON column since the channel count varies per cell.
type MCHMeasurement struct {
	Index int     `json:"idx"`
	MCS   uint32  `json:"mcs"`
	BLER  float64 `json:"bler"`
	BER   float64 `json:"ber"`

	MTCHs []MTCHMeasurement `json:"mtchs,omitempty"`
}

// MTCHMeasurement identifies one traffic sub-channel carried on a broadcast
// channel at measurement time.
type MTCHMeasurement struct {
	LCID uint32 `json:"lcid"`
	TMGI string `json:"tmgi"`
	Dest string `json:"dest"`
}
