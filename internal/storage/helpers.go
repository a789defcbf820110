package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// measurementData is the flat row shape handed to the database driver.
type measurementData struct {
	SessionID int64
	Timestamp time.Time
	CINR      float64
	PDSCHMCS  int64
	PDSCHBLER float64
	PDSCHBER  float64
	MCCHMCS   int64
	MCCHBLER  float64
	MCCHBER   float64
	MCH       sql.NullString
}

func toMeasurementData(sessionID int64, m *Measurement) (*measurementData, error) {
	data := measurementData{
		SessionID: sessionID,
		Timestamp: m.Timestamp.UTC(),
		CINR:      m.CINRdB,
		PDSCHMCS:  int64(m.PDSCHMCS),
		PDSCHBLER: m.PDSCHBLER,
		PDSCHBER:  m.PDSCHBER,
		MCCHMCS:   int64(m.MCCHMCS),
		MCCHBLER:  m.MCCHBLER,
		MCCHBER:   m.MCCHBER,
	}

	if len(m.MCH) > 0 {
		p, err := json.Marshal(m.MCH)
		if err != nil {
			return nil, fmt.Errorf("marshaling broadcast channels: %w", err)
		}
		data.MCH.Valid = true
		data.MCH.String = string(p)
	}

	return &data, nil
}
