package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReaderOption configures a MeasurementReader.
type ReaderOption func(*MeasurementReader)

// WithStartTime limits the reader to measurements at or after startTime.
func WithStartTime(startTime time.Time) ReaderOption {
	return func(r *MeasurementReader) {
		r.startTime = &startTime
	}
}

// WithEndTime limits the reader to measurements at or before endTime.
func WithEndTime(endTime time.Time) ReaderOption {
	return func(r *MeasurementReader) {
		r.endTime = &endTime
	}
}

// WithTimeRange limits the reader to measurements within [startTime, endTime].
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *MeasurementReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// WithDescending reverses the reader to newest-first order.
func WithDescending() ReaderOption {
	return func(r *MeasurementReader) {
		r.descending = true
	}
}

// MeasurementReader provides iteration over a session's measurement rows.
type MeasurementReader struct {
	rows *sql.Rows

	startTime  *time.Time
	endTime    *time.Time
	descending bool

	current *Measurement
	err     error
}

func newMeasurementReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*MeasurementReader, error) {
	var r MeasurementReader
	for _, opt := range opts {
		opt(&r)
	}

	var sb strings.Builder
	sb.WriteString(selectMeasurementsSQL)

	args := []any{sessionID}
	if r.startTime != nil {
		sb.WriteString(" AND timestamp >= ?")
		args = append(args, r.startTime.UTC())
	}
	if r.endTime != nil {
		sb.WriteString(" AND timestamp <= ?")
		args = append(args, r.endTime.UTC())
	}

	sb.WriteString(" ORDER BY timestamp")
	if r.descending {
		sb.WriteString(" DESC")
	}

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}

	r.rows = rows
	return &r, nil
}

// Next advances to the next measurement. It returns false when the rows are
// exhausted or an error occurred; check Err after the loop.
func (r *MeasurementReader) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}

	var m Measurement
	var mch sql.NullString
	if err := r.rows.Scan(
		&m.ID,
		&m.SessionID,
		&m.Timestamp,
		&m.CINRdB,
		&m.PDSCHMCS,
		&m.PDSCHBLER,
		&m.PDSCHBER,
		&m.MCCHMCS,
		&m.MCCHBLER,
		&m.MCCHBER,
		&mch,
	); err != nil {
		r.err = fmt.Errorf("scanning measurement: %w", err)
		return false
	}

	if mch.Valid {
		if err := json.Unmarshal([]byte(mch.String), &m.MCH); err != nil {
			r.err = fmt.Errorf("unmarshaling broadcast channels: %w", err)
			return false
		}
	}

	r.current = &m
	return true
}

// Current returns the measurement produced by the last successful Next.
func (r *MeasurementReader) Current() *Measurement {
	return r.current
}

// Err returns the first error encountered during iteration.
func (r *MeasurementReader) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

// Close releases the reader's database resources.
func (r *MeasurementReader) Close() error {
	return r.rows.Close()
}
