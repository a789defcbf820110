package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rt-wireless/mbms-modem/internal/storage"
)

// Point is one sample of a plotted series.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// Series is a named line on the chart.
type Series struct {
	Name   string
	Points []Point
}

// ReportData holds everything the renderer needs: the quality series of one
// session and their shared time range.
type ReportData struct {
	SessionID int64

	CINR      Series
	PDSCHBLER Series
	MCCHBLER  Series
	MCHBLER   []Series

	TimestampStart time.Time
	TimestampEnd   time.Time
}

func loadReportData(ctx context.Context, store storage.Store, config *Config) (*ReportData, error) {
	var opts []storage.ReaderOption
	switch {
	case config.From != nil && config.To != nil:
		opts = append(opts, storage.WithTimeRange(config.From.UTC(), config.To.UTC()))
	case config.From != nil:
		opts = append(opts, storage.WithStartTime(config.From.UTC()))
	case config.To != nil:
		opts = append(opts, storage.WithEndTime(config.To.UTC()))
	}

	reader, err := store.ReadMeasurements(ctx, config.SessionID, opts...)
	if err != nil {
		return nil, fmt.Errorf("reading measurements: %w", err)
	}
	defer reader.Close()

	data := ReportData{
		SessionID: config.SessionID,
		CINR:      Series{Name: "CINR (dB)"},
		PDSCHBLER: Series{Name: "PDSCH BLER"},
		MCCHBLER:  Series{Name: "MCCH BLER"},
	}

	for reader.Next() {
		m := reader.Current()

		if data.TimestampStart.IsZero() || m.Timestamp.Before(data.TimestampStart) {
			data.TimestampStart = m.Timestamp
		}
		if m.Timestamp.After(data.TimestampEnd) {
			data.TimestampEnd = m.Timestamp
		}

		data.CINR.Points = append(data.CINR.Points, Point{m.Timestamp, m.CINRdB})
		data.PDSCHBLER.Points = append(data.PDSCHBLER.Points, Point{m.Timestamp, m.PDSCHBLER})
		data.MCCHBLER.Points = append(data.MCCHBLER.Points, Point{m.Timestamp, m.MCCHBLER})

		for _, mch := range m.MCH {
			for len(data.MCHBLER) <= mch.Index {
				data.MCHBLER = append(data.MCHBLER, Series{
					Name: fmt.Sprintf("MCH %d BLER", len(data.MCHBLER)),
				})
			}
			data.MCHBLER[mch.Index].Points = append(data.MCHBLER[mch.Index].Points, Point{m.Timestamp, mch.BLER})
		}
	}
	if err = reader.Err(); err != nil {
		return nil, fmt.Errorf("iterating measurements: %w", err)
	}

	if len(data.CINR.Points) == 0 {
		return nil, fmt.Errorf("session %d has no measurements in the selected range", config.SessionID)
	}

	return &data, nil
}
