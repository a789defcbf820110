package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rt-wireless/mbms-modem/internal/frameproc"
	"github.com/rt-wireless/mbms-modem/internal/monitoring"
	"github.com/rt-wireless/mbms-modem/internal/phy"
	"github.com/rt-wireless/mbms-modem/internal/receiver"
	"github.com/rt-wireless/mbms-modem/internal/sdr"
	"github.com/rt-wireless/mbms-modem/internal/sdr/driver"
	"github.com/rt-wireless/mbms-modem/internal/sdr/soapy"
	"github.com/rt-wireless/mbms-modem/internal/storage"
)

const version = "1.0.0"

// EnumerateDevices writes the SDR devices visible to SoapySDR to w.
func EnumerateDevices(ctx context.Context, w io.Writer) error {
	out, err := soapy.Enumerate(ctx)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// Run wires the configured components together and drives the receiver until
// the context is cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	logger.Info(fmt.Sprintf("mbms-modem %s starting", version))

	capture := config.SDR.CaptureFile != ""

	var sink receiver.MeasurementSink
	if config.Measurement.Database != "" {
		store := storage.NewSqliteStore(config.Measurement.Database)
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn(fmt.Sprintf("closing measurement store: %s", err.Error()))
			}
		}()

		deviceType, deviceID := "soapysdr", config.SDR.DeviceArgs
		if capture {
			deviceType, deviceID = "capture", config.SDR.CaptureFile
		}

		sessionID, err := store.CreateSession(ctx, deviceType, deviceID, config)
		if err != nil {
			return fmt.Errorf("creating measurement session: %w", err)
		}
		logger.Info("measurement session created",
			slog.Int64("session", sessionID),
			slog.String("database", config.Measurement.Database))

		sink = &measurementSink{store: store, sessionID: sessionID}
	}

	source, err := createSource(config, capture, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			logger.Warn(fmt.Sprintf("closing RF source: %s", err.Error()))
		}
	}()

	services := make([]phy.MTCH, len(config.Phy.Services))
	for i, s := range config.Phy.Services {
		services[i] = phy.MTCH{LCID: s.LCID, TMGI: s.TMGI, Dest: s.Dest}
	}

	engine := phy.NewSoftEngine(source, phy.SoftEngineConfig{
		CASNofPRB:    config.Phy.NofPRB,
		CellID:       config.Phy.CellID,
		BroadcastPRB: config.Phy.BroadcastPrb,
		Services:     services,
	}, phy.WithSoftEngineLogger(logger))

	counters := monitoring.NewCounters()
	params := &monitoring.ParamStore{}

	var collector *monitoring.Collector
	if config.Monitoring.Enabled {
		if collector, err = monitoring.NewCollector(prometheus.NewRegistry()); err != nil {
			return fmt.Errorf("creating metrics collector: %w", err)
		}

		srv := &http.Server{
			Addr:    config.Monitoring.Listen,
			Handler: monitoring.APIHandler(collector, params),
		}
		go func() {
			logger.Info("monitoring API listening", slog.String("address", config.Monitoring.Listen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(fmt.Sprintf("monitoring API: %s", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	cas := frameproc.NewCasProcessor(counters, frameproc.WithCasLogger(logger))
	if err = cas.Init(); err != nil {
		return fmt.Errorf("initializing CAS processor: %w", err)
	}

	mbsfn := make([]*frameproc.MbsfnProcessor, config.Phy.MbsfnProcessors)
	for i := range mbsfn {
		p := frameproc.NewMbsfnProcessor(i, counters, frameproc.WithMbsfnLogger(logger))
		if err = p.Init(); err != nil {
			return fmt.Errorf("initializing MBSFN processor %d: %w", i, err)
		}
		mbsfn[i] = p
	}

	options := []func(*receiver.Receiver){receiver.WithLogger(logger)}
	if collector != nil {
		options = append(options, receiver.WithMetrics(collector))
	}
	if sink != nil {
		options = append(options, receiver.WithMeasurementSink(sink))
	}

	rx, err := receiver.New(receiver.Config{
		Frequencies:         config.SDR.CenterFrequencies,
		SearchSampleRate:    config.SDR.SearchSampleRate,
		Bandwidth:           config.SDR.Bandwidth,
		Gain:                config.SDR.Gain,
		Antenna:             config.SDR.Antenna,
		AGC:                 config.SDR.AGC,
		CaptureBandwidthMHz: config.SDR.CaptureBandwidthMHz,
		Workers:             config.Phy.Threads,
		MainPriority:        config.Settings.MainThreadPriority,
		WorkerPriority:      config.Settings.PoolThreadPriority,
		SyncAttempts:        config.Phy.SyncAttempts,
		MeasurementInterval: config.Measurement.IntervalSecs * phy.SubframesPerSec,
	}, source, engine, stack{counters: counters}, cas, mbsfn, params, counters, options...)
	if err != nil {
		return fmt.Errorf("creating receiver: %w", err)
	}

	return rx.Run(ctx)
}

func createSource(config *Config, capture bool, logger *slog.Logger) (*sdr.Reader, error) {
	options := []func(*sdr.Reader){sdr.WithLogger(logger)}
	if config.SDR.BufferSamples > 0 {
		options = append(options, sdr.WithBufferSamples(config.SDR.BufferSamples))
	}
	if config.SDR.WriteCaptureFile != "" {
		options = append(options, sdr.WithCaptureOut(config.SDR.WriteCaptureFile))
	}

	var handler sdr.Handler
	if capture {
		options = append(options, sdr.WithCaptureIn(config.SDR.CaptureFile))
	} else {
		if _, err := driver.FindRuntime(soapy.Runtime); err != nil {
			return nil, fmt.Errorf("locating %s: %w", soapy.Runtime, err)
		}

		var err error
		if handler, err = soapy.New(&soapy.Config{DeviceArgs: config.SDR.DeviceArgs}); err != nil {
			return nil, fmt.Errorf("creating SoapySDR device: %w", err)
		}
	}

	source, err := sdr.New(handler, options...)
	if err != nil {
		return nil, fmt.Errorf("creating RF source: %w", err)
	}
	return source, nil
}

// stack stands in for the protocol layers above the physical layer. Losing
// the cell discards everything they accumulated.
type stack struct {
	counters *monitoring.Counters
}

func (s stack) Reset() {
	s.counters.Reset()
}

// measurementSink adapts the measurement store to the receiver's sink.
type measurementSink struct {
	store     storage.Store
	sessionID int64
}

func (s *measurementSink) Append(ctx context.Context, snap monitoring.Snapshot) error {
	m := storage.Measurement{
		Timestamp: time.Now().UTC(),
		CINRdB:    snap.CINRdB,
		PDSCHMCS:  snap.PDSCH.MCS,
		PDSCHBLER: snap.PDSCH.BLER(),
		PDSCHBER:  snap.PDSCH.BER,
		MCCHMCS:   snap.MCCH.MCS,
		MCCHBLER:  snap.MCCH.BLER(),
		MCCHBER:   snap.MCCH.BER,
	}

	for i, mch := range snap.MCH {
		mm := storage.MCHMeasurement{
			Index: i,
			MCS:   mch.MCS,
			BLER:  mch.BLER(),
			BER:   mch.BER,
		}
		for _, t := range mch.MTCHs {
			mm.MTCHs = append(mm.MTCHs, storage.MTCHMeasurement{LCID: t.LCID, TMGI: t.TMGI, Dest: t.Dest})
		}
		m.MCH = append(m.MCH, mm)
	}

	_, err := s.store.StoreMeasurement(ctx, s.sessionID, &m)
	return err
}
