// Package app renders a session's quality measurements into a time-series
// chart image.
package app

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rt-wireless/mbms-modem/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	if config.SessionID == 0 {
		return listSessions(ctx, store, os.Stdout)
	}

	session, err := store.Session(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("session %d not found", config.SessionID)
	}

	data, err := loadReportData(ctx, store, config)
	if err != nil {
		return err
	}

	if config.Verbose {
		logger.Info("rendering report",
			slog.Int64("session", data.SessionID),
			slog.Int("measurements", len(data.CINR.Points)),
			slog.Int("mchChannels", len(data.MCHBLER)))
	}

	renderer := NewRenderer(config.Width, config.Height)
	img := renderer.Render(data)

	if !config.NoAnnotations {
		annotator, err := NewAnnotator(config.FontPath)
		if err != nil {
			return err
		}
		if err = annotator.Annotate(img, renderer, data); err != nil {
			return fmt.Errorf("annotating: %w", err)
		}
	}

	return writeImage(img, config)
}

// listSessions writes one line per recorded session, oldest first.
func listSessions(ctx context.Context, store storage.Store, w io.Writer) error {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("reading sessions: %w", err)
	}
	if len(sessions) == 0 {
		_, err = fmt.Fprintln(w, "no sessions recorded")
		return err
	}

	for _, s := range sessions {
		if _, err = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			s.ID, s.StartTime.Format(time.DateTime), s.DeviceType, s.DeviceID); err != nil {
			return err
		}
	}
	return nil
}

func writeImage(img *image.RGBA, config *Config) (err error) {
	f, err := os.Create(config.OutputFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	switch config.Format {
	case ImageJPEG:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}
	return nil
}
