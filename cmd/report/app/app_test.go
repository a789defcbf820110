package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rt-wireless/mbms-modem/internal/storage"
)

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewSqliteStore(filepath.Join(t.TempDir(), "measurements.db"))
	defer store.Close()

	if _, err := store.CreateSession(ctx, "soapysdr", "driver=lime", nil); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if _, err := store.CreateSession(ctx, "capture", "samples.cf32", nil); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	var buf bytes.Buffer
	if err := listSessions(ctx, store, &buf); err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 session lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "1\t") || !strings.Contains(lines[0], "soapysdr\tdriver=lime") {
		t.Errorf("Unexpected first session line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2\t") || !strings.Contains(lines[1], "capture\tsamples.cf32") {
		t.Errorf("Unexpected second session line: %q", lines[1])
	}
}

func TestListSessions_Empty(t *testing.T) {
	ctx := context.Background()
	store := storage.NewSqliteStore(filepath.Join(t.TempDir(), "measurements.db"))
	defer store.Close()

	var buf bytes.Buffer
	if err := listSessions(ctx, store, &buf); err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "no sessions recorded" {
		t.Errorf("Expected an empty-database notice, got %q", got)
	}
}
