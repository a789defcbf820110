package sdr

import (
	"errors"
	"testing"
	"time"
)

func TestSampleBuffer_WriteRead(t *testing.T) {
	b, err := NewSampleBuffer(16)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	in := []complex64{1, 2, 3, 4}
	b.Write(in)

	if size := b.Size(); size != len(in) {
		t.Fatalf("Expected buffer size %d, got %d", len(in), size)
	}

	out := make([]complex64, 4)
	if err = b.Read(out); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("Expected sample %v at %d, got %v", in[i], i, out[i])
		}
	}
}

func TestSampleBuffer_DropOldest(t *testing.T) {
	b, err := NewSampleBuffer(4)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	b.Write([]complex64{1, 2, 3, 4})
	b.Write([]complex64{5, 6}) // 1 and 2 fall off

	if n := b.Overruns(); n != 2 {
		t.Errorf("Expected 2 overrun samples, got %d", n)
	}

	out := make([]complex64, 4)
	if err = b.Read(out); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	expected := []complex64{3, 4, 5, 6}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("Expected sample %v at %d, got %v", expected[i], i, out[i])
		}
	}
}

func TestSampleBuffer_BlockingRead(t *testing.T) {
	b, err := NewSampleBuffer(16)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		out := make([]complex64, 8)
		done <- b.Read(out)
	}()

	// The reader needs 8 samples; deliver them in two writes.
	b.Write([]complex64{1, 2, 3, 4})
	time.Sleep(10 * time.Millisecond)
	b.Write([]complex64{5, 6, 7, 8})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not complete after enough samples were written")
	}
}

func TestSampleBuffer_CloseReleasesReader(t *testing.T) {
	b, err := NewSampleBuffer(16)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		out := make([]complex64, 8)
		done <- b.Read(out)
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("Expected ErrStopped, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not release the blocked reader")
	}
}

func TestSampleBuffer_Reopen(t *testing.T) {
	b, err := NewSampleBuffer(16)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	b.Write([]complex64{1, 2})
	b.Close()
	b.Write([]complex64{3, 4}) // discarded while closed

	b.Reopen()
	if size := b.Size(); size != 0 {
		t.Fatalf("Expected an empty buffer after reopen, got %d samples", size)
	}

	b.Write([]complex64{5})
	out := make([]complex64, 1)
	if err = b.Read(out); err != nil {
		t.Fatalf("Read after reopen failed: %v", err)
	}
	if out[0] != 5 {
		t.Errorf("Expected sample 5 after reopen, got %v", out[0])
	}
}
