package sdr

import (
	"fmt"
	"sync"
)

// SampleBuffer is a thread-safe ring buffer of complex IQ samples sitting
// between the device pump goroutine and the blocking Samples fetch. When the
// consumer falls behind, the oldest samples are dropped so the pump never
// stalls the device pipe; drops are counted as overruns.
type SampleBuffer struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond

	buf      []complex64
	head     int // next read position
	size     int // samples currently buffered
	closed   bool
	overruns uint64
}

// NewSampleBuffer creates a buffer holding up to capacity samples.
func NewSampleBuffer(capacity int) (*SampleBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid buffer capacity: %d", capacity)
	}

	b := SampleBuffer{buf: make([]complex64, capacity)}
	b.nonEmpty = sync.NewCond(&b.mu)
	return &b, nil
}

// Write appends samples, dropping the oldest buffered samples when the ring
// is full. Safe to call concurrently with Read.
func (b *SampleBuffer) Write(samples []complex64) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	capacity := len(b.buf)
	if len(samples) > capacity {
		// Only the newest capacity-worth of samples can survive anyway.
		b.overruns += uint64(len(samples) - capacity)
		samples = samples[len(samples)-capacity:]
	}

	if overflow := b.size + len(samples) - capacity; overflow > 0 {
		b.head = (b.head + overflow) % capacity
		b.size -= overflow
		b.overruns += uint64(overflow)
	}

	tail := (b.head + b.size) % capacity
	n := copy(b.buf[tail:], samples)
	copy(b.buf, samples[n:])
	b.size += len(samples)

	b.nonEmpty.Broadcast()
}

// Read blocks until len(out) samples are available and copies them out. It
// returns ErrStopped once the buffer is closed and drained below the request
// size.
func (b *SampleBuffer) Read(out []complex64) error {
	if len(out) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	read := 0
	for read < len(out) {
		for b.size == 0 {
			if b.closed {
				return ErrStopped
			}
			b.nonEmpty.Wait()
		}

		n := min(len(out)-read, b.size)
		first := copy(out[read:read+n], b.buf[b.head:])
		copy(out[read+first:read+n], b.buf)

		b.head = (b.head + n) % len(b.buf)
		b.size -= n
		read += n
	}

	return nil
}

// Clear discards all buffered samples.
func (b *SampleBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// Close releases blocked readers. A closed buffer discards further writes.
func (b *SampleBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.nonEmpty.Broadcast()
}

// Reopen makes a closed buffer writable again. Called on source restart.
func (b *SampleBuffer) Reopen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = false
	b.head = 0
	b.size = 0
}

// Size returns the number of buffered samples.
func (b *SampleBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Overruns returns the total number of samples dropped due to consumer lag.
func (b *SampleBuffer) Overruns() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overruns
}
