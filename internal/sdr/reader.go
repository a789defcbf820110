package sdr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// DefaultBufferSamples sizes the receive ring for half a second of samples
// at the widest supported rate.
const DefaultBufferSamples = 15_360_000

// ErrBrokenPipe is returned when the device process pipe fails mid-stream.
var ErrBrokenPipe = errors.New("broken pipe")

// Handler builds the device process for the currently tuned parameters.
type Handler interface {
	Cmd(ctx context.Context, p TuneParams) *exec.Cmd
	Device() string
}

// WithLogger sets the logger for the reader.
func WithLogger(logger *slog.Logger) func(*Reader) {
	return func(r *Reader) {
		device := "capture"
		if r.handler != nil {
			device = r.handler.Device()
		}
		r.logger = logger.With(slog.String("device", device))
	}
}

// WithCaptureIn makes the reader play back the given CF32 capture file
// instead of streaming from the device.
func WithCaptureIn(path string) func(*Reader) {
	return func(r *Reader) {
		r.captureInPath = path
	}
}

// WithCaptureOut records all received samples to the given CF32 file.
// Writing starts disabled and is toggled with EnableCaptureWrite.
func WithCaptureOut(path string) func(*Reader) {
	return func(r *Reader) {
		r.captureOutPath = path
	}
}

// WithBufferSamples overrides the receive ring capacity.
func WithBufferSamples(n int) func(*Reader) {
	return func(r *Reader) {
		r.bufferSamples = n
	}
}

// Reader implements Source over an external SoapySDR streaming process, or
// over a recorded capture file when WithCaptureIn is set. One Reader owns one
// device for the process lifetime.
type Reader struct {
	handler Handler
	params  TuneParams

	buffer        *SampleBuffer
	bufferSamples int

	captureInPath  string
	captureOutPath string
	captureIn      *os.File
	captureOut     *os.File
	captureWrite   atomic.Bool

	playbackBuf []byte

	isRunning atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	logger *slog.Logger
}

// New creates a Reader for the given device handler.
func New(handler Handler, options ...func(*Reader)) (*Reader, error) {
	r := Reader{
		handler:       handler,
		bufferSamples: DefaultBufferSamples,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	var err error
	if r.buffer, err = NewSampleBuffer(r.bufferSamples); err != nil {
		return nil, err
	}

	if r.captureInPath != "" {
		if r.captureIn, err = os.Open(r.captureInPath); err != nil {
			return nil, fmt.Errorf("opening capture file: %w", err)
		}
	}
	if r.captureOutPath != "" {
		if r.captureOut, err = os.Create(r.captureOutPath); err != nil {
			return nil, fmt.Errorf("creating capture file: %w", err)
		}
	}

	return &r, nil
}

// Tune stores the RF parameter tuple the device process is started with.
// The reader must be stopped.
func (r *Reader) Tune(p TuneParams) error {
	if r.isRunning.Load() {
		return ErrRunning
	}

	r.params = p

	freq, freqSuffix := humanize.ComputeSI(float64(p.Frequency))
	rate, rateSuffix := humanize.ComputeSI(float64(p.SampleRate))
	r.logger.Info("tuned",
		slog.String("frequency", fmt.Sprintf("%.3f %sHz", freq, freqSuffix)),
		slog.String("sampleRate", fmt.Sprintf("%.2f %sHz", rate, rateSuffix)),
		slog.Float64("gain", p.Gain),
		slog.String("antenna", p.Antenna),
		slog.Bool("agc", p.AGC))

	return nil
}

// Start launches the device process (or arms capture playback) at the
// current parameters.
func (r *Reader) Start() error {
	if r.isRunning.Load() {
		return fmt.Errorf("source is already running")
	}

	r.isRunning.Store(true)
	r.buffer.Reopen()

	if r.captureIn != nil {
		return nil // playback delivers samples synchronously
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	cmd := r.handler.Cmd(ctx, r.params)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.isRunning.Store(false)
		return fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.isRunning.Store(false)
		return fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		r.isRunning.Store(false)
		return fmt.Errorf("error starting device process: %w", err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.logger.Info("starting sample stream...")

		done := make(chan error, 3) // expects three results from three goroutines

		go r.pumpStdout(stdout, done)
		go r.handleStderr(stderr, done)
		go r.handleCmdWait(cmd, done)

		for i := 0; i < cap(done); i++ {
			if err := <-done; err != nil {
				cancel()
				r.logger.Error(err.Error())
			}
		}

		close(done)
		r.buffer.Close() // unblock a pending fetch, surfaces as sync loss
		r.logger.Info("sample stream stopped")
	}()

	return nil
}

// Stop terminates the device process and unblocks a pending Samples call.
func (r *Reader) Stop() error {
	if !r.isRunning.Load() {
		return nil
	}

	if r.cancel != nil {
		r.cancel()
		r.wg.Wait()
		r.cancel = nil
	}

	r.buffer.Close()
	r.isRunning.Store(false)
	return nil
}

// Samples blocks until buf is filled with the next samples from the stream.
func (r *Reader) Samples(buf []complex64) error {
	if r.captureIn != nil {
		return r.playbackSamples(buf)
	}
	return r.buffer.Read(buf)
}

func (r *Reader) playbackSamples(buf []complex64) error {
	if !r.isRunning.Load() {
		return ErrStopped
	}

	need := len(buf) * BytesPerSample
	if len(r.playbackBuf) < need {
		r.playbackBuf = make([]byte, need)
	}

	if _, err := io.ReadFull(r.captureIn, r.playbackBuf[:need]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrEndOfCapture
		}
		return fmt.Errorf("reading capture file: %w", err)
	}

	DecodeCF32(buf, r.playbackBuf[:need])
	return nil
}

// SampleRate returns the currently tuned sample rate.
func (r *Reader) SampleRate() uint32 {
	return r.params.SampleRate
}

// ClearBuffer discards any buffered samples.
func (r *Reader) ClearBuffer() {
	r.buffer.Clear()
}

// EnableCaptureWrite starts recording received samples, if a capture output
// file was configured.
func (r *Reader) EnableCaptureWrite() {
	if r.captureOut != nil {
		r.captureWrite.Store(true)
	}
}

// DisableCaptureWrite pauses capture recording.
func (r *Reader) DisableCaptureWrite() {
	r.captureWrite.Store(false)
}

// Close stops the reader and releases capture files.
func (r *Reader) Close() error {
	err := r.Stop()

	if r.captureIn != nil {
		err = errors.Join(err, r.captureIn.Close())
		r.captureIn = nil
	}
	if r.captureOut != nil {
		err = errors.Join(err, r.captureOut.Close())
		r.captureOut = nil
	}
	return err
}

// pumpStdout decodes the CF32 stream from the device process into the ring
// buffer, teeing raw bytes into the capture file when recording is enabled.
func (r *Reader) pumpStdout(stdout io.Reader, done chan<- error) {
	raw := make([]byte, 1<<16)
	samples := make([]complex64, len(raw)/BytesPerSample)
	pending := 0

	for {
		n, err := stdout.Read(raw[pending:])
		if n > 0 {
			total := pending + n
			decoded := DecodeCF32(samples, raw[:total])
			used := decoded * BytesPerSample

			if decoded > 0 {
				if r.captureWrite.Load() {
					if _, werr := r.captureOut.Write(raw[:used]); werr != nil {
						r.logger.Warn(fmt.Sprintf("capture write failed: %s", werr.Error()))
						r.captureWrite.Store(false)
					}
				}
				r.buffer.Write(samples[:decoded])
			}

			pending = copy(raw, raw[used:total])
		}

		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
				done <- fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
				return
			}
			done <- nil
			return
		}
	}
}

// handleStderr reads from stderr and logs device diagnostics.
func (r *Reader) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		r.logger.Warn(fmt.Sprintf("%s >> %s", r.handler.Device(), line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleCmdWait waits for the device process to exit.
func (r *Reader) handleCmdWait(cmd *exec.Cmd, done chan<- error) {
	if err := cmd.Wait(); err != nil && !errors.Is(err, context.Canceled) && cmd.ProcessState.ExitCode() != -1 {
		done <- fmt.Errorf("device process exited with error: %w", err)
		return
	}

	done <- nil
}
