// Package audio implements reference-clip capture and waveform playback.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattsolo1/grove-voice/pkg/models"
)

var (
	// ErrNotRecording is returned by Stop when no recording is in progress.
	ErrNotRecording = errors.New("not recording")

	// ErrAlreadyRecording is returned by Start while a recording is in progress.
	ErrAlreadyRecording = errors.New("a recording is already in progress")

	// ErrDeviceUnavailable is returned when the capture device cannot be opened.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
)

// PermissionError reports that microphone access was denied.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	if e.Err == nil {
		return "microphone permission denied"
	}
	return fmt.Sprintf("microphone permission denied: %v", e.Err)
}

func (e *PermissionError) Unwrap() error {
	return e.Err
}

// Capturer acquires the microphone.
type Capturer interface {
	Open(ctx context.Context) (Capture, error)
}

// Capture is an active microphone capture.
type Capture interface {
	// Finish stops capturing and returns the encoded clip.
	Finish() ([]byte, error)
	// Abort stops capturing and discards the clip.
	Abort() error
}

// RecorderState is Idle or Recording.
type RecorderState int

const (
	Idle RecorderState = iota
	Recording
)

func (s RecorderState) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// DefaultTickInterval is the duration ticker period.
const DefaultTickInterval = 100 * time.Millisecond

// Recorder drives one capture surface through Idle -> Recording -> Idle.
type Recorder struct {
	capturer Capturer
	blobs    *BlobStore
	interval time.Duration
	onTick   func(time.Duration)

	mu        sync.Mutex
	state     RecorderState
	acquiring bool
	capture   Capture
	elapsed   time.Duration
	stopTick  chan struct{}
	tickDone  chan struct{}
}

// RecorderOption customises a Recorder.
type RecorderOption func(*Recorder)

// WithTickInterval changes the duration ticker period.
func WithTickInterval(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithTickHandler registers fn to receive the accumulated duration on every tick.
func WithTickHandler(fn func(time.Duration)) RecorderOption {
	return func(r *Recorder) {
		r.onTick = fn
	}
}

// NewRecorder creates an idle recorder that stores finished clips in blobs.
func NewRecorder(c Capturer, blobs *BlobStore, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		capturer: c,
		blobs:    blobs,
		interval: DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current recorder state.
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed returns the accumulated recording duration.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Start acquires the microphone and begins capturing. On failure the recorder stays Idle.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state == Recording || r.acquiring {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.acquiring = true
	r.mu.Unlock()

	capture, err := r.capturer.Open(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.acquiring = false
	if err != nil {
		r.state = Idle
		return err
	}

	r.capture = capture
	r.state = Recording
	r.elapsed = 0
	r.stopTick = make(chan struct{})
	r.tickDone = make(chan struct{})
	go r.tick(r.stopTick, r.tickDone)
	return nil
}

// tick accumulates fixed intervals rather than measuring wall-clock time, so a
// stalled process does not inflate the duration.
func (r *Recorder) tick(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			r.mu.Lock()
			r.elapsed += r.interval
			elapsed := r.elapsed
			fn := r.onTick
			r.mu.Unlock()
			if fn != nil {
				fn(elapsed)
			}
		case <-stop:
			return
		}
	}
}

func (r *Recorder) detach() (Capture, time.Duration, error) {
	r.mu.Lock()
	if r.state != Recording {
		r.mu.Unlock()
		return nil, 0, ErrNotRecording
	}
	capture := r.capture
	stop, done := r.stopTick, r.tickDone
	r.capture = nil
	r.state = Idle
	r.mu.Unlock()

	close(stop)
	<-done

	return capture, r.Elapsed(), nil
}

// Stop finalises the capture into a blob and returns the clip.
func (r *Recorder) Stop() (models.AudioState, error) {
	capture, elapsed, err := r.detach()
	if err != nil {
		return models.AudioState{}, err
	}

	data, err := capture.Finish()
	if err != nil {
		return models.AudioState{}, fmt.Errorf("finish capture: %w", err)
	}

	url, err := r.blobs.Create(data, ".wav")
	if err != nil {
		return models.AudioState{}, err
	}

	return models.AudioState{
		URL:      url,
		Duration: models.FormatDuration(elapsed),
		Name:     fmt.Sprintf("recording-%s.wav", time.Now().Format("20060102-150405")),
	}, nil
}

// Cancel aborts an in-progress recording and discards it.
func (r *Recorder) Cancel() error {
	capture, _, err := r.detach()
	if err != nil {
		return err
	}
	return capture.Abort()
}
