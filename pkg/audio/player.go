package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUnplayable is returned for a clip that failed to decode or play.
	ErrUnplayable = errors.New("clip cannot be played")

	// ErrNothingLoaded is returned by Play and Pause before a clip is loaded.
	ErrNothingLoaded = errors.New("no clip loaded")
)

// EventType is a playback event emitted by an engine instance.
type EventType int

const (
	EventPlay EventType = iota
	EventPause
	EventFinish
	EventError
)

// Event is one engine notification.
type Event struct {
	Type EventType
	Err  error
}

// Engine creates playback instances for local files.
type Engine interface {
	Load(path string) (Instance, error)
}

// Instance is one loaded clip. Play and Pause are requests; the outcome arrives
// on Events. Close must close the events channel.
type Instance interface {
	Play() error
	Pause() error
	Events() <-chan Event
	Close() error
}

// PlayerState is the player's lifecycle state.
type PlayerState int

const (
	StateEmpty PlayerState = iota
	StateLoading
	StateReady
	StatePlaying
	StateUnplayable
)

func (s PlayerState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StateUnplayable:
		return "unplayable"
	default:
		return "empty"
	}
}

// DefaultWaveformBuckets is the peak resolution kept per clip.
const DefaultWaveformBuckets = 256

// Player owns at most one engine instance at a time.
type Player struct {
	engine   Engine
	blobs    *BlobStore
	buckets  int
	onChange func(PlayerState)

	loadMu sync.Mutex

	mu        sync.Mutex
	gen       uint64
	url       string
	state     PlayerState
	inst      Instance
	wave      *Waveform
	err       error
	offset    time.Duration
	playStart time.Time
}

// PlayerOption customises a Player.
type PlayerOption func(*Player)

// WithStateHandler registers fn to be called after every state change.
func WithStateHandler(fn func(PlayerState)) PlayerOption {
	return func(p *Player) { p.onChange = fn }
}

// WithWaveformBuckets sets the number of peaks decoded per clip.
func WithWaveformBuckets(n int) PlayerOption {
	return func(p *Player) {
		if n > 0 {
			p.buckets = n
		}
	}
}

// NewPlayer creates an empty player.
func NewPlayer(engine Engine, blobs *BlobStore, opts ...PlayerOption) *Player {
	p := &Player{engine: engine, blobs: blobs, buckets: DefaultWaveformBuckets}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load replaces the current clip with url. The previous instance is closed before
// the new one is created. Failures leave the player Unplayable and are returned.
func (p *Player) Load(url string) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	p.mu.Lock()
	p.gen++
	gen := p.gen
	old := p.inst
	p.inst, p.wave, p.err = nil, nil, nil
	p.url = url
	p.offset = 0
	p.state = StateLoading
	p.mu.Unlock()
	p.notify(StateLoading)

	if old != nil {
		_ = old.Close()
	}

	path, err := p.blobs.Open(url)
	if err != nil {
		return p.fail(gen, err)
	}

	var wave *Waveform
	if IsWAV(path) {
		wave, err = DecodeWaveform(path, p.buckets)
		if err != nil {
			return p.fail(gen, err)
		}
	}

	inst, err := p.engine.Load(path)
	if err != nil {
		return p.fail(gen, err)
	}

	p.mu.Lock()
	p.inst = inst
	p.wave = wave
	p.state = StateReady
	p.mu.Unlock()
	p.notify(StateReady)

	go p.watch(gen, inst.Events())
	return nil
}

func (p *Player) fail(gen uint64, err error) error {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return err
	}
	p.state = StateUnplayable
	p.err = err
	p.mu.Unlock()
	p.notify(StateUnplayable)
	return fmt.Errorf("%w: %v", ErrUnplayable, err)
}

// watch applies engine events to the state. Events from a replaced instance are dropped.
func (p *Player) watch(gen uint64, events <-chan Event) {
	for ev := range events {
		p.mu.Lock()
		if gen != p.gen {
			p.mu.Unlock()
			return
		}
		switch ev.Type {
		case EventPlay:
			p.state = StatePlaying
			p.playStart = time.Now()
		case EventPause:
			if p.state == StatePlaying {
				p.offset += time.Since(p.playStart)
			}
			p.state = StateReady
		case EventFinish:
			p.state = StateReady
			p.offset = 0
		case EventError:
			p.state = StateUnplayable
			p.err = ev.Err
		}
		state := p.state
		p.mu.Unlock()
		p.notify(state)
	}
}

func (p *Player) notify(s PlayerState) {
	if p.onChange != nil {
		p.onChange(s)
	}
}

func (p *Player) current() (Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.state == StateUnplayable:
		return nil, ErrUnplayable
	case p.inst == nil:
		return nil, ErrNothingLoaded
	}
	return p.inst, nil
}

// Play asks the engine to start playback.
func (p *Player) Play() error {
	inst, err := p.current()
	if err != nil {
		return err
	}
	return inst.Play()
}

// Pause asks the engine to pause playback.
func (p *Player) Pause() error {
	inst, err := p.current()
	if err != nil {
		return err
	}
	return inst.Pause()
}

// Toggle pauses when playing and plays otherwise.
func (p *Player) Toggle() error {
	if p.Playing() {
		return p.Pause()
	}
	return p.Play()
}

// Playing reports whether the engine last reported playback in progress.
func (p *Player) Playing() bool {
	return p.State() == StatePlaying
}

// State returns the current state.
func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the reason the clip is unplayable, if any.
func (p *Player) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// URL returns the loaded clip URL.
func (p *Player) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Waveform returns the decoded peaks, or nil when the clip has none.
func (p *Player) Waveform() *Waveform {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wave
}

// Position estimates the playback position.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos := p.offset
	if p.state == StatePlaying {
		pos += time.Since(p.playStart)
	}
	if p.wave != nil && p.wave.Duration > 0 && pos > p.wave.Duration {
		pos = p.wave.Duration
	}
	return pos
}

// Progress is Position as a fraction of the clip duration.
func (p *Player) Progress() float64 {
	w := p.Waveform()
	if w == nil || w.Duration <= 0 {
		return 0
	}
	return float64(p.Position()) / float64(w.Duration)
}

// Close tears down the current instance and empties the player.
func (p *Player) Close() error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	p.mu.Lock()
	p.gen++
	old := p.inst
	p.inst, p.wave, p.err = nil, nil, nil
	p.url = ""
	p.offset = 0
	p.state = StateEmpty
	p.mu.Unlock()
	p.notify(StateEmpty)

	if old != nil {
		return old.Close()
	}
	return nil
}
