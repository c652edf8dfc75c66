package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Placeholders substituted in command templates.
const (
	placeholderFile   = "{file}"
	placeholderOffset = "{offset}"
)

// DefaultRecordCommand captures mono 32 kHz WAV from the default input device.
func DefaultRecordCommand() []string {
	input := []string{"-f", "pulse", "-i", "default"}
	switch runtime.GOOS {
	case "darwin":
		input = []string{"-f", "avfoundation", "-i", ":0"}
	case "windows":
		input = []string{"-f", "dshow", "-i", "audio=default"}
	}
	args := []string{"ffmpeg", "-hide_banner", "-loglevel", "error"}
	args = append(args, input...)
	return append(args, "-ac", "1", "-ar", "32000", "-y", placeholderFile)
}

// DefaultPlayCommand plays a file from an offset without opening a window.
func DefaultPlayCommand() []string {
	return []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "error", "-ss", placeholderOffset, placeholderFile}
}

func expand(template []string, file string, offset time.Duration) []string {
	out := make([]string, len(template))
	for i, arg := range template {
		arg = strings.ReplaceAll(arg, placeholderFile, file)
		arg = strings.ReplaceAll(arg, placeholderOffset, strconv.FormatFloat(offset.Seconds(), 'f', 3, 64))
		out[i] = arg
	}
	return out
}

// CommandCapturer records through an external program that writes a WAV file.
type CommandCapturer struct {
	Command []string
	// StartupGrace is how long a freshly started capture must survive before it is
	// considered to hold the device.
	StartupGrace time.Duration
}

// NewCommandCapturer creates a capturer for the given command template.
func NewCommandCapturer(command []string) *CommandCapturer {
	if len(command) == 0 {
		command = DefaultRecordCommand()
	}
	return &CommandCapturer{Command: command, StartupGrace: 300 * time.Millisecond}
}

func (c *CommandCapturer) Open(ctx context.Context) (Capture, error) {
	dir, err := os.MkdirTemp("", "ev-rec-")
	if err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	out := filepath.Join(dir, "capture.wav")
	args := expand(c.Command, out, 0)

	cmd := exec.Command(args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		os.RemoveAll(dir)
		if errors.Is(err, os.ErrPermission) {
			return nil, &PermissionError{Err: err}
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		os.RemoveAll(dir)
		return nil, classifyCaptureFailure(err, stderr.String())
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		os.RemoveAll(dir)
		return nil, ctx.Err()
	case <-time.After(c.StartupGrace):
	}

	return &commandCapture{cmd: cmd, done: done, dir: dir, file: out, stderr: &stderr}, nil
}

func classifyCaptureFailure(err error, stderr string) error {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission denied") || strings.Contains(lower, "not permitted") {
		return &PermissionError{Err: errors.New(msg)}
	}
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return fmt.Errorf("%w: %s", ErrDeviceUnavailable, msg)
}

type commandCapture struct {
	cmd    *exec.Cmd
	done   chan error
	dir    string
	file   string
	stderr *bytes.Buffer
	once   sync.Once
}

func (c *commandCapture) stop() error {
	var err error
	c.once.Do(func() {
		// ffmpeg finalises the WAV header on interrupt.
		if sigErr := c.cmd.Process.Signal(os.Interrupt); sigErr != nil {
			_ = c.cmd.Process.Kill()
		}
		select {
		case err = <-c.done:
		case <-time.After(5 * time.Second):
			_ = c.cmd.Process.Kill()
			err = <-c.done
		}
	})
	return err
}

func (c *commandCapture) Finish() ([]byte, error) {
	defer os.RemoveAll(c.dir)
	_ = c.stop()

	data, err := os.ReadFile(c.file)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("capture produced no audio: %s", strings.TrimSpace(c.stderr.String()))
	}
	return data, nil
}

func (c *commandCapture) Abort() error {
	defer os.RemoveAll(c.dir)
	_ = c.stop()
	return nil
}

// CommandEngine plays files through an external player process.
type CommandEngine struct {
	Command []string
}

// NewCommandEngine creates an engine for the given command template.
func NewCommandEngine(command []string) *CommandEngine {
	if len(command) == 0 {
		command = DefaultPlayCommand()
	}
	return &CommandEngine{Command: command}
}

func (e *CommandEngine) Load(path string) (Instance, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if _, err := exec.LookPath(e.Command[0]); err != nil {
		return nil, fmt.Errorf("player %q not found: %w", e.Command[0], err)
	}
	return &commandInstance{
		command: e.Command,
		path:    path,
		events:  make(chan Event, 16),
	}, nil
}

// commandInstance pauses by stopping the player and resumes from the remembered offset.
type commandInstance struct {
	command []string
	path    string
	events  chan Event

	mu       sync.Mutex
	cmd      *exec.Cmd
	started  time.Time
	offset   time.Duration
	pausing  bool
	closed   bool
	finished chan struct{}
}

func (i *commandInstance) emit(ev Event) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	select {
	case i.events <- ev:
	default:
	}
}

func (i *commandInstance) Play() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return ErrUnplayable
	}
	if i.cmd != nil {
		i.mu.Unlock()
		return nil
	}
	args := expand(i.command, i.path, i.offset)
	cmd := exec.Command(args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		i.mu.Unlock()
		return fmt.Errorf("start player: %w", err)
	}
	i.cmd = cmd
	i.started = time.Now()
	i.pausing = false
	finished := make(chan struct{})
	i.finished = finished
	i.mu.Unlock()

	i.emit(Event{Type: EventPlay})
	go i.wait(cmd, &stderr, finished)
	return nil
}

func (i *commandInstance) wait(cmd *exec.Cmd, stderr *bytes.Buffer, finished chan struct{}) {
	err := cmd.Wait()

	i.mu.Lock()
	paused := i.pausing
	i.cmd = nil
	if paused {
		i.offset += time.Since(i.started)
	} else {
		i.offset = 0
	}
	i.mu.Unlock()
	close(finished)

	switch {
	case paused:
		i.emit(Event{Type: EventPause})
	case err != nil:
		i.emit(Event{Type: EventError, Err: fmt.Errorf("%w: %s", ErrUnplayable, strings.TrimSpace(stderr.String()))})
	default:
		i.emit(Event{Type: EventFinish})
	}
}

func (i *commandInstance) Pause() error {
	i.mu.Lock()
	cmd := i.cmd
	if cmd == nil {
		i.mu.Unlock()
		return nil
	}
	i.pausing = true
	finished := i.finished
	i.mu.Unlock()

	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("pause player: %w", err)
	}
	<-finished
	return nil
}

func (i *commandInstance) Events() <-chan Event {
	return i.events
}

func (i *commandInstance) Close() error {
	_ = i.Pause()
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.closed {
		i.closed = true
		close(i.events)
	}
	return nil
}
