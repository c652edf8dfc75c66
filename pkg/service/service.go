package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-voice/pkg/api"
	"github.com/mattsolo1/grove-voice/pkg/audio"
	"github.com/mattsolo1/grove-voice/pkg/files"
	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/state"
	"github.com/mattsolo1/grove-voice/pkg/workflow"
)

var (
	// ErrJobRunning is returned when switching away from a namespace with a running job.
	ErrJobRunning = errors.New("a job in the current namespace is still running")

	// ErrActiveNamespace is returned when deleting the current namespace without a replacement.
	ErrActiveNamespace = errors.New("select a replacement before deleting the active namespace")
)

// Service wires the backend client, the client state and the domain helpers together.
type Service struct {
	Config    *Config
	API       *api.Client
	State     *state.State
	Blobs     *audio.BlobStore
	Files     *files.Manager
	Previewer *files.Previewer
	Feed      *workflow.Feed
	Runner    *workflow.Runner
	Refiner   *workflow.Refiner
	Logger    *logrus.Entry
}

// Config holds service configuration
type Config struct {
	API           api.Config
	DataDir       string
	PollInterval  time.Duration
	RecordCommand []string
	PlayCommand   []string
}

// ResultsDir is where synthesised clips are kept.
func (c *Config) ResultsDir() string {
	return filepath.Join(c.DataDir, "results")
}

// New opens the state database and builds the domain helpers.
func New(cfg *Config, logger *logrus.Entry) (*Service, error) {
	st, err := state.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	return NewWithState(cfg, st, logger)
}

// NewWithState builds a service over an existing state.
func NewWithState(cfg *Config, st *state.State, logger *logrus.Entry) (*Service, error) {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}

	blobs, err := audio.NewBlobStore("")
	if err != nil {
		return nil, err
	}

	client := api.New(cfg.API, api.WithLogger(logger.WithField("component", "grove-voice.api")))
	manager := files.NewManager(client, files.WithLogger(logger.WithField("component", "grove-voice.files")))
	feed := workflow.NewFeed(client, st.UUIDs)

	return &Service{
		Config:    cfg,
		API:       client,
		State:     st,
		Blobs:     blobs,
		Files:     manager,
		Previewer: files.NewPreviewer(manager, blobs),
		Feed:      feed,
		Runner:    workflow.NewRunner(client, st, feed, logger.WithField("component", "grove-voice.workflow")),
		Refiner:   workflow.NewRefiner(client),
		Logger:    logger,
	}, nil
}

// Close releases every blob and closes the state database.
func (s *Service) Close() error {
	blobErr := s.Blobs.ReleaseAll()
	if err := s.State.Close(); err != nil {
		return err
	}
	return blobErr
}

// NewRecorder creates a recorder using the configured capture command.
func (s *Service) NewRecorder(opts ...audio.RecorderOption) *audio.Recorder {
	return audio.NewRecorder(audio.NewCommandCapturer(s.Config.RecordCommand), s.Blobs, opts...)
}

// NewPlayer creates a player using the configured playback command.
func (s *Service) NewPlayer(opts ...audio.PlayerOption) *audio.Player {
	return audio.NewPlayer(audio.NewCommandEngine(s.Config.PlayCommand), s.Blobs, opts...)
}

// NewPoller creates a session poller on the configured interval.
func (s *Service) NewPoller() *workflow.Poller {
	return workflow.NewPoller(s.Feed, s.Config.PollInterval)
}

// PrepareForm returns a defaulted form for stage, prefilled for the current namespace.
func (s *Service) PrepareForm(ctx context.Context, stage models.Stage) (workflow.Form, error) {
	form, err := workflow.NewForm(stage)
	if err != nil {
		return nil, err
	}
	ns, err := s.CurrentNamespace(ctx)
	if err != nil {
		return nil, err
	}
	form.Prefill(*ns, s.State.Paths)
	return form, nil
}

// PrepareRefinement returns the refinement form for the current namespace.
func (s *Service) PrepareRefinement(ctx context.Context) (*workflow.RefinementForm, error) {
	ns, err := s.CurrentNamespace(ctx)
	if err != nil {
		return nil, err
	}
	f := &workflow.RefinementForm{}
	f.Prefill(*ns, s.State.Paths)
	return f, nil
}

// SetReference makes clip the reference clip and releases the one it replaces.
func (s *Service) SetReference(clip models.AudioState) {
	prev := s.State.Audio.SetReference(clip)
	if !prev.Empty() && prev.URL != clip.URL {
		if err := s.Blobs.Release(prev.URL); err != nil {
			s.Logger.WithError(err).Warn("release superseded reference")
		}
	}
}

// UseReferenceFile links a local file as the reference clip.
func (s *Service) UseReferenceFile(path string) (models.AudioState, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return models.AudioState{}, err
	}
	if _, err := os.Stat(abs); err != nil {
		return models.AudioState{}, fmt.Errorf("reference clip: %w", err)
	}
	clip := models.AudioState{URL: s.Blobs.Link(abs), Name: filepath.Base(abs), Duration: clipDuration(abs)}
	s.SetReference(clip)
	return clip, nil
}

func clipDuration(path string) string {
	if !audio.IsWAV(path) {
		return ""
	}
	w, err := audio.DecodeWaveform(path, 1)
	if err != nil {
		return ""
	}
	return models.FormatDuration(w.Duration)
}

// VoiceCloneModels lists the trained models of the current namespace.
func (s *Service) VoiceCloneModels(ctx context.Context) (*models.VoiceCloneModels, error) {
	ns, err := s.CurrentNamespace(ctx)
	if err != nil {
		return nil, err
	}
	return s.API.VoiceCloneModels(ctx, ns.HomePath)
}

// Clone synthesises form.Text, keeps the WAV under the results directory, makes it
// the current result clip and records it in the result list.
func (s *Service) Clone(ctx context.Context, form *workflow.VoiceCloneForm) (models.SynthesisResult, error) {
	if err := form.Validate(); err != nil {
		return models.SynthesisResult{}, err
	}

	refPath, err := s.Blobs.Open(form.RefAudio)
	if err != nil {
		return models.SynthesisResult{}, fmt.Errorf("reference clip: %w", err)
	}
	ref, err := os.ReadFile(refPath)
	if err != nil {
		return models.SynthesisResult{}, fmt.Errorf("read reference clip: %w", err)
	}

	wav, err := s.API.Clone(ctx, form.Request(base64.StdEncoding.EncodeToString(ref)))
	if err != nil {
		return models.SynthesisResult{}, fmt.Errorf("clone voice: %w", err)
	}

	if err := os.MkdirAll(s.Config.ResultsDir(), 0755); err != nil {
		return models.SynthesisResult{}, fmt.Errorf("create results dir: %w", err)
	}
	id := uuid.NewString()
	out := filepath.Join(s.Config.ResultsDir(), id+".wav")
	if err := os.WriteFile(out, wav, 0644); err != nil {
		return models.SynthesisResult{}, fmt.Errorf("write result: %w", err)
	}

	result := models.SynthesisResult{
		ID:        id,
		Text:      form.Text,
		FilePath:  out,
		Duration:  clipDuration(out),
		CreatedAt: time.Now(),
	}

	clip := models.AudioState{URL: s.Blobs.Link(out), Duration: result.Duration, Name: filepath.Base(out)}
	if prev := s.State.Audio.SetResult(clip); !prev.Empty() {
		_ = s.Blobs.Release(prev.URL)
	}
	if err := s.State.Audio.AddResult(result); err != nil {
		return result, fmt.Errorf("record result: %w", err)
	}
	s.Logger.WithFields(logrus.Fields{"id": id, "bytes": len(wav)}).Info("voice cloned")
	return result, nil
}

// DeleteResult forgets a synthesis result and removes its file.
func (s *Service) DeleteResult(id string) error {
	removed, ok, err := s.State.Audio.RemoveResult(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("result %s not found", id)
	}
	if removed.FilePath != "" {
		if err := os.Remove(removed.FilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove result file: %w", err)
		}
	}
	return nil
}
