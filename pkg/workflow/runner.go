package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/state"
)

// ErrStageRunning is returned when a stage is submitted while its job is still running.
var ErrStageRunning = errors.New("a job for this stage is still running")

// StageAPI is the backend surface used to start and inspect jobs.
type StageAPI interface {
	Session(ctx context.Context) (models.Session, error)
	StartEaseVoice(ctx context.Context, req models.EaseVoiceRequest) (string, error)
	StartUVR5(ctx context.Context, req models.UVR5Request) (string, error)
	StartSlicer(ctx context.Context, req models.SlicerRequest) (string, error)
	StartDenoise(ctx context.Context, req models.DenoiseRequest) (string, error)
	StartASR(ctx context.Context, req models.ASRRequest) (string, error)
	StartNormalize(ctx context.Context, req models.NormalizeRequest) (string, error)
	StartSovitsTraining(ctx context.Context, req models.SovitsTrainRequest) (string, error)
	StartGPTTraining(ctx context.Context, req models.GPTTrainRequest) (string, error)
}

// Feed holds the latest session snapshot and resolves per-stage job status from it.
type Feed struct {
	api   StageAPI
	uuids *state.UUIDStore

	mu      sync.RWMutex
	session models.Session
	fetched time.Time
	err     error
}

// NewFeed creates an empty feed.
func NewFeed(a StageAPI, uuids *state.UUIDStore) *Feed {
	return &Feed{api: a, uuids: uuids}
}

// Refresh fetches a new snapshot. A failed fetch keeps the previous snapshot.
func (f *Feed) Refresh(ctx context.Context) (models.Session, error) {
	s, err := f.api.Session(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	if err != nil {
		return f.session, fmt.Errorf("fetch session: %w", err)
	}
	f.session = s
	f.fetched = time.Now()
	return s, nil
}

// Snapshot returns the latest session and whether one has been fetched.
func (f *Feed) Snapshot() (models.Session, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.session, !f.fetched.IsZero()
}

// LastError returns the error of the most recent refresh.
func (f *Feed) LastError() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

// FetchedAt returns when the snapshot was taken.
func (f *Feed) FetchedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fetched
}

// Status returns the task for stage's cached UUID. A UUID missing from the
// snapshot means no data.
func (f *Feed) Status(stage models.Stage) (models.Task, bool) {
	uuid := f.uuids.Get(stage)
	if uuid == "" {
		return models.Task{}, false
	}
	s, _ := f.Snapshot()
	return s.Lookup(uuid)
}

// StageStatus pairs a stage with its task.
type StageStatus struct {
	Stage models.Stage `json:"stage" yaml:"stage"`
	Task  models.Task  `json:"task" yaml:"task"`
}

// Statuses returns the known task of every stage that has a cached UUID, in pipeline order.
func (f *Feed) Statuses() []StageStatus {
	var out []StageStatus
	for _, st := range models.Stages {
		if t, ok := f.Status(st); ok {
			out = append(out, StageStatus{Stage: st, Task: t})
		}
	}
	return out
}

// AnyRunning reports whether any stage's cached job is running.
func (f *Feed) AnyRunning() (models.Stage, bool) {
	for _, s := range f.Statuses() {
		if s.Task.IsRunning() {
			return s.Stage, true
		}
	}
	return "", false
}

// Tasks returns every task in the snapshot sorted by name then UUID.
func (f *Feed) Tasks() []models.Task {
	s, _ := f.Snapshot()
	out := make([]models.Task, 0, len(s))
	for _, t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TaskName != out[j].TaskName {
			return out[i].TaskName < out[j].TaskName
		}
		return out[i].UUID < out[j].UUID
	})
	return out
}

// Runner submits stage forms.
type Runner struct {
	api   StageAPI
	state *state.State
	feed  *Feed
	log   *logrus.Entry
}

// NewRunner creates a runner storing UUIDs and paths in st.
func NewRunner(a StageAPI, st *state.State, feed *Feed, log *logrus.Entry) *Runner {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Runner{api: a, state: st, feed: feed, log: log}
}

// Feed returns the runner's job feed.
func (r *Runner) Feed() *Feed { return r.feed }

// Running reports whether stage's cached job is running. The session is refetched
// when the snapshot does not know the cached UUID yet, e.g. right after a submit.
func (r *Runner) Running(ctx context.Context, stage models.Stage) (bool, error) {
	uuid := r.state.UUIDs.Get(stage)
	if uuid == "" {
		return false, nil
	}
	s, fetched := r.feed.Snapshot()
	if _, known := s.Lookup(uuid); !fetched || !known {
		if _, err := r.feed.Refresh(ctx); err != nil {
			return false, err
		}
	}
	t, ok := r.feed.Status(stage)
	return ok && t.IsRunning(), nil
}

// Submit starts form's job unless the stage already has one running. On success the
// returned UUID and the form's directories are recorded for the stage.
func (r *Runner) Submit(ctx context.Context, form Form) (string, error) {
	stage := form.Stage()

	running, err := r.Running(ctx, stage)
	if err != nil {
		return "", err
	}
	if running {
		return "", fmt.Errorf("%s: %w", stage.Title(), ErrStageRunning)
	}

	if err := form.Validate(); err != nil {
		return "", err
	}

	uuid, err := form.start(ctx, r.api)
	if err != nil {
		return "", fmt.Errorf("start %s: %w", stage, err)
	}
	r.log.WithFields(logrus.Fields{"stage": stage, "uuid": uuid}).Info("job started")

	if err := r.state.UUIDs.Set(stage, uuid); err != nil {
		return uuid, fmt.Errorf("record job uuid: %w", err)
	}
	if err := r.state.Paths.Set(stage, form.Paths()); err != nil {
		return uuid, fmt.Errorf("record stage paths: %w", err)
	}
	return uuid, nil
}

// Poller refreshes a feed on a fixed interval.
type Poller struct {
	feed     *Feed
	interval time.Duration
}

// DefaultPollInterval is used when no interval is configured.
const DefaultPollInterval = 5 * time.Second

// NewPoller creates a poller for feed.
func NewPoller(feed *Feed, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{feed: feed, interval: interval}
}

// Run refreshes immediately and then on every tick, passing each result to fn,
// until ctx is cancelled. Cancelling stops polling only; server jobs keep running.
func (p *Poller) Run(ctx context.Context, fn func(models.Session, error)) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		s, err := p.feed.Refresh(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if fn != nil {
			fn(s, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
