// Package files browses and mutates the remote workspace through the file API.
package files

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/mattsolo1/grove-voice/pkg/api"
	"github.com/mattsolo1/grove-voice/pkg/models"
)

// API is the subset of the backend client the file manager needs.
type API interface {
	ListDirectory(ctx context.Context, dir string) (*models.Listing, error)
	CreateDirectory(ctx context.Context, dir string) error
	UploadFile(ctx context.Context, req api.UploadRequest) error
	DownloadFile(ctx context.Context, p string) ([]byte, error)
	DeletePaths(ctx context.Context, paths []string) error
}

// Level classifies a toast.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

// Notifier receives toasts for the user.
type Notifier interface {
	Notify(level Level, msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, msg string)

func (f NotifierFunc) Notify(level Level, msg string) { f(level, msg) }

type nopNotifier struct{}

func (nopNotifier) Notify(Level, string) {}

// Manager caches directory listings and runs mutations that always settle with a refetch.
type Manager struct {
	api    API
	notify Notifier
	log    *logrus.Entry

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]models.Listing
	busy  int
}

// Option customises a Manager.
type Option func(*Manager)

// WithNotifier routes toasts to n.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notify = n
		}
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *logrus.Entry) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager creates a manager over a file API.
func NewManager(a API, opts ...Option) *Manager {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	m := &Manager{
		api:    a,
		notify: nopNotifier{},
		log:    logrus.NewEntry(discard),
		cache:  make(map[string]models.Listing),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetNotifier replaces the toast target.
func (m *Manager) SetNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n == nil {
		n = nopNotifier{}
	}
	m.notify = n
}

func (m *Manager) notifier() Notifier {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.notify
}

// List fetches dir. Listings are always reloaded from the backend; use Cached to show
// the previous listing while the fetch is in flight. It never fails: errors yield an
// empty listing and an error toast.
func (m *Manager) List(ctx context.Context, dir string) models.Listing {
	return m.Refetch(ctx, dir)
}

// Refetch loads dir from the backend. Concurrent fetches of the same directory share
// one request.
func (m *Manager) Refetch(ctx context.Context, dir string) models.Listing {
	v, err, _ := m.group.Do(dir, func() (interface{}, error) {
		l, err := m.api.ListDirectory(ctx, dir)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.cache[dir] = *l
		m.mu.Unlock()
		return *l, nil
	})
	if err != nil {
		m.log.WithError(err).WithField("dir", dir).Warn("list directory failed")
		m.notifier().Notify(LevelError, fmt.Sprintf("Failed to load %s: %v", dir, err))
		return models.Listing{Path: dir}
	}
	return v.(models.Listing)
}

// Cached returns the last listing fetched for dir.
func (m *Manager) Cached(dir string) (models.Listing, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.cache[dir]
	return l, ok
}

// Busy reports whether a mutation is in flight.
func (m *Manager) Busy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.busy > 0
}

// mutate runs fn with the busy flag raised, then refetches current exactly once
// regardless of the outcome.
func (m *Manager) mutate(ctx context.Context, current, success string, fn func() error) error {
	m.mu.Lock()
	m.busy++
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.busy--
		m.mu.Unlock()
	}()

	err := fn()
	m.invalidate(current)
	m.Refetch(ctx, current)

	if err != nil {
		m.notifier().Notify(LevelError, err.Error())
		return err
	}
	if success != "" {
		m.notifier().Notify(LevelInfo, success)
	}
	return nil
}

// invalidate drops cached listings at or below any of prefixes.
func (m *Manager) invalidate(prefixes ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.cache {
		for _, p := range prefixes {
			if key == p || strings.HasPrefix(key, strings.TrimSuffix(p, "/")+"/") {
				delete(m.cache, key)
				break
			}
		}
	}
}

// CreateFolder creates name inside current.
func (m *Manager) CreateFolder(ctx context.Context, current, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("invalid folder name %q", name)
	}
	target := Join(current, name)
	return m.mutate(ctx, current, fmt.Sprintf("Created folder %s", name), func() error {
		if err := m.api.CreateDirectory(ctx, target); err != nil {
			return fmt.Errorf("create folder %s: %w", name, err)
		}
		return nil
	})
}

// Upload stores data as name inside current.
func (m *Manager) Upload(ctx context.Context, current, name string, data []byte) error {
	return m.mutate(ctx, current, fmt.Sprintf("Uploaded %s", name), func() error {
		if err := m.api.UploadFile(ctx, api.NewUploadRequest(current, name, data)); err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
		return nil
	})
}

// DeleteMany removes paths, which are usually entries of current.
func (m *Manager) DeleteMany(ctx context.Context, current string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return m.mutate(ctx, current, fmt.Sprintf("Deleted %d item(s)", len(paths)), func() error {
		m.invalidate(paths...)
		if err := m.api.DeletePaths(ctx, paths); err != nil {
			return fmt.Errorf("delete %d item(s): %w", len(paths), err)
		}
		return nil
	})
}

// Download fetches a file's bytes.
func (m *Manager) Download(ctx context.Context, p string) ([]byte, error) {
	data, err := m.api.DownloadFile(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", p, err)
	}
	return data, nil
}
