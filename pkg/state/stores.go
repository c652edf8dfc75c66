// Package state holds the client-side stores shared by every view: the current
// namespace, per-stage directory pairs, per-stage job UUIDs and the audio clips on
// screen. Stores are independent, last-write-wins, and immediately visible to every
// holder of the same *State.
package state

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mattsolo1/grove-voice/pkg/models"
)

const (
	scopeNamespace = "namespace"
	scopePaths     = "paths"
	scopeUUIDs     = "uuids"
	scopeAudio     = "audio"

	keyCurrent = "current"
	keyResults = "results"
)

// State aggregates the stores. Pass it to views and services explicitly.
type State struct {
	Namespace *NamespaceStore
	Paths     *PathStore
	UUIDs     *UUIDStore
	Audio     *AudioStore

	backend Backend
}

// Open loads persisted state from the sqlite database in dataDir.
func Open(dataDir string) (*State, error) {
	db, err := OpenDB(dataDir)
	if err != nil {
		return nil, err
	}
	st, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

// New loads every store from backend.
func New(backend Backend) (*State, error) {
	ns, err := newNamespaceStore(backend)
	if err != nil {
		return nil, fmt.Errorf("load namespace store: %w", err)
	}
	paths, err := newPathStore(backend)
	if err != nil {
		return nil, fmt.Errorf("load path store: %w", err)
	}
	uuids, err := newUUIDStore(backend)
	if err != nil {
		return nil, fmt.Errorf("load uuid store: %w", err)
	}
	audio, err := newAudioStore(backend)
	if err != nil {
		return nil, fmt.Errorf("load audio store: %w", err)
	}
	return &State{
		Namespace: ns,
		Paths:     paths,
		UUIDs:     uuids,
		Audio:     audio,
		backend:   backend,
	}, nil
}

// NewInMemory returns state that is not persisted.
func NewInMemory() *State {
	st, _ := New(NewMemoryBackend())
	return st
}

// Close releases the backend.
func (s *State) Close() error {
	return s.backend.Close()
}

// NamespaceStore holds the single current namespace.
type NamespaceStore struct {
	mu      sync.RWMutex
	backend Backend
	current string
}

func newNamespaceStore(b Backend) (*NamespaceStore, error) {
	cur, _, err := b.Get(scopeNamespace, keyCurrent)
	if err != nil {
		return nil, err
	}
	return &NamespaceStore{backend: b, current: cur}, nil
}

// Current returns the current namespace name, or "" when none is chosen.
func (s *NamespaceStore) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetCurrent makes name the current namespace.
func (s *NamespaceStore) SetCurrent(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		if err := s.backend.Delete(scopeNamespace, keyCurrent); err != nil {
			return fmt.Errorf("clear current namespace: %w", err)
		}
	} else if err := s.backend.Put(scopeNamespace, keyCurrent, name); err != nil {
		return fmt.Errorf("save current namespace: %w", err)
	}
	s.current = name
	return nil
}

// PathStore remembers the source/output directory pair of each stage.
type PathStore struct {
	mu      sync.RWMutex
	backend Backend
	pairs   map[models.Stage]models.PathPair
}

func newPathStore(b Backend) (*PathStore, error) {
	raw, err := b.List(scopePaths)
	if err != nil {
		return nil, err
	}
	pairs := make(map[models.Stage]models.PathPair, len(raw))
	for k, v := range raw {
		var p models.PathPair
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			continue
		}
		pairs[models.Stage(k)] = p
	}
	return &PathStore{backend: b, pairs: pairs}, nil
}

// Get returns the pair stored for stage.
func (s *PathStore) Get(stage models.Stage) (models.PathPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[stage]
	return p, ok
}

// Set replaces the pair stored for stage.
func (s *PathStore) Set(stage models.Stage, pair models.PathPair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Put(scopePaths, string(stage), string(data)); err != nil {
		return fmt.Errorf("save paths for %s: %w", stage, err)
	}
	s.pairs[stage] = pair
	return nil
}

// Reset forgets every stored pair.
func (s *PathStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for stage := range s.pairs {
		if err := s.backend.Delete(scopePaths, string(stage)); err != nil {
			return err
		}
	}
	s.pairs = make(map[models.Stage]models.PathPair)
	return nil
}

// UUIDStore maps each stage to the UUID of its most recent job.
type UUIDStore struct {
	mu      sync.RWMutex
	backend Backend
	ids     map[models.Stage]string
}

func newUUIDStore(b Backend) (*UUIDStore, error) {
	raw, err := b.List(scopeUUIDs)
	if err != nil {
		return nil, err
	}
	ids := make(map[models.Stage]string, len(raw))
	for _, k := range sortedKeys(raw) {
		ids[models.Stage(k)] = raw[k]
	}
	return &UUIDStore{backend: b, ids: ids}, nil
}

// Get returns the job UUID of stage, or "".
func (s *UUIDStore) Get(stage models.Stage) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids[stage]
}

// Set records uuid as the job of stage.
func (s *UUIDStore) Set(stage models.Stage, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Put(scopeUUIDs, string(stage), uuid); err != nil {
		return fmt.Errorf("save uuid for %s: %w", stage, err)
	}
	s.ids[stage] = uuid
	return nil
}

// Clear forgets the job of stage.
func (s *UUIDStore) Clear(stage models.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Delete(scopeUUIDs, string(stage)); err != nil {
		return err
	}
	delete(s.ids, stage)
	return nil
}

// All returns a copy of the stage to UUID mapping.
func (s *UUIDStore) All() map[models.Stage]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.Stage]string, len(s.ids))
	for k, v := range s.ids {
		out[k] = v
	}
	return out
}
