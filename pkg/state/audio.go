package state

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mattsolo1/grove-voice/pkg/models"
)

// AudioStore holds the clips currently on screen. Only the synthesis result list
// outlives the process.
type AudioStore struct {
	mu        sync.RWMutex
	backend   Backend
	reference models.AudioState
	result    models.AudioState
	results   []models.SynthesisResult
}

func newAudioStore(b Backend) (*AudioStore, error) {
	s := &AudioStore{backend: b}
	raw, ok, err := b.Get(scopeAudio, keyResults)
	if err != nil {
		return nil, err
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.results); err != nil {
			return nil, fmt.Errorf("decode synthesis results: %w", err)
		}
	}
	return s, nil
}

// Reference returns the current reference clip.
func (s *AudioStore) Reference() models.AudioState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reference
}

// SetReference replaces the reference clip and returns the one it superseded so
// the caller can release its blob.
func (s *AudioStore) SetReference(a models.AudioState) models.AudioState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.reference
	s.reference = a
	return prev
}

// Result returns the most recent synthesis clip.
func (s *AudioStore) Result() models.AudioState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// SetResult replaces the synthesis clip and returns the superseded one.
func (s *AudioStore) SetResult(a models.AudioState) models.AudioState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.result
	s.result = a
	return prev
}

// Results returns the persisted synthesis history, newest first.
func (s *AudioStore) Results() []models.SynthesisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SynthesisResult, len(s.results))
	copy(out, s.results)
	return out
}

// AddResult prepends r to the history.
func (s *AudioStore) AddResult(r models.SynthesisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append([]models.SynthesisResult{r}, s.results...)
	if err := s.saveLocked(next); err != nil {
		return err
	}
	s.results = next
	return nil
}

// RemoveResult drops the entry with id. It reports whether anything was removed.
func (s *AudioStore) RemoveResult(id string) (models.SynthesisResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.results {
		if r.ID != id {
			continue
		}
		next := append(append([]models.SynthesisResult{}, s.results[:i]...), s.results[i+1:]...)
		if err := s.saveLocked(next); err != nil {
			return models.SynthesisResult{}, false, err
		}
		s.results = next
		return r, true, nil
	}
	return models.SynthesisResult{}, false, nil
}

func (s *AudioStore) saveLocked(results []models.SynthesisResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	if err := s.backend.Put(scopeAudio, keyResults, string(data)); err != nil {
		return fmt.Errorf("save synthesis results: %w", err)
	}
	return nil
}
