package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"newsdigest/internal/domain"
	"newsdigest/internal/ports"
)

// FileHistory keeps sent-article history in a single JSON file, keyed by
// topic then canonical URL. A mutex serializes writers and saves go through
// an atomic rename, so a crash mid-save cannot corrupt the previous state.
type FileHistory struct {
	path string
	mu   sync.Mutex
}

var _ ports.HistoryStore = (*FileHistory)(nil)

type fileEntry struct {
	URL    string    `json:"url"`
	Title  string    `json:"title"`
	SentAt time.Time `json:"sent_at"`
}

type fileState map[string]map[string]fileEntry

// NewFileHistory creates a store backed by the given path. The file is
// created on first append.
func NewFileHistory(path string) *FileHistory {
	return &FileHistory{path: path}
}

// LoadRecent returns the topic's entries inside the retention window.
func (s *FileHistory) LoadRecent(_ context.Context, topic string, window time.Duration) ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-window)
	var entries []domain.HistoryEntry
	for _, entry := range state[topic] {
		if entry.SentAt.Before(cutoff) {
			continue
		}
		entries = append(entries, domain.HistoryEntry{
			URL:    entry.URL,
			Title:  entry.Title,
			SentAt: entry.SentAt,
		})
	}

	return entries, nil
}

// Append records delivered articles and prunes nothing; pruning happens on
// save via the retention window passed to Prune. Re-appending an existing
// URL keeps the original entry.
func (s *FileHistory) Append(_ context.Context, topic string, entries []domain.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}

	if state[topic] == nil {
		state[topic] = map[string]fileEntry{}
	}
	for _, entry := range entries {
		if _, exists := state[topic][entry.URL]; exists {
			continue
		}
		state[topic][entry.URL] = fileEntry{
			URL:    entry.URL,
			Title:  entry.Title,
			SentAt: entry.SentAt,
		}
	}

	return s.save(state)
}

// Prune drops entries older than the window across all topics.
func (s *FileHistory) Prune(window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-window)
	for topic, entries := range state {
		for url, entry := range entries {
			if entry.SentAt.Before(cutoff) {
				delete(entries, url)
			}
		}
		if len(entries) == 0 {
			delete(state, topic)
		}
	}

	return s.save(state)
}

func (s *FileHistory) load() (fileState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileState{}, nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse history file %s: %w", s.path, err)
	}
	if state == nil {
		state = fileState{}
	}
	return state, nil
}

func (s *FileHistory) save(state fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp history file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename history file: %w", err)
	}

	return nil
}
