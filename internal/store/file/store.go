// Package file implements a tracking store durably persisted to a
// human-inspectable JSON file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/watch"
)

// Config captures the parameters for the file-backed store.
type Config struct {
	// Path is the JSON state file. Its directory must exist or be
	// creatable.
	Path string `mapstructure:"path" yaml:"path"`
}

// Store keeps the full tracking state in memory and rewrites the state
// file before any mutating call returns success, so a restart loses at
// most the in-flight reconciliation cycle.
type Store struct {
	path   string
	logger *zap.Logger

	mu    sync.RWMutex
	users map[string][]watch.TrackedSite
}

type userRecord struct {
	TrackedSites []watch.TrackedSite `json:"tracked_sites"`
}

// New loads existing state from cfg.Path. A missing or corrupt file is
// not fatal: the store starts empty and the condition is logged.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	s := &Store{
		path:   cfg.Path,
		logger: logger,
		users:  make(map[string][]watch.TrackedSite),
	}
	s.load()
	return s, nil
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("state file unreadable, starting empty", zap.String("path", s.path), zap.Error(err))
		}
		return
	}
	var records map[string]userRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("state file corrupt, starting empty", zap.String("path", s.path), zap.Error(err))
		return
	}
	for userID, rec := range records {
		s.users[userID] = rec.TrackedSites
	}
}

// flush must be called with the write lock held. The file is written
// to a sibling temp path first and renamed into place so readers never
// observe a half-written state file.
func (s *Store) flush() error {
	records := make(map[string]userRecord, len(s.users))
	for userID, sites := range s.users {
		records[userID] = userRecord{TrackedSites: sites}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// AddSite inserts a new tracked site and persists the full state.
func (s *Store) AddSite(_ context.Context, userID, url, fingerprint string, documents []watch.DocumentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, site := range s.users[userID] {
		if site.URL == url {
			return watch.ErrAlreadyTracked
		}
	}
	s.users[userID] = append(s.users[userID], watch.TrackedSite{
		URL:         url,
		Fingerprint: fingerprint,
		Documents:   watch.CloneDocuments(documents),
	})
	if err := s.flush(); err != nil {
		// Roll back so memory never claims durability it does not have.
		sites := s.users[userID]
		s.users[userID] = sites[:len(sites)-1]
		return err
	}
	return nil
}

// RemoveSite deletes the record, persists, and reports whether one
// existed.
func (s *Store) RemoveSite(_ context.Context, userID, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sites := s.users[userID]
	for i, site := range sites {
		if site.URL == url {
			removed := site
			s.users[userID] = append(sites[:i:i], sites[i+1:]...)
			if err := s.flush(); err != nil {
				s.users[userID] = insertAt(s.users[userID], i, removed)
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// ListSites returns the user's sites in insertion order.
func (s *Store) ListSites(_ context.Context, userID string) ([]watch.TrackedSite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSites(s.users[userID]), nil
}

// GetSite looks up one tracked site by URL.
func (s *Store) GetSite(_ context.Context, userID, url string) (watch.TrackedSite, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, site := range s.users[userID] {
		if site.URL == url {
			return cloneSite(site), true, nil
		}
	}
	return watch.TrackedSite{}, false, nil
}

// UpdateSite replaces fingerprint and documents as one unit and
// persists. A missing key is a silent no-op.
func (s *Store) UpdateSite(_ context.Context, userID, url, fingerprint string, documents []watch.DocumentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sites := s.users[userID]
	for i, site := range sites {
		if site.URL == url {
			prev := sites[i]
			sites[i].Fingerprint = fingerprint
			sites[i].Documents = watch.CloneDocuments(documents)
			if err := s.flush(); err != nil {
				sites[i] = prev
				return err
			}
			return nil
		}
	}
	return nil
}

// ForEachSite visits a point-in-time snapshot of every tracked site.
func (s *Store) ForEachSite(_ context.Context, visit func(userID string, site watch.TrackedSite) error) error {
	s.mu.RLock()
	snapshot := make(map[string][]watch.TrackedSite, len(s.users))
	for userID, sites := range s.users {
		snapshot[userID] = cloneSites(sites)
	}
	s.mu.RUnlock()

	for userID, sites := range snapshot {
		for _, site := range sites {
			if err := visit(userID, site); err != nil {
				return err
			}
		}
	}
	return nil
}

func insertAt(sites []watch.TrackedSite, i int, site watch.TrackedSite) []watch.TrackedSite {
	sites = append(sites, watch.TrackedSite{})
	copy(sites[i+1:], sites[i:])
	sites[i] = site
	return sites
}

func cloneSites(sites []watch.TrackedSite) []watch.TrackedSite {
	out := make([]watch.TrackedSite, len(sites))
	for i, site := range sites {
		out[i] = cloneSite(site)
	}
	return out
}

func cloneSite(site watch.TrackedSite) watch.TrackedSite {
	site.Documents = watch.CloneDocuments(site.Documents)
	return site
}
