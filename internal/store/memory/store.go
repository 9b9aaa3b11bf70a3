// Package memory provides an in-memory tracking store for development
// and testing.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/pagewatch/internal/watch"
)

// Store implements watch.TrackingStore with mutex-guarded maps.
// Per-user site lists keep insertion order.
type Store struct {
	mu    sync.RWMutex
	users map[string][]watch.TrackedSite
}

// New constructs a Store.
func New() *Store {
	return &Store{users: make(map[string][]watch.TrackedSite)}
}

// AddSite inserts a new tracked site for the user. The user profile is
// created lazily on first use.
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
	return nil
}

// RemoveSite deletes the record and reports whether one existed.
func (s *Store) RemoveSite(_ context.Context, userID, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sites := s.users[userID]
	for i, site := range sites {
		if site.URL == url {
			s.users[userID] = append(sites[:i:i], sites[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// ListSites returns the user's sites in insertion order; an unknown
// user yields an empty slice.
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

// UpdateSite replaces fingerprint and documents as one unit. A missing
// key is a silent no-op so a stale sweep result can never resurrect an
// untracked site.
func (s *Store) UpdateSite(_ context.Context, userID, url, fingerprint string, documents []watch.DocumentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sites := s.users[userID]
	for i, site := range sites {
		if site.URL == url {
			sites[i].Fingerprint = fingerprint
			sites[i].Documents = watch.CloneDocuments(documents)
			return nil
		}
	}
	return nil
}

// ForEachSite visits a point-in-time snapshot of every tracked site, so
// callers may mutate the store while iterating.
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
