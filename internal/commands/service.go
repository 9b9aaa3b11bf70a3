// Package commands implements the user-facing tracking operations
// shared by the bot loop and the HTTP API.
package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/watch"
)

// ErrFetchFailed reports that the initial fetch of a URL being tracked
// did not succeed.
var ErrFetchFailed = errors.New("initial fetch failed")

// Inspector fetches a URL and reports its fingerprint and documents
// without touching the store.
type Inspector interface {
	Inspect(ctx context.Context, rawURL string) (string, []watch.DocumentRef, error)
}

// Service executes tracking commands on behalf of a user. Callers
// branch on the sentinel errors in the watch package plus
// ErrFetchFailed; anything else is an infrastructure failure.
type Service struct {
	store     watch.TrackingStore
	inspector Inspector
	logger    *zap.Logger
}

// New builds a Service.
func New(store watch.TrackingStore, inspector Inspector, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		inspector: inspector,
		logger:    logger,
	}
}

// Track starts tracking a URL for the user. The page is fetched once to
// record its initial fingerprint and document set, so only future
// changes notify.
func (s *Service) Track(ctx context.Context, userID, rawURL string) (watch.TrackedSite, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !validURL(rawURL) {
		return watch.TrackedSite{}, fmt.Errorf("%q: %w", rawURL, watch.ErrInvalidURL)
	}

	if _, tracked, err := s.store.GetSite(ctx, userID, rawURL); err != nil {
		return watch.TrackedSite{}, fmt.Errorf("check tracked state: %w", err)
	} else if tracked {
		return watch.TrackedSite{}, watch.ErrAlreadyTracked
	}

	fingerprint, documents, err := s.inspector.Inspect(ctx, rawURL)
	if err != nil {
		s.logger.Warn("initial fetch failed",
			zap.String("user_id", userID),
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return watch.TrackedSite{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	if err := s.store.AddSite(ctx, userID, rawURL, fingerprint, documents); err != nil {
		if errors.Is(err, watch.ErrAlreadyTracked) {
			return watch.TrackedSite{}, watch.ErrAlreadyTracked
		}
		return watch.TrackedSite{}, fmt.Errorf("add site: %w", err)
	}
	return watch.TrackedSite{
		URL:         rawURL,
		Fingerprint: fingerprint,
		Documents:   documents,
	}, nil
}

// Untrack stops tracking a URL. Returns watch.ErrNotTracked when the
// URL was not tracked.
func (s *Service) Untrack(ctx context.Context, userID, rawURL string) error {
	removed, err := s.store.RemoveSite(ctx, userID, strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("remove site: %w", err)
	}
	if !removed {
		return watch.ErrNotTracked
	}
	return nil
}

// List returns the user's tracked sites in tracking order.
func (s *Service) List(ctx context.Context, userID string) ([]watch.TrackedSite, error) {
	sites, err := s.store.ListSites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return sites, nil
}

// Documents returns the stored document list for a tracked URL.
func (s *Service) Documents(ctx context.Context, userID, rawURL string) ([]watch.DocumentRef, error) {
	site, tracked, err := s.store.GetSite(ctx, userID, strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("look up site: %w", err)
	}
	if !tracked {
		return nil, watch.ErrNotTracked
	}
	return site.Documents, nil
}

// validURL accepts only absolute http or https URLs with a host.
func validURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
