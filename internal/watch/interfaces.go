package watch

import (
	"context"
	"time"
)

// TrackingStore persists per-user tracked sites. Implementations must
// serialize operations on the same (userID, url) key and must treat
// UpdateSite on a missing key as a no-op rather than an insert, so a
// concurrent untrack can never be undone by a stale sweep result.
type TrackingStore interface {
	AddSite(ctx context.Context, userID, url, fingerprint string, documents []DocumentRef) error
	RemoveSite(ctx context.Context, userID, url string) (bool, error)
	ListSites(ctx context.Context, userID string) ([]TrackedSite, error)
	GetSite(ctx context.Context, userID, url string) (TrackedSite, bool, error)
	UpdateSite(ctx context.Context, userID, url, fingerprint string, documents []DocumentRef) error
	ForEachSite(ctx context.Context, visit func(userID string, site TrackedSite) error) error
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Transport delivers outbound messages to a user. Both operations are
// single attempts; retry policy belongs to the caller.
type Transport interface {
	SendText(ctx context.Context, userID, text string) error
	SendFile(ctx context.Context, userID, path, caption string) error
}

// Notifier turns classified deltas into outbound messages.
type Notifier interface {
	NotifyChange(ctx context.Context, userID, url string) error
	NotifyDocuments(ctx context.Context, userID, url string, documents []DocumentRef) error
}

// Publisher pushes change events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// HeadlessDetector decides whether a headless re-fetch is warranted.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// Hasher computes content fingerprints.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces opaque IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
