// Package watch defines core types shared across subsystems.
package watch

import (
	"net/http"
	"time"
)

// DocumentRef is a downloadable document discovered on a tracked page.
// Two refs denote the same document iff their URLs match; Name is a
// display label only and never participates in identity.
type DocumentRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TrackedSite is one monitored URL for one user. Fingerprint and
// Documents always describe the same observed content: the store
// replaces them together, never independently.
type TrackedSite struct {
	URL         string        `json:"url"`
	Fingerprint string        `json:"fingerprint"`
	Documents   []DocumentRef `json:"documents"`
}

// ChangeKind classifies the outcome of reconciling one tracked site.
type ChangeKind string

// Change kinds reported by the reconciliation engine.
const (
	ChangeNone         ChangeKind = "none"
	ChangeContent      ChangeKind = "content"
	ChangeNewDocuments ChangeKind = "new_documents"
	ChangeFetchFailed  ChangeKind = "fetch_failed"
)

// FetchRequest captures everything needed to fetch a tracked URL.
type FetchRequest struct {
	URL         string
	Headers     http.Header
	UseHeadless bool
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// SiteResult records the outcome of one site visit within a sweep.
type SiteResult struct {
	UserID       string
	URL          string
	Kind         ChangeKind
	NewDocuments []DocumentRef
	Err          error
}

// ChangeEvent is the payload published for operator integrations when
// a tracked page changes.
type ChangeEvent struct {
	UserID       string    `json:"user_id"`
	URL          string    `json:"url"`
	Fingerprint  string    `json:"fingerprint"`
	NewDocuments int       `json:"new_documents"`
	ObservedAt   time.Time `json:"observed_at"`
	SnapshotURI  string    `json:"snapshot_uri,omitempty"`
}

// DiffDocuments returns the refs in current whose URL does not appear
// in previous. Name changes alone never produce a diff entry. Order of
// current is preserved.
func DiffDocuments(current, previous []DocumentRef) []DocumentRef {
	if len(current) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(previous))
	for _, doc := range previous {
		seen[doc.URL] = struct{}{}
	}
	var fresh []DocumentRef
	for _, doc := range current {
		if _, ok := seen[doc.URL]; !ok {
			fresh = append(fresh, doc)
		}
	}
	return fresh
}

// CloneDocuments returns a defensive copy so store internals never
// alias caller slices.
func CloneDocuments(docs []DocumentRef) []DocumentRef {
	if len(docs) == 0 {
		return nil
	}
	out := make([]DocumentRef, len(docs))
	copy(out, docs)
	return out
}
