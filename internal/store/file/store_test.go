package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pagewatch/internal/watch"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(Config{Path: path}, nil)
	require.NoError(t, err)
	return s, path
}

func TestMutationsSurviveRestart(t *testing.T) {
	t.Parallel()

	s, path := newStore(t)
	ctx := context.Background()
	docs := []watch.DocumentRef{{Name: "report", URL: "http://ex.com/report.pdf"}}
	require.NoError(t, s.AddSite(ctx, "42", "http://ex.com/a", "fp1", docs))
	require.NoError(t, s.UpdateSite(ctx, "42", "http://ex.com/a", "fp2", docs))

	reopened, err := New(Config{Path: path}, nil)
	require.NoError(t, err)
	site, ok, err := reopened.GetSite(ctx, "42", "http://ex.com/a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fp2", site.Fingerprint)
	assert.Equal(t, docs, site.Documents)
}

func TestStateFileFormat(t *testing.T) {
	t.Parallel()

	s, path := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddSite(ctx, "42", "http://ex.com/a", "abcd",
		[]watch.DocumentRef{{Name: "report", URL: "http://ex.com/report.pdf"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records map[string]struct {
		TrackedSites []struct {
			URL         string `json:"url"`
			Fingerprint string `json:"fingerprint"`
			Documents   []struct {
				Name string `json:"name"`
				URL  string `json:"url"`
			} `json:"documents"`
		} `json:"tracked_sites"`
	}
	require.NoError(t, json.Unmarshal(data, &records))
	require.Contains(t, records, "42")
	require.Len(t, records["42"].TrackedSites, 1)
	got := records["42"].TrackedSites[0]
	assert.Equal(t, "http://ex.com/a", got.URL)
	assert.Equal(t, "abcd", got.Fingerprint)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "report", got.Documents[0].Name)
}

func TestMissingFileStartsEmpty(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)
	sites, err := s.ListSites(context.Background(), "42")
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := New(Config{Path: path}, nil)
	require.NoError(t, err)
	sites, err := s.ListSites(context.Background(), "42")
	require.NoError(t, err)
	assert.Empty(t, sites)

	// The store must still be writable after recovering from corruption.
	require.NoError(t, s.AddSite(context.Background(), "42", "http://ex.com/a", "fp", nil))
}

func TestRemoveThenStaleUpdateLeavesKeyAbsent(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddSite(ctx, "42", "http://ex.com/a", "fp1", nil))
	removed, err := s.RemoveSite(ctx, "42", "http://ex.com/a")
	require.NoError(t, err)
	require.True(t, removed)

	require.NoError(t, s.UpdateSite(ctx, "42", "http://ex.com/a", "fp2", nil))
	_, ok, err := s.GetSite(ctx, "42", "http://ex.com/a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	assert.Error(t, err)
}
