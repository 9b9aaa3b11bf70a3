package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/commands"
	"github.com/JakeFAU/pagewatch/internal/config"
	"github.com/JakeFAU/pagewatch/internal/metrics"
	storemem "github.com/JakeFAU/pagewatch/internal/store/memory"
	"github.com/JakeFAU/pagewatch/internal/watch"
)

func init() {
	metrics.Init()
}

type stubInspector struct {
	fingerprint string
	documents   []watch.DocumentRef
	err         error
}

func (s *stubInspector) Inspect(context.Context, string) (string, []watch.DocumentRef, error) {
	return s.fingerprint, s.documents, s.err
}

func newTestServer(t *testing.T, cfg config.Config, inspector commands.Inspector) (*httptest.Server, *storemem.Store) {
	t.Helper()
	store := storemem.New()
	service := commands.New(store, inspector, zap.NewNop())
	srv := httptest.NewServer(NewServer(service, cfg, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, config.Config{}, &stubInspector{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp = doJSON(t, http.MethodGet, srv.URL+"/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, config.Config{}, &stubInspector{})
	resp := doJSON(t, http.MethodGet, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTrackSite(t *testing.T) {
	t.Parallel()

	inspector := &stubInspector{
		fingerprint: "fp",
		documents:   []watch.DocumentRef{{Name: "A", URL: "https://example.com/a.pdf"}},
	}
	srv, store := newTestServer(t, config.Config{}, inspector)

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/users/42/sites/", map[string]string{"url": "https://example.com"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	payload := decode(t, resp)
	assert.Equal(t, "https://example.com", payload["url"])
	assert.Equal(t, float64(1), payload["documents_found"])

	_, ok, err := store.GetSite(context.Background(), "42", "https://example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTrackSiteErrors(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, config.Config{}, &stubInspector{fingerprint: "fp"})

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/users/42/sites/", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/users/42/sites/", map[string]string{"url": "ftp://example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.NoError(t, store.AddSite(context.Background(), "42", "https://example.com", "fp", nil))
	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/users/42/sites/", map[string]string{"url": "https://example.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTrackSiteFetchFailure(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, config.Config{}, &stubInspector{err: assert.AnError})
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/users/42/sites/", map[string]string{"url": "https://example.com"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestListSites(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, config.Config{}, &stubInspector{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/users/42/sites/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decode(t, resp)
	assert.Empty(t, payload["sites"])

	require.NoError(t, store.AddSite(context.Background(), "42", "https://example.com", "fp", nil))
	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/users/42/sites/", nil)
	payload = decode(t, resp)
	sites, ok := payload["sites"].([]any)
	require.True(t, ok)
	require.Len(t, sites, 1)
}

func TestUntrackSite(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, config.Config{}, &stubInspector{})
	require.NoError(t, store.AddSite(context.Background(), "42", "https://example.com", "fp", nil))

	resp := doJSON(t, http.MethodDelete, srv.URL+"/v1/users/42/sites/", map[string]string{"url": "https://example.com"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/v1/users/42/sites/", map[string]string{"url": "https://example.com"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListDocuments(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, config.Config{}, &stubInspector{})
	docs := []watch.DocumentRef{{Name: "A", URL: "https://example.com/a.pdf"}}
	require.NoError(t, store.AddSite(context.Background(), "42", "https://example.com", "fp", docs))

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/users/42/sites/documents?url=https%3A%2F%2Fexample.com", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decode(t, resp)
	gotDocs, ok := payload["documents"].([]any)
	require.True(t, ok)
	require.Len(t, gotDocs, 1)

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/users/42/sites/documents?url=https%3A%2F%2Fother.example.com", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/users/42/sites/documents", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	srv, _ := newTestServer(t, cfg, &stubInspector{})

	// Health endpoints stay open.
	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/users/42/sites/", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/users/42/sites/", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/users/42/sites/?api_key=secret", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
