package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JakeFAU/pagewatch/internal/commands"
	"github.com/JakeFAU/pagewatch/internal/watch"
)

// CommandService is the subset of the command service the API needs.
type CommandService interface {
	Track(ctx context.Context, userID, rawURL string) (watch.TrackedSite, error)
	Untrack(ctx context.Context, userID, rawURL string) error
	List(ctx context.Context, userID string) ([]watch.TrackedSite, error)
	Documents(ctx context.Context, userID, rawURL string) ([]watch.DocumentRef, error)
}

type siteRequest struct {
	URL string `json:"url"`
}

func (s *Server) listSites(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	sites, err := s.service.List(r.Context(), userID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list sites")
		return
	}
	if sites == nil {
		sites = []watch.TrackedSite{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

func (s *Server) trackSite(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	var req siteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "missing url")
		return
	}

	site, err := s.service.Track(r.Context(), userID, req.URL)
	switch {
	case errors.Is(err, watch.ErrInvalidURL):
		s.writeError(w, http.StatusBadRequest, "url must start with http or https")
	case errors.Is(err, watch.ErrAlreadyTracked):
		s.writeError(w, http.StatusConflict, "url is already tracked")
	case errors.Is(err, commands.ErrFetchFailed):
		s.writeError(w, http.StatusBadGateway, "failed to access the url")
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, "failed to track url")
	default:
		s.writeJSON(w, http.StatusCreated, map[string]any{
			"url":             site.URL,
			"documents_found": len(site.Documents),
		})
	}
}

func (s *Server) untrackSite(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	var req siteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "missing url")
		return
	}

	err := s.service.Untrack(r.Context(), userID, req.URL)
	switch {
	case errors.Is(err, watch.ErrNotTracked):
		s.writeError(w, http.StatusNotFound, "url is not tracked")
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, "failed to untrack url")
	default:
		s.writeJSON(w, http.StatusOK, map[string]string{"url": req.URL, "status": "untracked"})
	}
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		s.writeError(w, http.StatusBadRequest, "missing url query parameter")
		return
	}

	docs, err := s.service.Documents(r.Context(), userID, rawURL)
	switch {
	case errors.Is(err, watch.ErrNotTracked):
		s.writeError(w, http.StatusNotFound, "url is not tracked")
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, "failed to list documents")
	default:
		if docs == nil {
			docs = []watch.DocumentRef{}
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"url": rawURL, "documents": docs})
	}
}
