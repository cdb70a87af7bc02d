package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/queryservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc     *queryservice.Service
	trigger func() // requests a sync pass; nil disables POST /sync
}

// NewHandler creates a new Handler.
func NewHandler(svc *queryservice.Service, trigger func()) *Handler {
	return &Handler{svc: svc, trigger: trigger}
}

// notePath extracts the note path from the URL (everything after the
// route prefix). Supports encoded slashes (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Search handles GET /api/search. An empty query yields an empty result.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.svc.SearchNotes(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: emptyIfNil(results)})
}

// SemanticSearch handles GET /api/semantic-search.
func (h *Handler) SemanticSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.svc.SemanticSearch(r.Context(), q, limit)
	if err != nil {
		slog.Error("semantic search failed", slog.String("query", q), slog.String("error", err.Error()))
		if errors.Is(err, apperr.ErrUnavailable) {
			writeJSON(w, http.StatusBadGateway, errorBody("embedding provider unavailable"))
		} else {
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, ScoredResponse{Results: emptyIfNil(results)})
}

// Graph handles GET /api/graph.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, edges, err := h.svc.GraphData(r.Context())
	if err != nil {
		slog.Error("graph failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: emptyIfNil(nodes), Edges: emptyIfNil(edges)})
}

// Tasks handles GET /api/tasks.
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.AllTasks(r.Context())
	if err != nil {
		slog.Error("tasks failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, TasksResponse{Tasks: emptyIfNil(tasks)})
}

// Related handles GET /api/related?path=. A note with no embedding
// yields an empty result.
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	results, err := h.svc.RelatedNotes(r.Context(), path)
	if err != nil {
		slog.Error("related notes failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ScoredResponse{Results: emptyIfNil(results)})
}

// Tree handles GET /api/tree.
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.svc.Tree(r.Context())
	if err != nil {
		slog.Error("tree failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, TreeResponse{Tree: emptyIfNil(tree)})
}

// GetNote handles GET /api/notes/*.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Sync handles POST /api/sync: it requests a pass and returns
// immediately; completion is announced on the SSE stream.
func (h *Handler) Sync(w http.ResponseWriter, _ *http.Request) {
	if h.trigger == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("sync unavailable"))
		return
	}
	h.trigger()
	w.WriteHeader(http.StatusAccepted)
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
