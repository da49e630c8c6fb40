package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/backlinker/internal/apperr"
	"github.com/starford/backlinker/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// permalinkParam extracts the permalink from the URL (everything after
// /backlinks/). Encoded slashes are accepted.
func permalinkParam(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents of the latest snapshot
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.Documents(r.Context())
	if err != nil {
		slog.Error("list documents failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Total: len(docs)})
}

// SearchDocuments handles GET /api/documents/search?q=...&limit=...
//
//	@Summary		Search documents by title, permalink or path
//	@Tags			documents
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	DocumentListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/search [get]
func (h *Handler) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	docs, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Total: len(docs)})
}

// GetBacklinks handles GET /api/backlinks/*.
//
//	@Summary		Get the "mentioned by" list of a document
//	@Tags			backlinks
//	@Produce		json
//	@Param			permalink	path		string	true	"Document permalink"
//	@Success		200			{object}	BacklinksResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{permalink} [get]
func (h *Handler) GetBacklinks(w http.ResponseWriter, r *http.Request) {
	p := permalinkParam(r)
	detail, err := h.svc.Backlinks(r.Context(), p)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get backlinks failed", slog.String("permalink", p), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// ListConflicts handles GET /api/conflicts.
//
//	@Summary		List permalinks claimed by several documents
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	ConflictsResponse
//	@Security		BearerAuth
//	@Router			/conflicts [get]
func (h *Handler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := h.svc.Conflicts(r.Context())
	if err != nil {
		slog.Error("list conflicts failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ConflictsResponse{Conflicts: conflicts})
}

// LatestRun handles GET /api/runs/latest.
func (h *Handler) LatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.LatestRun(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("no runs yet"))
		} else {
			slog.Error("latest run failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// TriggerRun handles POST /api/runs.
//
//	@Summary		Recompute backlinks and rewrite changed documents
//	@Tags			runs
//	@Produce		json
//	@Param			dry_run	query		bool	false	"Compute changes without writing"
//	@Success		200		{object}	RunResponse
//	@Security		BearerAuth
//	@Router			/runs [post]
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))
	summary, err := h.svc.Update(r.Context(), dryRun)
	if err != nil {
		slog.Error("run failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("run failed"))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
