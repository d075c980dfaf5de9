package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/coord"
	"github.com/starford/ansuz/internal/indexer"
)

// Handler holds API route handlers over the coordinator.
type Handler struct {
	co *coord.Coordinator
}

// NewHandler creates a new Handler.
func NewHandler(co *coord.Coordinator) *Handler {
	return &Handler{co: co}
}

// Query handles POST /api/query.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	result, cached, err := h.co.Query(r.Context(), req.SQL, req.Params, req.Limit,
		time.Duration(req.TimeoutMs)*time.Millisecond)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result": result,
		"cached": cached,
	})
}

// Index handles POST /api/index.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	var (
		report *indexer.Report
		err    error
	)
	if req.Rebuild {
		report, err = h.co.Rebuild(r.Context())
	} else {
		report, err = h.co.Index(r.Context(), indexer.Options{
			Dir:       req.Dir,
			Recursive: req.Recursive,
			Force:     req.Force,
		})
	}
	if err != nil {
		if errors.Is(err, apperr.ErrUnrecoverable) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
			return
		}
		if apperr.IsLocked(err) {
			writeJSON(w, http.StatusConflict, errorBody(err.Error()))
			return
		}
		slog.Error("index run failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Fuzzy handles POST /api/fuzzy.
func (h *Handler) Fuzzy(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	var req FuzzyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	matches, err := h.co.Fuzzy(r.Context(), req.Term, req.Fields, req.Threshold, req.Limit)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// Schema handles GET /api/schema.
func (h *Handler) Schema(w http.ResponseWriter, r *http.Request) {
	withCounts := r.URL.Query().Get("counts") == "true"
	desc, err := h.co.Schema(withCounts)
	if err != nil {
		slog.Error("describe schema failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"health":     h.co.Health().String(),
		"generation": h.co.Generation(),
	})
}

// writeQueryError maps the error taxonomy onto HTTP statuses.
func writeQueryError(w http.ResponseWriter, err error) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case apperr.IsTimeout(err):
		writeJSON(w, http.StatusGatewayTimeout, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrUnrecoverable), apperr.IsLocked(err):
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
	default:
		slog.Error("query failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
	}
}
