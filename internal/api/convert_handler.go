// Package api provides the HTTP handlers for the query conversion REST API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cdlconv/internal/history"
	"cdlconv/internal/middleware"
	"cdlconv/internal/report"
	"cdlconv/internal/service"
	"cdlconv/internal/sqlast"
)

// maxBatchSize bounds one batch request.
const maxBatchSize = 500

// Handler serves the conversion API.
type Handler struct {
	converter *service.ConvertService
	store     *history.Store // nil when history is disabled
	logger    *slog.Logger
}

// NewHandler builds the handler. store may be nil.
func NewHandler(converter *service.ConvertService, store *history.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{converter: converter, store: store, logger: logger}
}

// Routes mounts the API endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/convert", h.Convert)
	r.Post("/convert/batch", h.ConvertBatch)
	r.Post("/convert/report", h.ConvertReport)
	r.Get("/history", h.History)
	r.Post("/mapping/reload", h.MappingReload)
}

// Convert handles POST /v1/convert.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var req service.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "PARSE_ERROR", "invalid request body")
		return
	}
	if req.Query == "" {
		h.writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "query is required")
		return
	}

	resp, err := h.converter.Convert(r.Context(), req)
	if err != nil {
		h.convertError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// batchRequest is the body of POST /v1/convert/batch.
type batchRequest struct {
	Requests []service.Request `json:"requests"`
}

// ConvertBatch handles POST /v1/convert/batch.
func (h *Handler) ConvertBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "PARSE_ERROR", "invalid request body")
		return
	}
	if len(req.Requests) == 0 {
		h.writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "requests is required")
		return
	}
	if len(req.Requests) > maxBatchSize {
		h.writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "batch exceeds "+strconv.Itoa(maxBatchSize)+" requests")
		return
	}

	results := h.converter.ConvertBatch(r.Context(), req.Requests)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// ConvertReport handles POST /v1/convert/report: the same conversion, but
// rendered as a standalone HTML review page.
func (h *Handler) ConvertReport(w http.ResponseWriter, r *http.Request) {
	var req service.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "PARSE_ERROR", "invalid request body")
		return
	}
	if req.Query == "" {
		h.writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "query is required")
		return
	}

	resp, err := h.converter.Convert(r.Context(), req)
	if err != nil {
		h.convertError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := report.Render(w, req.Query, resp); err != nil {
		h.logger.Error("report render failed", "error", err,
			"request_id", middleware.RequestIDFromContext(r.Context()))
	}
}

// History handles GET /v1/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, r, http.StatusNotFound, "HISTORY_DISABLED", "conversion history is not enabled")
		return
	}

	filter := history.Filter{}
	q := r.URL.Query()
	if v := q.Get("failed"); v == "true" || v == "1" {
		filter.OnlyFailed = true
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	records, total, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("history list failed", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "STORE_ERROR", "could not read history")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   total,
	})
}

// MappingReload handles POST /v1/mapping/reload.
func (h *Handler) MappingReload(w http.ResponseWriter, r *http.Request) {
	if err := h.converter.Reload(r.Context()); err != nil {
		h.logger.Error("mapping reload failed", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "RELOAD_ERROR", err.Error())
		return
	}
	rows, loaded := h.converter.MappingInfo()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "reloaded",
		"rows":      rows,
		"loaded_at": loaded,
	})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	rows, loaded := h.converter.MappingInfo()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"mapping_rows": rows,
		"loaded_at":    loaded,
	})
}

// convertError maps a conversion failure to a status code. Parse and dialect
// problems are the caller's fault.
func (h *Handler) convertError(w http.ResponseWriter, r *http.Request, err error) {
	var parseErr *sqlast.ParseError
	if errors.As(err, &parseErr) {
		h.writeError(w, r, http.StatusBadRequest, "SQL_PARSE_ERROR", err.Error())
		return
	}
	var dialectErr *sqlast.DialectError
	if errors.As(err, &dialectErr) {
		h.writeError(w, r, http.StatusBadRequest, "UNSUPPORTED_DIALECT", err.Error())
		return
	}
	h.logger.Error("conversion failed", "error", err,
		"request_id", middleware.RequestIDFromContext(r.Context()))
	h.writeError(w, r, http.StatusInternalServerError, "CONVERT_ERROR", "conversion failed")
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error":      msg,
		"code":       code,
		"request_id": middleware.RequestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
