package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/PascalRepond/rero-mef/internal/cache"
	"github.com/PascalRepond/rero-mef/internal/handler/dto"
	"github.com/PascalRepond/rero-mef/internal/metrics"
	"github.com/PascalRepond/rero-mef/internal/model"
	"github.com/PascalRepond/rero-mef/internal/repository"
	"github.com/PascalRepond/rero-mef/internal/service"
)

// DefaultPageSize bounds record listings.
const DefaultPageSize = 20

// MaxPageSize is the largest accepted page size.
const MaxPageSize = 100

// RecordsHandler serves the record read API.
type RecordsHandler struct {
	repo    *repository.Repository
	mef     *service.MEFService
	cache   *cache.Cache
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewRecordsHandler creates a new RecordsHandler. cache may be nil.
func NewRecordsHandler(repo *repository.Repository, mef *service.MEFService, recordCache *cache.Cache, recorder metrics.Recorder, logger *slog.Logger) *RecordsHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RecordsHandler{
		repo:    repo,
		mef:     mef,
		cache:   recordCache,
		metrics: recorder,
		logger:  logger,
	}
}

// List handles GET /api/{entity}.
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entityParam(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	limit := DefaultPageSize
	if l := query.Get("size"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= MaxPageSize {
			limit = parsed
		}
	}

	records, next, err := h.repo.Records(entity).List(r.Context(), query.Get("cursor"), limit)
	if err != nil {
		h.handleError(w, err)
		return
	}
	if records == nil {
		records = []model.Record{}
	}

	writeJSON(w, http.StatusOK, dto.RecordListResponse{
		Hits:       records,
		NextCursor: next,
		HasMore:    next != "",
	})
}

// Get handles GET /api/{entity}/{pid}.
// For MEF records, ?resolve=1 embeds the referenced source records.
func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entityParam(w, r)
	if !ok {
		return
	}
	pid := chi.URLParam(r, "pid")
	if pid == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_PID", "Record pid is required")
		return
	}
	resolve := entity == model.EntityMef && isTruthy(r.URL.Query().Get("resolve"))

	start := time.Now()
	h.metrics.IncRecordLookup(string(entity))
	defer func() {
		h.metrics.ObserveLookupDuration(time.Since(start))
	}()

	rec, err := h.lookup(r, entity, pid, resolve)
	if err != nil {
		h.handleError(w, err)
		return
	}

	if resolve {
		if rec, err = h.resolveMEF(r, rec); err != nil {
			h.handleError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, rec)
}

// Latest handles GET /api/mef/latest/{ref} where ref is "<source>:<pid>".
// It resolves pid redirections and returns the current MEF record.
func (h *RecordsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	source, pid, ok := strings.Cut(ref, ":")
	if !ok || pid == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_REF", "Reference must be <source>:<pid>")
		return
	}
	entity, err := model.ParseEntity(source)
	if err != nil || !entity.IsAgent() {
		h.writeError(w, http.StatusBadRequest, "INVALID_SOURCE", "Unknown source "+source)
		return
	}

	rec, err := h.mef.GetLatest(r.Context(), entity, pid)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Count handles GET /api/{entity}/count.
func (h *RecordsHandler) Count(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entityParam(w, r)
	if !ok {
		return
	}
	count, err := h.repo.Records(entity).Count(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CountResponse{Entity: string(entity), Count: count})
}

// lookup reads a record through the cache. Resolved MEF lookups skip
// the cache, which only holds stored documents.
func (h *RecordsHandler) lookup(r *http.Request, entity model.Entity, pid string, skipCache bool) (model.Record, error) {
	ctx := r.Context()
	if h.cache == nil || skipCache {
		return h.repo.Records(entity).Get(ctx, pid)
	}

	if negative, err := h.cache.IsNegativelyCached(ctx, entity, pid); err == nil && negative {
		return nil, repository.ErrRecordNotFound
	}
	if rec, err := h.cache.GetRecord(ctx, entity, pid); err == nil {
		return rec, nil
	}

	rec, err := h.repo.Records(entity).Get(ctx, pid)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			if cerr := h.cache.SetNegativeCache(ctx, entity, pid); cerr != nil {
				h.logger.Warn("failed to set negative cache", "error", cerr)
			}
		}
		return nil, err
	}
	if cerr := h.cache.SetRecord(ctx, entity, pid, rec); cerr != nil {
		h.logger.Warn("failed to cache record", "error", cerr)
	}
	return rec, nil
}

// resolveMEF replaces the $ref stubs of a MEF record with the full
// source documents and names the linked sources.
func (h *RecordsHandler) resolveMEF(r *http.Request, rec model.Record) (model.Record, error) {
	mef, err := model.MEFFromRecord(rec)
	if err != nil {
		return nil, err
	}
	resolved, err := rec.Clone()
	if err != nil {
		return nil, err
	}
	sources := make([]string, 0, len(mef.Sources()))
	for _, e := range mef.Sources() {
		sources = append(sources, string(e))
	}
	resolved["sources"] = sources
	for _, e := range mef.Sources() {
		pid := model.PidFromRef(mef.SourceRef(e))
		agent, err := h.repo.Records(e).Get(r.Context(), pid)
		if err != nil {
			if errors.Is(err, repository.ErrRecordNotFound) {
				h.logger.Warn("mef reference points at missing record",
					"entity", string(e), "pid", pid)
				continue
			}
			return nil, err
		}
		resolved[string(e)] = agent
	}
	return resolved, nil
}

func (h *RecordsHandler) entityParam(w http.ResponseWriter, r *http.Request) (model.Entity, bool) {
	name := chi.URLParam(r, "entity")
	entity, err := model.ParseEntity(name)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "UNKNOWN_ENTITY", "Unknown record type "+name)
		return "", false
	}
	return entity, true
}

// handleError maps repository and service errors to HTTP responses.
func (h *RecordsHandler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrRecordNotFound),
		errors.Is(err, service.ErrRecordNotFound):
		h.writeError(w, http.StatusNotFound, "RECORD_NOT_FOUND", "Record not found")
	case errors.Is(err, repository.ErrInvalidCursor):
		h.writeError(w, http.StatusBadRequest, "INVALID_CURSOR", "Invalid pagination cursor")
	case errors.Is(err, service.ErrRedirectLoop):
		h.writeError(w, http.StatusConflict, "REDIRECT_LOOP", "Record redirections form a loop")
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *RecordsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func isTruthy(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}
