package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/PascalRepond/rero-mef/internal/handler/dto"
)

func newTestRecordsHandler() *RecordsHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRecordsHandler(nil, nil, nil, nil, logger)
}

func requestWithParams(method, target string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestRecordsHandler_GetUnknownEntity(t *testing.T) {
	h := newTestRecordsHandler()

	req := requestWithParams(http.MethodGet, "/api/loc/n79021383",
		map[string]string{"entity": "loc", "pid": "n79021383"})
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	var response dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Code != "UNKNOWN_ENTITY" {
		t.Errorf("unexpected error code: %s", response.Code)
	}
}

func TestRecordsHandler_GetMissingPid(t *testing.T) {
	h := newTestRecordsHandler()

	req := requestWithParams(http.MethodGet, "/api/gnd/",
		map[string]string{"entity": "gnd"})
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestRecordsHandler_LatestInvalidRef(t *testing.T) {
	h := newTestRecordsHandler()

	tests := []struct {
		name string
		ref  string
		code string
	}{
		{"no separator", "118540238", "INVALID_REF"},
		{"empty pid", "gnd:", "INVALID_REF"},
		{"unknown source", "loc:n79021383", "INVALID_SOURCE"},
		{"non-agent source", "mef:42", "INVALID_SOURCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestWithParams(http.MethodGet, "/api/mef/latest/"+tt.ref,
				map[string]string{"ref": tt.ref})
			rec := httptest.NewRecorder()

			h.Latest(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rec.Code)
			}

			var response dto.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Code != tt.code {
				t.Errorf("error code = %s, want %s", response.Code, tt.code)
			}
		})
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"0", false},
		{"", false},
		{"yes", false},
	}
	for _, tt := range tests {
		if got := isTruthy(tt.in); got != tt.want {
			t.Errorf("isTruthy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
