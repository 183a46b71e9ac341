package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tubescribe-backend/internal/extract"
	"tubescribe-backend/internal/models"
	"tubescribe-backend/internal/services"
)

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return resp
}

func TestErrorRespEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
	req.Header.Set("X-Request-ID", "req-123")

	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusNotFound, errorResp("NOT_FOUND", "Video not found", req))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	resp := decodeError(t, rr)
	if resp.Error.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", resp.Error.Code)
	}
	if resp.Error.Message != "Video not found" {
		t.Errorf("message = %q", resp.Error.Message)
	}
	if resp.Error.RequestID != "req-123" {
		t.Errorf("request_id = %q, want the incoming X-Request-ID", resp.Error.RequestID)
	}
}

func TestWriteExtractErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"in progress", extract.ErrExtractionInProgress, http.StatusConflict, "EXTRACTION_IN_PROGRESS"},
		{"no captions", fmt.Errorf("%w for video x", extract.ErrNoCaptions), http.StatusUnprocessableEntity, "NO_TRANSCRIPT"},
		{"no transcript", extract.ErrNoTranscript, http.StatusUnprocessableEntity, "NO_TRANSCRIPT"},
		{"transcription failed", fmt.Errorf("%w (ai-cloud): quota", extract.ErrTranscriptionFailed), http.StatusUnprocessableEntity, "TRANSCRIPTION_FAILED"},
		{"provider down", fmt.Errorf("%w: timeout", extract.ErrProviderUnavailable), http.StatusBadGateway, "PROVIDER_UNAVAILABLE"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/x/extract", nil)
			rr := httptest.NewRecorder()

			writeExtractError(rr, req, tc.err)

			if rr.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			if resp := decodeError(t, rr); resp.Error.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", resp.Error.Code, tc.wantCode)
			}
		})
	}
}

func TestHandleServiceError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"conflict", &services.ConflictError{Message: "Channel already tracked"}, http.StatusConflict, "CONFLICT"},
		{"not found", &services.NotFoundError{Message: "No such channel"}, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", &services.UnauthorizedError{Message: "Invalid password"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"fallthrough", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
			rr := httptest.NewRecorder()

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			if resp := decodeError(t, rr); resp.Error.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", resp.Error.Code, tc.wantCode)
			}
		})
	}
}

func TestWriteSSEFraming(t *testing.T) {
	rr := httptest.NewRecorder()

	writeSSE(rr, rr, extract.BatchEvent{Status: "extracting", Current: 1, Total: 3})
	writeSSE(rr, rr, extract.BatchEvent{Status: "complete", Total: 3})

	body := rr.Body.String()
	frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2: %q", len(frames), body)
	}

	for i, frame := range frames {
		if !strings.HasPrefix(frame, "data: ") {
			t.Fatalf("frame %d missing data prefix: %q", i, frame)
		}
		var ev extract.BatchEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev); err != nil {
			t.Errorf("frame %d is not valid JSON: %v", i, err)
		}
	}

	if !rr.Flushed {
		t.Error("writeSSE did not flush")
	}
}
