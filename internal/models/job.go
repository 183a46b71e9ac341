package models

import (
	"time"

	"github.com/google/uuid"
)

// ExtractionJob is the payload queued to the background worker for a
// single-video extraction.
type ExtractionJob struct {
	ID          uuid.UUID `json:"id"`
	VideoID     uuid.UUID `json:"video_id"`
	UseFallback bool      `json:"use_fallback"`
	Force       bool      `json:"force"`
	RetryCount  int       `json:"retry_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// WebSocket message types

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type ExtractionUpdate struct {
	VideoID uuid.UUID `json:"video_id"`
	Title   string    `json:"title"`
	Status  string    `json:"status"`
	Method  string    `json:"method,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// API Error response

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
