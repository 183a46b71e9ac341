package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tubescribe-backend/internal/extract"
	"tubescribe-backend/internal/models"
	"tubescribe-backend/internal/repository"
	"tubescribe-backend/internal/worker"
)

type ExtractHandler struct {
	extractor   *extract.Extractor
	videoRepo   *repository.VideoRepo
	pool        *worker.Pool
	concurrency int
}

func NewExtractHandler(extractor *extract.Extractor, videoRepo *repository.VideoRepo, pool *worker.Pool, concurrency int) *ExtractHandler {
	return &ExtractHandler{
		extractor:   extractor,
		videoRepo:   videoRepo,
		pool:        pool,
		concurrency: concurrency,
	}
}

type extractRequest struct {
	UseFallback bool `json:"use_fallback"`
	Force       bool `json:"force"`
	CaptionOnly bool `json:"caption_only"`
}

// ExtractOne runs a synchronous extraction for a single video.
func (h *ExtractHandler) ExtractOne(w http.ResponseWriter, r *http.Request) {
	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid video ID", r))
		return
	}

	var req extractRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	transcript, err := h.extractor.ExtractOne(r.Context(), videoID, extract.Options{
		UseFallback: req.UseFallback,
		Force:       req.Force,
	})
	if err != nil {
		writeExtractError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.TranscriptResponse{
		ID:           transcript.ID,
		VideoID:      transcript.VideoID,
		Content:      transcript.Content,
		PlainContent: models.StripTimestamps(transcript.Content),
		Language:     transcript.Language,
		WordCount:    transcript.WordCount,
		Method:       transcript.Method,
		CreatedAt:    transcript.CreatedAt,
	})
}

// Enqueue queues a background extraction for a single video. Progress is
// delivered over the WebSocket.
func (h *ExtractHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid video ID", r))
		return
	}

	var req extractRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	job := &models.ExtractionJob{
		ID:          uuid.New(),
		VideoID:     videoID,
		UseFallback: req.UseFallback,
		Force:       req.Force,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.pool.Enqueue(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue extraction", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": job.ID})
}

// ExtractChannelStream runs a batch extraction over every extractable video
// of a channel, streaming progress as server-sent events. One event is sent
// per video in completion order, then a terminal summary event.
func (h *ExtractHandler) ExtractChannelStream(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid channel ID", r))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Streaming not supported", r))
		return
	}

	q := r.URL.Query()
	useFallback := q.Get("use_fallback") == "true"
	captionOnly := q.Get("caption_only") == "true"
	force := q.Get("force") == "true"

	// Forced runs re-extract the whole channel, so the completed filter is
	// lifted from the video list.
	videos, err := h.videoRepo.ListExtractable(r.Context(), channelID, captionOnly, force)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list videos", r))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := h.extractor.RunBatch(r.Context(), videos, extract.BatchOptions{
		UseFallback: useFallback,
		Force:       force,
		Concurrency: h.concurrency,
	})

	for event := range events {
		writeSSE(w, flusher, event)
	}
}

// ExtractChannel runs the same batch synchronously and returns only the
// final counters.
func (h *ExtractHandler) ExtractChannel(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid channel ID", r))
		return
	}

	var req extractRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	videos, err := h.videoRepo.ListExtractable(r.Context(), channelID, req.CaptionOnly, req.Force)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list videos", r))
		return
	}

	summary := h.extractor.RunBatchSummary(r.Context(), videos, extract.BatchOptions{
		UseFallback: req.UseFallback,
		Force:       req.Force,
		Concurrency: h.concurrency,
	})

	writeJSON(w, http.StatusOK, summary)
}

// writeSSE frames one event as a server-sent-event data record.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func writeExtractError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, extract.ErrExtractionInProgress):
		writeJSON(w, http.StatusConflict, errorResp("EXTRACTION_IN_PROGRESS", "Extraction already running for this video", r))
	case errors.Is(err, extract.ErrNoCaptions), errors.Is(err, extract.ErrNoTranscript):
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("NO_TRANSCRIPT", err.Error(), r))
	case errors.Is(err, extract.ErrTranscriptionFailed):
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("TRANSCRIPTION_FAILED", err.Error(), r))
	case errors.Is(err, extract.ErrProviderUnavailable):
		writeJSON(w, http.StatusBadGateway, errorResp("PROVIDER_UNAVAILABLE", err.Error(), r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
