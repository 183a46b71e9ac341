package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tubescribe-backend/internal/download"
	"tubescribe-backend/internal/repository"
)

type DownloadHandler struct {
	manager     *download.Manager
	channelRepo *repository.ChannelRepo
	videoRepo   *repository.VideoRepo
}

func NewDownloadHandler(manager *download.Manager, channelRepo *repository.ChannelRepo, videoRepo *repository.VideoRepo) *DownloadHandler {
	return &DownloadHandler{manager: manager, channelRepo: channelRepo, videoRepo: videoRepo}
}

// PrepareAllAudio downloads and archives audio for every transcript-pending
// video of a channel, streaming progress as server-sent events. The final
// ready event carries a single-use token for DownloadPrepared.
func (h *DownloadHandler) PrepareAllAudio(w http.ResponseWriter, r *http.Request) {
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

	channel, err := h.channelRepo.GetByID(r.Context(), channelID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Channel not found", r))
		} else {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load channel", r))
		}
		return
	}

	videos, err := h.videoRepo.ListPendingAudio(r.Context(), channelID)
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

	events := h.manager.Prepare(r.Context(), channel.YouTubeChannelName, videos)
	for event := range events {
		writeSSE(w, flusher, event)
	}
}

// DownloadPrepared redeems a preparation token and streams the archive. A
// token works exactly once.
func (h *DownloadHandler) DownloadPrepared(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	archive, filename, err := h.manager.Redeem(token)
	if err != nil {
		switch {
		case errors.Is(err, download.ErrTokenExpired):
			writeJSON(w, http.StatusGone, errorResp("TOKEN_EXPIRED", "Download token has expired", r))
		case errors.Is(err, download.ErrTokenNotFound):
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Download token not found or already used", r))
		default:
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to open archive", r))
		}
		return
	}
	defer archive.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	io.Copy(w, archive)
}
