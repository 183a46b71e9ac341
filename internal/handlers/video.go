package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tubescribe-backend/internal/download"
	"tubescribe-backend/internal/extract"
	"tubescribe-backend/internal/models"
	"tubescribe-backend/internal/repository"
)

type VideoHandler struct {
	videoRepo      *repository.VideoRepo
	transcriptRepo *repository.TranscriptRepo
	audio          extract.AudioFetcher
}

func NewVideoHandler(videoRepo *repository.VideoRepo, transcriptRepo *repository.TranscriptRepo, audio extract.AudioFetcher) *VideoHandler {
	return &VideoHandler{videoRepo: videoRepo, transcriptRepo: transcriptRepo, audio: audio}
}

// List returns a channel's videos, filtered and ordered by query params.
func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid channel ID", r))
		return
	}

	q := r.URL.Query()
	filter := models.VideoListFilter{
		TranscriptStatus: q.Get("transcript_status"),
		Definition:       q.Get("definition"),
		Search:           q.Get("search"),
		SortBy:           q.Get("sort_by"),
		SortOrder:        q.Get("sort_order"),
	}
	if v := q.Get("has_caption"); v != "" {
		b := v == "true"
		filter.HasCaption = &b
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		filter.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		filter.Offset = n
	}

	videos, err := h.videoRepo.ListByChannel(r.Context(), channelID, filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list videos", r))
		return
	}
	if videos == nil {
		videos = []*models.Video{}
	}
	writeJSON(w, http.StatusOK, videos)
}

func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, video)
}

// GetTranscript returns the transcript with both timestamped and plain text.
func (h *VideoHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}

	t, err := h.transcriptRepo.GetByVideoID(r.Context(), video.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video has no transcript", r))
		} else {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load transcript", r))
		}
		return
	}

	writeJSON(w, http.StatusOK, models.TranscriptResponse{
		ID:           t.ID,
		VideoID:      t.VideoID,
		Content:      t.Content,
		PlainContent: models.StripTimestamps(t.Content),
		Language:     t.Language,
		WordCount:    t.WordCount,
		Method:       t.Method,
		CreatedAt:    t.CreatedAt,
	})
}

// DownloadTranscript serves the transcript as a .txt attachment. Pass
// timestamps=false to strip the [MM:SS] markers.
func (h *VideoHandler) DownloadTranscript(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}

	t, err := h.transcriptRepo.GetByVideoID(r.Context(), video.ID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video has no transcript", r))
		return
	}

	content := t.Content
	if r.URL.Query().Get("timestamps") == "false" {
		content = models.StripTimestamps(content)
	}

	var b strings.Builder
	b.WriteString(video.Title + "\n")
	b.WriteString(fmt.Sprintf("https://www.youtube.com/watch?v=%s\n", video.YouTubeVideoID))
	if video.PublishedAt != nil {
		b.WriteString("Published: " + video.PublishedAt.Format("2006-01-02") + "\n")
	}
	b.WriteString(fmt.Sprintf("Method: %s | Language: %s | Words: %d\n\n", t.Method, t.Language, t.WordCount))
	b.WriteString(content)
	b.WriteString("\n")

	filename := download.SanitizeFilename(video.Title, 80) + "_transcript.txt"
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write([]byte(b.String()))
}

// DownloadAudio fetches and streams the best audio track for one video.
func (h *VideoHandler) DownloadAudio(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}

	audioPath, err := h.audio.Fetch(r.Context(), video.YouTubeVideoID)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResp("AUDIO_DOWNLOAD_FAILED", err.Error(), r))
		return
	}
	defer os.RemoveAll(filepath.Dir(audioPath))

	f, err := os.Open(audioPath)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to read audio file", r))
		return
	}
	defer f.Close()

	filename := download.AudioFileName(video, filepath.Ext(audioPath))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	io.Copy(w, f)
}

// ExportMarkdown bundles every completed transcript of a channel into one
// markdown document.
func (h *VideoHandler) ExportMarkdown(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid channel ID", r))
		return
	}

	videos, transcripts, err := h.transcriptRepo.ListByChannel(r.Context(), channelID, nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load transcripts", r))
		return
	}
	if len(transcripts) == 0 {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Channel has no transcripts", r))
		return
	}

	var b strings.Builder
	for i, t := range transcripts {
		video := videos[i]
		b.WriteString("# " + video.Title + "\n\n")
		if video.PublishedAt != nil {
			b.WriteString("Published: " + video.PublishedAt.Format("2006-01-02") + "\n")
		}
		b.WriteString(fmt.Sprintf("Video: https://www.youtube.com/watch?v=%s\n", video.YouTubeVideoID))
		b.WriteString(fmt.Sprintf("Method: %s | Words: %d\n\n", t.Method, t.WordCount))
		b.WriteString(t.Content)
		b.WriteString("\n\n---\n\n")
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transcripts.md"`)
	w.Write([]byte(b.String()))
}

func (h *VideoHandler) loadVideo(w http.ResponseWriter, r *http.Request) (*models.Video, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid video ID", r))
		return nil, false
	}

	video, err := h.videoRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video not found", r))
		} else {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load video", r))
		}
		return nil, false
	}
	return video, true
}
