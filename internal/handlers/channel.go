package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tubescribe-backend/internal/models"
	"tubescribe-backend/internal/repository"
	"tubescribe-backend/internal/services"
)

type ChannelHandler struct {
	channelRepo *repository.ChannelRepo
	videoRepo   *repository.VideoRepo
	catalog     *services.CatalogService
}

func NewChannelHandler(channelRepo *repository.ChannelRepo, videoRepo *repository.VideoRepo, catalog *services.CatalogService) *ChannelHandler {
	return &ChannelHandler{channelRepo: channelRepo, videoRepo: videoRepo, catalog: catalog}
}

// Create registers a tracked channel, resolving its metadata through the
// YouTube Data API. Accepts a raw channel id or an @handle.
func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.YouTubeChannelID == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "youtube_channel_id is required", r))
		return
	}

	info, err := h.catalog.GetChannel(r.Context(), req.YouTubeChannelID)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResp("CHANNEL_LOOKUP_FAILED", err.Error(), r))
		return
	}

	name := req.Name
	if name == "" {
		name = info.Title
	}
	tagsJSON, _ := json.Marshal(req.Tags)
	if req.Tags == nil {
		tagsJSON = []byte("[]")
	}

	channel := &models.Channel{
		YouTubeChannelID:   info.ChannelID,
		YouTubeChannelName: name,
		TagsJSON:           tagsJSON,
	}
	if info.Description != "" {
		channel.Description = &info.Description
	}
	if info.ThumbnailURL != "" {
		channel.ThumbnailURL = &info.ThumbnailURL
	}

	if err := h.channelRepo.Create(r.Context(), channel); err != nil {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Channel is already tracked", r))
		return
	}

	writeJSON(w, http.StatusCreated, channel)
}

func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channelRepo.List(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list channels", r))
		return
	}
	if channels == nil {
		channels = []*models.Channel{}
	}
	writeJSON(w, http.StatusOK, channels)
}

func (h *ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	channel, ok := h.loadChannel(w, r)
	if !ok {
		return
	}

	total, err := h.videoRepo.CountByChannel(r.Context(), channel.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to count videos", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"channel":      channel,
		"total_videos": total,
	})
}

func (h *ChannelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	channel, ok := h.loadChannel(w, r)
	if !ok {
		return
	}

	if err := h.channelRepo.Delete(r.Context(), channel.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete channel", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Channel deleted"})
}

// FetchVideos pulls the channel's full upload history from the Data API and
// stores any videos not seen before.
func (h *ChannelHandler) FetchVideos(w http.ResponseWriter, r *http.Request) {
	channel, ok := h.loadChannel(w, r)
	if !ok {
		return
	}

	info, err := h.catalog.GetChannel(r.Context(), channel.YouTubeChannelID)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResp("CHANNEL_LOOKUP_FAILED", err.Error(), r))
		return
	}

	videos, err := h.catalog.ListAllVideos(r.Context(), info.UploadsPlaylist)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResp("CATALOG_FETCH_FAILED", err.Error(), r))
		return
	}

	newCount := 0
	for i := range videos {
		created, err := h.videoRepo.CreateFromInfo(r.Context(), channel.ID, &videos[i])
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store videos", r))
			return
		}
		if created {
			newCount++
		}
	}

	h.channelRepo.TouchLastChecked(r.Context(), channel.ID)

	writeJSON(w, http.StatusOK, models.FetchVideosResponse{
		NewVideos:   newCount,
		TotalVideos: len(videos),
	})
}

// loadChannel parses the id path param and loads the channel, writing the
// error response itself when either step fails.
func (h *ChannelHandler) loadChannel(w http.ResponseWriter, r *http.Request) (*models.Channel, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid channel ID", r))
		return nil, false
	}

	channel, err := h.channelRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Channel not found", r))
		} else {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load channel", r))
		}
		return nil, false
	}
	return channel, true
}
