package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Channel struct {
	ID                 uuid.UUID       `json:"id"`
	YouTubeChannelID   string          `json:"youtube_channel_id"`
	YouTubeChannelName string          `json:"youtube_channel_name"`
	Description        *string         `json:"description"`
	ThumbnailURL       *string         `json:"thumbnail_url"`
	TagsJSON           json.RawMessage `json:"tags"`
	LastCheckedAt      *time.Time      `json:"last_checked_at"`
	CreatedAt          time.Time       `json:"created_at"`
}

type CreateChannelRequest struct {
	YouTubeChannelID string   `json:"youtube_channel_id"`
	Name             string   `json:"name"`
	Tags             []string `json:"tags"`
}

type FetchVideosResponse struct {
	NewVideos   int `json:"new_videos"`
	TotalVideos int `json:"total_videos"`
}
