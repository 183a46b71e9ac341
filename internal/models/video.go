package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Transcript status values for a video record.
const (
	StatusPending    = "pending"
	StatusExtracting = "extracting"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Video struct {
	ID                   uuid.UUID       `json:"id"`
	ChannelID            uuid.UUID       `json:"channel_id"`
	YouTubeVideoID       string          `json:"youtube_video_id"`
	Title                string          `json:"title"`
	Description          *string         `json:"description"`
	PublishedAt          *time.Time      `json:"published_at"`
	DurationSeconds      *int            `json:"duration_seconds"`
	ThumbnailURL         *string         `json:"thumbnail_url"`
	ViewCount            *int64          `json:"view_count"`
	LikeCount            *int64          `json:"like_count"`
	CommentCount         *int64          `json:"comment_count"`
	TagsJSON             json.RawMessage `json:"tags"`
	CategoryID           *string         `json:"category_id"`
	Definition           *string         `json:"definition"` // "hd" | "sd"
	Caption              bool            `json:"caption"`
	DefaultLanguage      *string         `json:"default_language"`
	DefaultAudioLanguage *string         `json:"default_audio_language"`
	HasTranscript        bool            `json:"has_transcript"`
	TranscriptStatus     string          `json:"transcript_status"` // pending | extracting | completed | failed
	TranscriptError      *string         `json:"transcript_error"`
	CreatedAt            time.Time       `json:"created_at"`
}

// VideoInfo is the catalog view of a video before it is stored.
type VideoInfo struct {
	VideoID              string
	Title                string
	Description          string
	PublishedAt          *time.Time
	DurationSeconds      int
	ThumbnailURL         string
	ViewCount            *int64
	LikeCount            *int64
	CommentCount         *int64
	Tags                 []string
	CategoryID           string
	Definition           string
	Caption              bool
	DefaultLanguage      string
	DefaultAudioLanguage string
}

// VideoListFilter narrows and orders channel video listings.
type VideoListFilter struct {
	TranscriptStatus string
	Definition       string
	HasCaption       *bool
	Search           string
	SortBy           string
	SortOrder        string
	Limit            int
	Offset           int
}
