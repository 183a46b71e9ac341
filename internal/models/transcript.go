package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Extraction methods recorded on a completed transcript.
const (
	MethodNone    = "none"
	MethodCaption = "caption"
	MethodAICloud = "ai-cloud"
	MethodAILocal = "ai-local"
)

type Transcript struct {
	ID        uuid.UUID `json:"id"`
	VideoID   uuid.UUID `json:"video_id"`
	Content   string    `json:"content"` // line-oriented, with [MM:SS] / [HH:MM:SS] markers
	Language  string    `json:"language"`
	WordCount int       `json:"word_count"`
	Method    string    `json:"method"` // caption | ai-cloud | ai-local
	CreatedAt time.Time `json:"created_at"`
}

type TranscriptResponse struct {
	ID           uuid.UUID `json:"id"`
	VideoID      uuid.UUID `json:"video_id"`
	Content      string    `json:"content"`
	PlainContent string    `json:"plain_content"`
	Language     string    `json:"language"`
	WordCount    int       `json:"word_count"`
	Method       string    `json:"method"`
	CreatedAt    time.Time `json:"created_at"`
}

var timestampPrefix = regexp.MustCompile(`^\[\d{1,2}:\d{2}(?::\d{2})?\]\s*`)

// StripTimestamps removes the leading [MM:SS] markers from each line of a
// transcript, yielding display-free plain text.
func StripTimestamps(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = timestampPrefix.ReplaceAllString(line, "")
	}
	return strings.Join(lines, "\n")
}
