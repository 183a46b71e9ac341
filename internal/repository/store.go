package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tubescribe-backend/internal/models"
)

// Store bridges the extraction engine to the video and transcript repos.
// SaveTranscript is the engine's single terminal write on success: it
// upserts the transcript row and flips the video to completed.
type Store struct {
	videos      *VideoRepo
	transcripts *TranscriptRepo
}

func NewStore(videos *VideoRepo, transcripts *TranscriptRepo) *Store {
	return &Store{videos: videos, transcripts: transcripts}
}

func (s *Store) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	return s.videos.GetByID(ctx, id)
}

func (s *Store) GetTranscript(ctx context.Context, videoID uuid.UUID) (*models.Transcript, error) {
	return s.transcripts.GetByVideoID(ctx, videoID)
}

func (s *Store) SetStatus(ctx context.Context, videoID uuid.UUID, status string, errMsg *string) error {
	return s.videos.UpdateTranscriptStatus(ctx, videoID, status, errMsg)
}

func (s *Store) SaveTranscript(ctx context.Context, t *models.Transcript) error {
	if err := s.transcripts.Upsert(ctx, t); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return s.videos.MarkTranscribed(ctx, t.VideoID)
}
