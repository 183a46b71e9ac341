package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tubescribe-backend/internal/models"
)

type TranscriptRepo struct {
	pool *pgxpool.Pool
}

func NewTranscriptRepo(pool *pgxpool.Pool) *TranscriptRepo {
	return &TranscriptRepo{pool: pool}
}

// Upsert writes the transcript for a video, replacing any earlier attempt.
func (r *TranscriptRepo) Upsert(ctx context.Context, t *models.Transcript) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	query := `INSERT INTO transcripts (id, video_id, content, language, word_count, method)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (video_id) DO UPDATE
		SET content = EXCLUDED.content, language = EXCLUDED.language,
			word_count = EXCLUDED.word_count, method = EXCLUDED.method
		RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		t.ID, t.VideoID, t.Content, t.Language, t.WordCount, t.Method,
	).Scan(&t.CreatedAt)
}

func (r *TranscriptRepo) GetByVideoID(ctx context.Context, videoID uuid.UUID) (*models.Transcript, error) {
	t := &models.Transcript{}
	query := `SELECT id, video_id, content, language, word_count, method, created_at
		FROM transcripts WHERE video_id = $1`

	err := r.pool.QueryRow(ctx, query, videoID).Scan(
		&t.ID, &t.VideoID, &t.Content, &t.Language, &t.WordCount, &t.Method, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListByChannel returns videos joined with their transcripts, oldest first,
// optionally restricted to the given video ids.
func (r *TranscriptRepo) ListByChannel(ctx context.Context, channelID uuid.UUID, videoIDs []uuid.UUID) ([]*models.Video, []*models.Transcript, error) {
	query := `SELECT v.id, v.youtube_video_id, v.title, v.published_at, v.duration_seconds, v.view_count, v.like_count,
			t.id, t.video_id, t.content, t.language, t.word_count, t.method, t.created_at
		FROM videos v JOIN transcripts t ON t.video_id = v.id
		WHERE v.channel_id = $1 AND v.has_transcript = TRUE`
	args := []interface{}{channelID}

	if len(videoIDs) > 0 {
		query += " AND v.id = ANY($2)"
		args = append(args, videoIDs)
	}
	query += " ORDER BY v.published_at ASC NULLS LAST"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var videos []*models.Video
	var transcripts []*models.Transcript
	for rows.Next() {
		v := &models.Video{ChannelID: channelID, HasTranscript: true, TranscriptStatus: models.StatusCompleted}
		t := &models.Transcript{}
		if err := rows.Scan(
			&v.ID, &v.YouTubeVideoID, &v.Title, &v.PublishedAt, &v.DurationSeconds, &v.ViewCount, &v.LikeCount,
			&t.ID, &t.VideoID, &t.Content, &t.Language, &t.WordCount, &t.Method, &t.CreatedAt,
		); err != nil {
			return nil, nil, err
		}
		videos = append(videos, v)
		transcripts = append(transcripts, t)
	}
	return videos, transcripts, rows.Err()
}
