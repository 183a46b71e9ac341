package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tubescribe-backend/internal/models"
)

type VideoRepo struct {
	pool *pgxpool.Pool
}

func NewVideoRepo(pool *pgxpool.Pool) *VideoRepo {
	return &VideoRepo{pool: pool}
}

const videoColumns = `id, channel_id, youtube_video_id, title, description, published_at, duration_seconds,
	thumbnail_url, view_count, like_count, comment_count, tags_json, category_id, definition, caption,
	default_language, default_audio_language, has_transcript, transcript_status, transcript_error, created_at`

func scanVideo(row interface{ Scan(...interface{}) error }) (*models.Video, error) {
	v := &models.Video{}
	err := row.Scan(
		&v.ID, &v.ChannelID, &v.YouTubeVideoID, &v.Title, &v.Description, &v.PublishedAt,
		&v.DurationSeconds, &v.ThumbnailURL, &v.ViewCount, &v.LikeCount, &v.CommentCount,
		&v.TagsJSON, &v.CategoryID, &v.Definition, &v.Caption, &v.DefaultLanguage,
		&v.DefaultAudioLanguage, &v.HasTranscript, &v.TranscriptStatus, &v.TranscriptError, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// CreateFromInfo inserts a cataloged video in pending state. Returns false
// without error when the youtube_video_id is already stored.
func (r *VideoRepo) CreateFromInfo(ctx context.Context, channelID uuid.UUID, info *models.VideoInfo) (bool, error) {
	tagsBytes, _ := json.Marshal(info.Tags)
	if info.Tags == nil {
		tagsBytes = []byte("[]")
	}

	query := `INSERT INTO videos (id, channel_id, youtube_video_id, title, description, published_at, duration_seconds,
			thumbnail_url, view_count, like_count, comment_count, tags_json, category_id, definition, caption,
			default_language, default_audio_language, transcript_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 'pending')
		ON CONFLICT (youtube_video_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		uuid.New(), channelID, info.VideoID, info.Title, nullIfEmpty(info.Description), info.PublishedAt,
		zeroToNil(info.DurationSeconds), nullIfEmpty(info.ThumbnailURL), info.ViewCount, info.LikeCount,
		info.CommentCount, tagsBytes, nullIfEmpty(info.CategoryID), nullIfEmpty(info.Definition),
		info.Caption, nullIfEmpty(info.DefaultLanguage), nullIfEmpty(info.DefaultAudioLanguage),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *VideoRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	query := fmt.Sprintf("SELECT %s FROM videos WHERE id = $1", videoColumns)
	return scanVideo(r.pool.QueryRow(ctx, query, id))
}

func (r *VideoRepo) GetByIDs(ctx context.Context, channelID uuid.UUID, ids []uuid.UUID) ([]*models.Video, error) {
	query := fmt.Sprintf(`SELECT %s FROM videos WHERE channel_id = $1 AND id = ANY($2)
		ORDER BY published_at DESC NULLS LAST`, videoColumns)
	return r.queryVideos(ctx, query, channelID, ids)
}

// ListByChannel returns a filtered, sorted page of a channel's videos.
func (r *VideoRepo) ListByChannel(ctx context.Context, channelID uuid.UUID, f models.VideoListFilter) ([]*models.Video, error) {
	conds := []string{"channel_id = $1"}
	args := []interface{}{channelID}

	switch f.TranscriptStatus {
	case models.StatusCompleted:
		conds = append(conds, "has_transcript = TRUE")
	case models.StatusPending:
		conds = append(conds, "has_transcript = FALSE", "transcript_status = 'pending'")
	case models.StatusFailed, models.StatusExtracting:
		args = append(args, f.TranscriptStatus)
		conds = append(conds, fmt.Sprintf("transcript_status = $%d", len(args)))
	}

	if f.Definition != "" {
		args = append(args, f.Definition)
		conds = append(conds, fmt.Sprintf("definition = $%d", len(args)))
	}

	if f.HasCaption != nil {
		args = append(args, *f.HasCaption)
		conds = append(conds, fmt.Sprintf("caption = $%d", len(args)))
	}

	if f.Search != "" {
		// Escape LIKE wildcards in user input
		safe := strings.NewReplacer("%", `\%`, "_", `\_`).Replace(f.Search)
		args = append(args, "%"+safe+"%")
		conds = append(conds, fmt.Sprintf(`title ILIKE $%d ESCAPE '\'`, len(args)))
	}

	sortColumn := map[string]string{
		"published_at":     "published_at",
		"view_count":       "view_count",
		"like_count":       "like_count",
		"comment_count":    "comment_count",
		"duration_seconds": "duration_seconds",
		"title":            "title",
	}[f.SortBy]
	if sortColumn == "" {
		sortColumn = "published_at"
	}
	direction := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		direction = "ASC"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}

	query := fmt.Sprintf(`SELECT %s FROM videos WHERE %s ORDER BY %s %s NULLS LAST OFFSET %d LIMIT %d`,
		videoColumns, strings.Join(conds, " AND "), sortColumn, direction, f.Offset, limit)

	return r.queryVideos(ctx, query, args...)
}

// extractableConditions builds the WHERE clause for a channel-wide batch.
// Forced runs include already-transcribed videos so they can be re-extracted.
func extractableConditions(captionOnly, includeCompleted bool) string {
	conds := []string{"channel_id = $1"}
	if !includeCompleted {
		conds = append(conds, "has_transcript = FALSE", "transcript_status != 'extracting'")
	}
	if captionOnly {
		conds = append(conds, "caption = TRUE")
	}
	return strings.Join(conds, " AND ")
}

// ListExtractable returns a channel's videos eligible for batch extraction:
// those without transcripts that are not currently marked extracting, or the
// whole channel when includeCompleted is set. When captionOnly is set, only
// videos the catalog flagged as captioned are returned.
func (r *VideoRepo) ListExtractable(ctx context.Context, channelID uuid.UUID, captionOnly, includeCompleted bool) ([]*models.Video, error) {
	query := fmt.Sprintf(`SELECT %s FROM videos WHERE %s ORDER BY published_at DESC NULLS LAST`,
		videoColumns, extractableConditions(captionOnly, includeCompleted))

	return r.queryVideos(ctx, query, channelID)
}

// ListPendingAudio returns a channel's videos without transcripts, newest first.
func (r *VideoRepo) ListPendingAudio(ctx context.Context, channelID uuid.UUID) ([]*models.Video, error) {
	query := fmt.Sprintf(`SELECT %s FROM videos WHERE channel_id = $1 AND has_transcript = FALSE
		ORDER BY published_at DESC NULLS LAST`, videoColumns)
	return r.queryVideos(ctx, query, channelID)
}

func (r *VideoRepo) CountByChannel(ctx context.Context, channelID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM videos WHERE channel_id = $1", channelID).Scan(&n)
	return n, err
}

func (r *VideoRepo) UpdateTranscriptStatus(ctx context.Context, id uuid.UUID, status string, errMsg *string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE videos SET transcript_status = $1, transcript_error = $2 WHERE id = $3",
		status, errMsg, id,
	)
	return err
}

func (r *VideoRepo) MarkTranscribed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE videos SET has_transcript = TRUE, transcript_status = 'completed', transcript_error = NULL WHERE id = $1",
		id,
	)
	return err
}

func (r *VideoRepo) queryVideos(ctx context.Context, query string, args ...interface{}) ([]*models.Video, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func zeroToNil(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
