package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tubescribe-backend/internal/models"
)

type ChannelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

func (r *ChannelRepo) Create(ctx context.Context, c *models.Channel) error {
	c.ID = uuid.New()

	if c.TagsJSON == nil {
		c.TagsJSON = json.RawMessage("[]")
	}

	query := `INSERT INTO channels (id, youtube_channel_id, youtube_channel_name, description, thumbnail_url, tags_json)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		c.ID, c.YouTubeChannelID, c.YouTubeChannelName, c.Description, c.ThumbnailURL, c.TagsJSON,
	).Scan(&c.CreatedAt)
}

func (r *ChannelRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	c := &models.Channel{}
	query := `SELECT id, youtube_channel_id, youtube_channel_name, description, thumbnail_url, tags_json, last_checked_at, created_at
		FROM channels WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.YouTubeChannelID, &c.YouTubeChannelName, &c.Description,
		&c.ThumbnailURL, &c.TagsJSON, &c.LastCheckedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns all channels, optionally restricted to those carrying the tag.
func (r *ChannelRepo) List(ctx context.Context, tag string) ([]*models.Channel, error) {
	query := `SELECT id, youtube_channel_id, youtube_channel_name, description, thumbnail_url, tags_json, last_checked_at, created_at
		FROM channels ORDER BY youtube_channel_name`
	args := []interface{}{}

	if tag != "" {
		query = `SELECT id, youtube_channel_id, youtube_channel_name, description, thumbnail_url, tags_json, last_checked_at, created_at
			FROM channels WHERE tags_json ? $1 ORDER BY youtube_channel_name`
		args = append(args, tag)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []*models.Channel
	for rows.Next() {
		c := &models.Channel{}
		if err := rows.Scan(
			&c.ID, &c.YouTubeChannelID, &c.YouTubeChannelName, &c.Description,
			&c.ThumbnailURL, &c.TagsJSON, &c.LastCheckedAt, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

func (r *ChannelRepo) TouchLastChecked(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE channels SET last_checked_at = $1 WHERE id = $2", time.Now().UTC(), id)
	return err
}

// Delete removes the channel; videos and transcripts cascade.
func (r *ChannelRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM channels WHERE id = $1", id)
	return err
}
