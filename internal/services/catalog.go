package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"tubescribe-backend/internal/models"
)

// CatalogService talks to the YouTube Data API v3 for channel metadata and
// the channel's full upload history.
type CatalogService struct {
	yt *youtube.Service
}

func NewCatalogService(apiKey string) (*CatalogService, error) {
	svc, err := youtube.NewService(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube Data API client: %w", err)
	}
	return &CatalogService{yt: svc}, nil
}

// ChannelInfo is the Data API view of a channel.
type ChannelInfo struct {
	ChannelID       string
	Title           string
	Description     string
	ThumbnailURL    string
	UploadsPlaylist string
}

// GetChannel resolves a channel id (or @handle) to its metadata and uploads
// playlist.
func (s *CatalogService) GetChannel(ctx context.Context, channelID string) (*ChannelInfo, error) {
	call := s.yt.Channels.List([]string{"snippet", "contentDetails"}).Context(ctx)
	if strings.HasPrefix(channelID, "@") {
		call = call.ForHandle(channelID)
	} else {
		call = call.Id(channelID)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("channel lookup failed: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("channel not found: %s", channelID)
	}

	ch := resp.Items[0]
	info := &ChannelInfo{
		ChannelID:   ch.Id,
		Title:       ch.Snippet.Title,
		Description: ch.Snippet.Description,
	}
	if ch.Snippet.Thumbnails != nil && ch.Snippet.Thumbnails.High != nil {
		info.ThumbnailURL = ch.Snippet.Thumbnails.High.Url
	}
	if ch.ContentDetails != nil && ch.ContentDetails.RelatedPlaylists != nil {
		info.UploadsPlaylist = ch.ContentDetails.RelatedPlaylists.Uploads
	}
	return info, nil
}

// ListAllVideos walks the channel's uploads playlist and hydrates each page
// with statistics and content details from videos.list.
func (s *CatalogService) ListAllVideos(ctx context.Context, uploadsPlaylist string) ([]models.VideoInfo, error) {
	if uploadsPlaylist == "" {
		return nil, fmt.Errorf("channel has no uploads playlist")
	}

	var out []models.VideoInfo
	pageToken := ""
	for {
		resp, err := s.yt.PlaylistItems.List([]string{"contentDetails"}).
			PlaylistId(uploadsPlaylist).
			MaxResults(50).
			PageToken(pageToken).
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("playlist page fetch failed: %w", err)
		}

		ids := make([]string, 0, len(resp.Items))
		for _, item := range resp.Items {
			ids = append(ids, item.ContentDetails.VideoId)
		}

		infos, err := s.hydrateVideos(ctx, ids)
		if err != nil {
			return nil, err
		}
		out = append(out, infos...)

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	log.Printf("Catalog listed %d videos from playlist %s", len(out), uploadsPlaylist)
	return out, nil
}

// hydrateVideos fetches full metadata for up to 50 video ids in one call.
func (s *CatalogService) hydrateVideos(ctx context.Context, ids []string) ([]models.VideoInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	resp, err := s.yt.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("videos.list failed: %w", err)
	}

	infos := make([]models.VideoInfo, 0, len(resp.Items))
	for _, v := range resp.Items {
		info := models.VideoInfo{
			VideoID: v.Id,
		}

		if v.Snippet != nil {
			info.Title = v.Snippet.Title
			info.Description = v.Snippet.Description
			info.Tags = v.Snippet.Tags
			info.CategoryID = v.Snippet.CategoryId
			info.DefaultLanguage = v.Snippet.DefaultLanguage
			info.DefaultAudioLanguage = v.Snippet.DefaultAudioLanguage
			if t, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
				info.PublishedAt = &t
			}
			if v.Snippet.Thumbnails != nil && v.Snippet.Thumbnails.High != nil {
				info.ThumbnailURL = v.Snippet.Thumbnails.High.Url
			}
		}

		if v.ContentDetails != nil {
			info.DurationSeconds = parseISO8601Duration(v.ContentDetails.Duration)
			info.Definition = v.ContentDetails.Definition
			info.Caption = v.ContentDetails.Caption == "true"
		}

		if v.Statistics != nil {
			vc := int64(v.Statistics.ViewCount)
			lc := int64(v.Statistics.LikeCount)
			cc := int64(v.Statistics.CommentCount)
			info.ViewCount = &vc
			info.LikeCount = &lc
			info.CommentCount = &cc
		}

		infos = append(infos, info)
	}
	return infos, nil
}

// parseISO8601Duration converts the Data API's PT#H#M#S durations to seconds.
func parseISO8601Duration(d string) int {
	d = strings.TrimPrefix(d, "PT")
	total := 0
	num := 0
	for _, r := range d {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
		case r == 'H':
			total += num * 3600
			num = 0
		case r == 'M':
			total += num * 60
			num = 0
		case r == 'S':
			total += num
			num = 0
		default:
			num = 0
		}
	}
	return total
}
