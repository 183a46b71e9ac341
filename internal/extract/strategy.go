package extract

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"tubescribe-backend/internal/models"
)

// Caption is a fetched caption track: timestamped line content plus the
// marker-free text.
type Caption struct {
	Content   string
	PlainText string
	Language  string
}

// CaptionProvider fetches existing captions for a YouTube video id. It
// returns ErrNoCaptions when the video simply has none.
type CaptionProvider interface {
	Fetch(ctx context.Context, youtubeVideoID string) (*Caption, error)
}

// AudioFetcher downloads the best audio stream for a YouTube video id. The
// returned file lives in its own temporary directory; callers remove that
// directory when done.
type AudioFetcher interface {
	Fetch(ctx context.Context, youtubeVideoID string) (string, error)
}

// SpeechTranscriber turns a local audio file into text.
type SpeechTranscriber interface {
	Method() string
	Available() bool
	Transcribe(ctx context.Context, audioPath string) (text string, language string, err error)
}

// Store is the persistence gateway the engine writes through. Terminal
// transitions perform exactly one write: SaveTranscript on success,
// SetStatus("failed", msg) on failure.
type Store interface {
	GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error)
	GetTranscript(ctx context.Context, videoID uuid.UUID) (*models.Transcript, error)
	SetStatus(ctx context.Context, videoID uuid.UUID, status string, errMsg *string) error
	SaveTranscript(ctx context.Context, t *models.Transcript) error
}

// Result is one strategy's successful output.
type Result struct {
	Content   string
	Language  string
	WordCount int
	Method    string
}

// Strategy is one step of the ordered fallback chain.
type Strategy interface {
	Name() string
	// Fallback reports whether this strategy only runs when the caller
	// enabled the speech-to-text fallback.
	Fallback() bool
	Attempt(ctx context.Context, video *models.Video) (*Result, error)
}

type captionStrategy struct {
	provider CaptionProvider
}

func (s *captionStrategy) Name() string   { return "caption" }
func (s *captionStrategy) Fallback() bool { return false }

func (s *captionStrategy) Attempt(ctx context.Context, video *models.Video) (*Result, error) {
	caption, err := s.provider.Fetch(ctx, video.YouTubeVideoID)
	if err != nil {
		return nil, err
	}

	return &Result{
		Content:   caption.Content,
		Language:  caption.Language,
		WordCount: len(strings.Fields(caption.PlainText)),
		Method:    models.MethodCaption,
	}, nil
}

type speechStrategy struct {
	fetcher      AudioFetcher
	transcribers []SpeechTranscriber
}

func (s *speechStrategy) Name() string   { return "speech" }
func (s *speechStrategy) Fallback() bool { return true }

func (s *speechStrategy) Attempt(ctx context.Context, video *models.Video) (*Result, error) {
	var active []SpeechTranscriber
	for _, t := range s.transcribers {
		if t.Available() {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: no transcription backend configured", ErrTranscriptionFailed)
	}

	audioPath, err := s.fetcher.Fetch(ctx, video.YouTubeVideoID)
	if err != nil {
		return nil, fmt.Errorf("audio download failed: %w", err)
	}
	// The audio file is an intermediate artifact; remove it whatever happens.
	defer os.RemoveAll(filepath.Dir(audioPath))

	var lastErr error
	for _, t := range active {
		text, language, terr := t.Transcribe(ctx, audioPath)
		if terr != nil {
			log.Printf("Transcriber %s failed for %s: %v", t.Method(), video.YouTubeVideoID, terr)
			lastErr = fmt.Errorf("%w (%s): %v", ErrTranscriptionFailed, t.Method(), terr)
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			lastErr = fmt.Errorf("%w (%s): empty transcription", ErrTranscriptionFailed, t.Method())
			continue
		}

		return &Result{
			Content:   text,
			Language:  language,
			WordCount: len(strings.Fields(text)),
			Method:    t.Method(),
		}, nil
	}

	return nil, lastErr
}
