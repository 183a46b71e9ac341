package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"tubescribe-backend/internal/models"
)

// Extractor drives the per-video transcript state machine:
// pending -> extracting -> completed | failed. A failed record may re-enter
// extracting on a later call.
type Extractor struct {
	store           Store
	strategies      []Strategy
	locks           *lockTable
	providerTimeout time.Duration
}

// Options control a single ExtractOne call.
type Options struct {
	// UseFallback lets the speech-to-text chain run after captions fail.
	UseFallback bool
	// Force re-extracts a video that already has a completed transcript.
	Force bool
	// Wait blocks on the per-video lock instead of returning
	// ErrExtractionInProgress.
	Wait bool
}

func New(store Store, captions CaptionProvider, audio AudioFetcher, transcribers []SpeechTranscriber, providerTimeout time.Duration) *Extractor {
	if providerTimeout <= 0 {
		providerTimeout = 2 * time.Minute
	}

	return &Extractor{
		store: store,
		strategies: []Strategy{
			&captionStrategy{provider: captions},
			&speechStrategy{fetcher: audio, transcribers: transcribers},
		},
		locks:           newLockTable(),
		providerTimeout: providerTimeout,
	}
}

// ExtractOne extracts the transcript for one cataloged video, holding the
// per-video lock for the duration. Calling it on an already-completed record
// without Force is an idempotent no-op that makes no provider calls.
//
// A record left in "extracting" by a crashed run holds no in-process lock,
// so it is treated as stale here and simply re-attempted.
func (e *Extractor) ExtractOne(ctx context.Context, videoID uuid.UUID, opts Options) (*models.Transcript, error) {
	if opts.Wait {
		if err := e.locks.Acquire(ctx, videoID); err != nil {
			return nil, err
		}
	} else if !e.locks.TryAcquire(videoID) {
		return nil, ErrExtractionInProgress
	}
	defer e.locks.Release(videoID)

	video, err := e.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load video %s: %w", videoID, err)
	}

	if video.HasTranscript && !opts.Force {
		return e.store.GetTranscript(ctx, videoID)
	}

	if err := e.store.SetStatus(ctx, videoID, models.StatusExtracting, nil); err != nil {
		return nil, fmt.Errorf("failed to mark video %s extracting: %w", videoID, err)
	}

	var lastErr error
	for _, s := range e.strategies {
		if s.Fallback() && !opts.UseFallback {
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.providerTimeout)
		result, attemptErr := s.Attempt(attemptCtx, video)
		cancel()

		if attemptErr != nil {
			if errors.Is(attemptErr, ErrNoCaptions) {
				log.Printf("No captions for %s, continuing chain", video.YouTubeVideoID)
				continue
			}
			// Keep the most specific cause for the failure record.
			lastErr = attemptErr
			continue
		}

		transcript := &models.Transcript{
			VideoID:   videoID,
			Content:   result.Content,
			Language:  result.Language,
			WordCount: result.WordCount,
			Method:    result.Method,
		}
		if transcript.Language == "" {
			transcript.Language = "unknown"
		}

		if err := e.store.SaveTranscript(ctx, transcript); err != nil {
			msg := truncateError(fmt.Sprintf("failed to save transcript: %v", err))
			if serr := e.store.SetStatus(ctx, videoID, models.StatusFailed, &msg); serr != nil {
				return nil, fmt.Errorf("failed to save transcript for %s (%v) and status write failed: %w", videoID, err, serr)
			}
			return nil, fmt.Errorf("failed to save transcript for %s: %w", videoID, err)
		}

		log.Printf("Extracted transcript for %s via %s (%d words)", video.YouTubeVideoID, result.Method, result.WordCount)
		return transcript, nil
	}

	if lastErr == nil {
		lastErr = ErrNoTranscript
	}

	msg := truncateError(lastErr.Error())
	if err := e.store.SetStatus(ctx, videoID, models.StatusFailed, &msg); err != nil {
		return nil, fmt.Errorf("extraction failed (%v) and status write failed: %w", lastErr, err)
	}

	return nil, lastErr
}

func truncateError(msg string) string {
	if len(msg) > 200 {
		return msg[:200]
	}
	return msg
}
