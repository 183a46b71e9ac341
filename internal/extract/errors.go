package extract

import "errors"

var (
	// ErrNoCaptions is the expected outcome when a video has no caption
	// track; it triggers the fallback chain rather than a terminal failure.
	ErrNoCaptions = errors.New("no captions available")

	// ErrNoTranscript is returned when every applicable strategy was
	// exhausted without producing text.
	ErrNoTranscript = errors.New("no transcript available")

	// ErrExtractionInProgress is returned when another extraction already
	// holds the per-video lock. Callers should treat it as transient.
	ErrExtractionInProgress = errors.New("extraction already in progress for this video")

	// ErrProviderUnavailable wraps external caption/catalog call failures.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrTranscriptionFailed wraps speech-to-text backend failures.
	ErrTranscriptionFailed = errors.New("transcription failed")
)
