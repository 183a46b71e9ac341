package extract

// Batch progress statuses.
const (
	EventExtracting = "extracting"
	EventComplete   = "complete"
)

// Per-video outcomes carried on progress events.
const (
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// BatchEvent is one self-contained record of batch progress. Every processed
// video yields exactly one EventExtracting event, in completion order; the
// single EventComplete event is always last. Counter fields are monotonic
// snapshots taken when the event was produced. On the terminal event Current
// is the number of videos actually processed, which falls short of Total
// when the batch was cancelled.
type BatchEvent struct {
	Status  string `json:"status"`
	Current int    `json:"current,omitempty"`
	Total   int    `json:"total"`
	VideoID string `json:"video_id,omitempty"`
	Title   string `json:"title,omitempty"`
	// Outcome is the completed method (caption, ai-cloud, ai-local),
	// "skipped" for already-transcribed videos, or "failed".
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`

	Extracted        int `json:"extracted"`
	ExtractedAI      int `json:"extracted_ai"`
	AlreadyCompleted int `json:"already_completed"`
	Failed           int `json:"failed"`
}

// BatchSummary aggregates one batch run. The counters always satisfy
// ExtractedFree + ExtractedAI + AlreadyCompleted + Failed = TotalProcessed.
type BatchSummary struct {
	ExtractedFree    int `json:"extracted"`
	ExtractedAI      int `json:"extracted_ai"`
	AlreadyCompleted int `json:"already_completed"`
	Failed           int `json:"failed"`
	TotalProcessed   int `json:"total_processed"`
}

func truncateTitle(title string) string {
	if len(title) > 50 {
		return title[:50]
	}
	return title
}
