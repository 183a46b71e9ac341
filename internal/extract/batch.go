package extract

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"tubescribe-backend/internal/models"
)

// BatchOptions control one RunBatch invocation.
type BatchOptions struct {
	UseFallback bool
	Force       bool
	Concurrency int
}

// RunBatch extracts transcripts for the given videos on a bounded worker
// pool and returns a live event stream. The channel receives one
// EventExtracting record per processed video in completion order, then a
// single EventComplete record, and is closed.
//
// Cancelling ctx stops scheduling new videos; extractions already in flight
// run to completion and the summary reflects only what was processed. A
// single video's failure never aborts the batch.
func (e *Extractor) RunBatch(ctx context.Context, videos []*models.Video, opts BatchOptions) <-chan BatchEvent {
	unique := dedupeVideos(videos)
	total := len(unique)

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > total && total > 0 {
		concurrency = total
	}

	// Buffered for the full run so a slow consumer never stalls workers.
	events := make(chan BatchEvent, total+1)

	go func() {
		defer close(events)

		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			summary BatchSummary
		)

		emit := func(ev BatchEvent) {
			mu.Lock()
			defer mu.Unlock()

			summary.TotalProcessed++
			switch ev.Outcome {
			case models.MethodCaption:
				summary.ExtractedFree++
			case models.MethodAICloud, models.MethodAILocal:
				summary.ExtractedAI++
			case OutcomeSkipped:
				summary.AlreadyCompleted++
			default:
				summary.Failed++
			}

			ev.Status = EventExtracting
			ev.Current = summary.TotalProcessed
			ev.Total = total
			ev.Extracted = summary.ExtractedFree
			ev.ExtractedAI = summary.ExtractedAI
			ev.AlreadyCompleted = summary.AlreadyCompleted
			ev.Failed = summary.Failed
			events <- ev
		}

		sem := make(chan struct{}, concurrency)

	scheduling:
		for _, video := range unique {
			// Cancellation is only honored between scheduling decisions.
			if ctx.Err() != nil {
				log.Printf("Batch cancelled after scheduling %d of %d videos", summary.TotalProcessed, total)
				break
			}

			if video.HasTranscript && !opts.Force {
				emit(BatchEvent{
					VideoID: video.ID.String(),
					Title:   truncateTitle(video.Title),
					Outcome: OutcomeSkipped,
				})
				continue
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				break scheduling
			}

			wg.Add(1)
			go func(video *models.Video) {
				defer wg.Done()
				defer func() { <-sem }()

				// In-flight work finishes even if the batch is cancelled.
				transcript, err := e.ExtractOne(context.WithoutCancel(ctx), video.ID, Options{
					UseFallback: opts.UseFallback,
					Force:       opts.Force,
					Wait:        true,
				})

				ev := BatchEvent{
					VideoID: video.ID.String(),
					Title:   truncateTitle(video.Title),
				}
				if err != nil {
					ev.Outcome = OutcomeFailed
					ev.Error = truncateError(err.Error())
				} else {
					ev.Outcome = transcript.Method
				}
				emit(ev)
			}(video)
		}

		wg.Wait()

		mu.Lock()
		final := BatchEvent{
			Status:           EventComplete,
			Current:          summary.TotalProcessed,
			Total:            total,
			Extracted:        summary.ExtractedFree,
			ExtractedAI:      summary.ExtractedAI,
			AlreadyCompleted: summary.AlreadyCompleted,
			Failed:           summary.Failed,
		}
		mu.Unlock()
		events <- final
	}()

	return events
}

// RunBatchSummary drains RunBatch and returns only the aggregate counters.
func (e *Extractor) RunBatchSummary(ctx context.Context, videos []*models.Video, opts BatchOptions) BatchSummary {
	var summary BatchSummary
	for ev := range e.RunBatch(ctx, videos, opts) {
		if ev.Status == EventComplete {
			summary = BatchSummary{
				ExtractedFree:    ev.Extracted,
				ExtractedAI:      ev.ExtractedAI,
				AlreadyCompleted: ev.AlreadyCompleted,
				Failed:           ev.Failed,
				TotalProcessed:   ev.Current,
			}
		}
	}
	return summary
}

func dedupeVideos(videos []*models.Video) []*models.Video {
	seen := make(map[uuid.UUID]struct{}, len(videos))
	unique := make([]*models.Video, 0, len(videos))
	for _, v := range videos {
		if v == nil {
			continue
		}
		if _, ok := seen[v.ID]; ok {
			continue
		}
		seen[v.ID] = struct{}{}
		unique = append(unique, v)
	}
	return unique
}

// IsTransient reports whether an extraction error is worth retrying without
// operator intervention.
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrExtractionInProgress)
}
