package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"tubescribe-backend/internal/extract"
	"tubescribe-backend/internal/models"
	"tubescribe-backend/internal/repository"
)

const (
	extractionQueue = "queue:transcript-extraction"
	updatesChannel  = "extraction_updates"
	maxRetries      = 3
	jobLockTTL      = 10 * time.Minute
)

// Pool runs background transcript extractions queued over Redis. Each job
// is claimed with a SetNX lock so multiple server instances never process
// the same video at once.
type Pool struct {
	redis       *redis.Client
	extractor   *extract.Extractor
	videoRepo   *repository.VideoRepo
	workerCount int
	stopChan    chan struct{}
}

func NewPool(redisClient *redis.Client, extractor *extract.Extractor, videoRepo *repository.VideoRepo, workerCount int) *Pool {
	return &Pool{
		redis:       redisClient,
		extractor:   extractor,
		videoRepo:   videoRepo,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

// Enqueue pushes an extraction job onto the queue.
func (p *Pool) Enqueue(ctx context.Context, job *models.ExtractionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return p.redis.LPush(ctx, extractionQueue, string(data)).Err()
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d extraction worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, extractionQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.ExtractionJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Claim the job across instances
		lockKey := fmt.Sprintf("job_lock:%s", job.VideoID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", jobLockTTL).Result()
		if err != nil || !locked {
			continue // Another worker has this video
		}

		log.Printf("Worker %d: extracting video %s", id, job.VideoID)
		p.process(ctx, &job)

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) process(ctx context.Context, job *models.ExtractionJob) {
	video, err := p.videoRepo.GetByID(ctx, job.VideoID)
	if err != nil {
		log.Printf("Job %s: failed to load video: %v", job.ID, err)
		return
	}

	p.publish(ctx, models.ExtractionUpdate{
		VideoID: video.ID,
		Title:   video.Title,
		Status:  models.StatusExtracting,
	})

	transcript, err := p.extractor.ExtractOne(ctx, job.VideoID, extract.Options{
		UseFallback: job.UseFallback,
		Force:       job.Force,
		Wait:        true,
	})
	if err != nil {
		p.handleFailure(ctx, job, video, err)
		return
	}

	p.publish(ctx, models.ExtractionUpdate{
		VideoID: video.ID,
		Title:   video.Title,
		Status:  models.StatusCompleted,
		Method:  transcript.Method,
	})
	log.Printf("Job %s completed (video %s, method %s)", job.ID, video.YouTubeVideoID, transcript.Method)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.ExtractionJob, video *models.Video, err error) {
	errMsg := err.Error()

	// Only provider outages are worth retrying; missing captions or
	// transcription failures will fail the same way again.
	if extract.IsTransient(err) && job.RetryCount < maxRetries {
		job.RetryCount++
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)

		jobBytes, _ := json.Marshal(job)
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), extractionQueue, string(jobBytes))
		})
		return
	}

	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.publish(ctx, models.ExtractionUpdate{
		VideoID: video.ID,
		Title:   video.Title,
		Status:  models.StatusFailed,
		Error:   errMsg,
	})
}

// publish sends a WebSocket update via Redis pub/sub
func (p *Pool) publish(ctx context.Context, update models.ExtractionUpdate) {
	data, _ := json.Marshal(models.WSMessage{Type: "extraction_update", Payload: update})
	p.redis.Publish(ctx, updatesChannel, string(data))
}
