package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"tubescribe-backend/internal/models"
)

// fakeStore is an in-memory Store recording every status transition.
type fakeStore struct {
	mu          sync.Mutex
	videos      map[uuid.UUID]*models.Video
	transcripts map[uuid.UUID]*models.Transcript
	transitions map[uuid.UUID][]string

	saveErr error
	// failedStatusErr makes only the "failed" status write error, so the
	// extracting transition still goes through.
	failedStatusErr error
}

func newFakeStore(videos ...*models.Video) *fakeStore {
	s := &fakeStore{
		videos:      make(map[uuid.UUID]*models.Video),
		transcripts: make(map[uuid.UUID]*models.Transcript),
		transitions: make(map[uuid.UUID][]string),
	}
	for _, v := range videos {
		s.videos[v.ID] = v
	}
	return s
}

func (s *fakeStore) GetVideo(_ context.Context, id uuid.UUID) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, errors.New("video not found")
	}
	copied := *v
	return &copied, nil
}

func (s *fakeStore) GetTranscript(_ context.Context, videoID uuid.UUID) (*models.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transcripts[videoID]
	if !ok {
		return nil, errors.New("transcript not found")
	}
	return t, nil
}

func (s *fakeStore) SetStatus(_ context.Context, videoID uuid.UUID, status string, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failedStatusErr != nil && status == models.StatusFailed {
		return s.failedStatusErr
	}
	v, ok := s.videos[videoID]
	if !ok {
		return errors.New("video not found")
	}
	v.TranscriptStatus = status
	v.TranscriptError = errMsg
	s.transitions[videoID] = append(s.transitions[videoID], status)
	return nil
}

func (s *fakeStore) SaveTranscript(_ context.Context, t *models.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.transcripts[t.VideoID] = t
	v := s.videos[t.VideoID]
	v.HasTranscript = true
	v.TranscriptStatus = models.StatusCompleted
	v.TranscriptError = nil
	s.transitions[t.VideoID] = append(s.transitions[t.VideoID], models.StatusCompleted)
	return nil
}

func (s *fakeStore) statusOf(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videos[id].TranscriptStatus
}

func (s *fakeStore) errorOf(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.videos[id].TranscriptError == nil {
		return ""
	}
	return *s.videos[id].TranscriptError
}

// fakeCaptions counts calls and answers from a function.
type fakeCaptions struct {
	mu    sync.Mutex
	calls int
	fetch func(videoID string) (*Caption, error)
}

func (f *fakeCaptions) Fetch(_ context.Context, videoID string) (*Caption, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fetch(videoID)
}

func (f *fakeCaptions) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAudio writes a dummy audio file into a real temp dir, matching the
// fetcher contract that the caller removes the directory.
type fakeAudio struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeAudio) Fetch(_ context.Context, videoID string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}

	dir, err := os.MkdirTemp("", "fake-audio-*")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, videoID+".m4a")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeTranscriber struct {
	method string
	text   string
	err    error
}

func (f *fakeTranscriber) Method() string  { return f.method }
func (f *fakeTranscriber) Available() bool { return true }

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return f.text, "", nil
}

func testVideo() *models.Video {
	return &models.Video{
		ID:               uuid.New(),
		ChannelID:        uuid.New(),
		YouTubeVideoID:   "dQw4w9WgXcQ",
		Title:            "Test Video",
		TranscriptStatus: models.StatusPending,
	}
}

func captionResult(text string) *Caption {
	return &Caption{
		Content:   "[00:01] " + text,
		PlainText: text,
		Language:  "en",
	}
}

func TestExtractOneCaptionSuccess(t *testing.T) {
	video := testVideo()
	store := newFakeStore(video)
	captions := &fakeCaptions{fetch: func(string) (*Caption, error) {
		return captionResult("hello transcript world"), nil
	}}

	e := New(store, captions, &fakeAudio{}, nil, time.Minute)

	transcript, err := e.ExtractOne(context.Background(), video.ID, Options{})
	if err != nil {
		t.Fatalf("ExtractOne failed: %v", err)
	}
	if transcript.Method != models.MethodCaption {
		t.Errorf("method = %q, want %q", transcript.Method, models.MethodCaption)
	}
	if transcript.WordCount != 3 {
		t.Errorf("word count = %d, want 3", transcript.WordCount)
	}
	if transcript.Language != "en" {
		t.Errorf("language = %q, want en", transcript.Language)
	}
	if got := store.statusOf(video.ID); got != models.StatusCompleted {
		t.Errorf("status = %q, want completed", got)
	}
	if got := store.transitions[video.ID]; len(got) != 2 || got[0] != models.StatusExtracting {
		t.Errorf("transitions = %v, want [extracting completed]", got)
	}
}

func TestExtractOneIdempotent(t *testing.T) {
	video := testVideo()
	video.HasTranscript = true
	video.TranscriptStatus = models.StatusCompleted

	store := newFakeStore(video)
	existing := &models.Transcript{VideoID: video.ID, Content: "done", Method: models.MethodCaption}
	store.transcripts[video.ID] = existing

	captions := &fakeCaptions{fetch: func(string) (*Caption, error) {
		t.Error("caption provider called for a completed video")
		return nil, ErrNoCaptions
	}}
	audio := &fakeAudio{}

	e := New(store, captions, audio, nil, time.Minute)

	transcript, err := e.ExtractOne(context.Background(), video.ID, Options{UseFallback: true})
	if err != nil {
		t.Fatalf("ExtractOne failed: %v", err)
	}
	if transcript != existing {
		t.Error("expected the stored transcript to be returned")
	}
	if captions.callCount() != 0 || audio.calls != 0 {
		t.Error("expected no provider calls for a completed video")
	}
	if len(store.transitions[video.ID]) != 0 {
		t.Errorf("expected no status writes, got %v", store.transitions[video.ID])
	}
}

func TestExtractOneForceReExtracts(t *testing.T) {
	video := testVideo()
	video.HasTranscript = true
	video.TranscriptStatus = models.StatusCompleted

	store := newFakeStore(video)
	store.transcripts[video.ID] = &models.Transcript{VideoID: video.ID, Content: "old"}

	captions := &fakeCaptions{fetch: func(string) (*Caption, error) {
		return captionResult("fresh content here"), nil
	}}

	e := New(store, captions, &fakeAudio{}, nil, time.Minute)

	transcript, err := e.ExtractOne(context.Background(), video.ID, Options{Force: true})
	if err != nil {
		t.Fatalf("ExtractOne failed: %v", err)
	}
	if captions.callCount() != 1 {
		t.Errorf("caption calls = %d, want 1", captions.callCount())
	}
	if !strings.Contains(transcript.Content, "fresh content here") {
		t.Errorf("transcript content = %q, want the re-extracted text", transcript.Content)
	}
}

func TestExtractOneNoCaptionsWithoutFallback(t *testing.T) {
	video := testVideo()
	store := newFakeStore(video)
	captions := &fakeCaptions{fetch: func(string) (*Caption, error) {
		return nil, fmt.Errorf("%w for this video", ErrNoCaptions)
	}}
	audio := &fakeAudio{}

	e := New(store, captions, audio, []SpeechTranscriber{&fakeTranscriber{method: models.MethodAICloud, text: "x"}}, time.Minute)

	_, err := e.ExtractOne(context.Background(), video.ID, Options{UseFallback: false})
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("err = %v, want ErrNoTranscript", err)
	}
	if audio.calls != 0 {
		t.Error("audio fetcher called although fallback was disabled")
	}
	if got := store.statusOf(video.ID); got != models.StatusFailed {
		t.Errorf("status = %q, want failed", got)
	}
}

func TestExtractOneFallbackChain(t *testing.T) {
	video := testVideo()
	store := newFakeStore(video)
	captions := &fakeCaptions{fetch: func(string) (*Caption, error) {
		return nil, fmt.Errorf("%w for this video", ErrNoCaptions)
	}}
	flaky := &fakeTranscriber{method: models.MethodAICloud, err: errors.New("quota exhausted")}
	local := &fakeTranscriber{method: models.MethodAILocal, text: "spoken words recovered locally"}

	e := New(store, captions, &fakeAudio{}, []SpeechTranscriber{flaky, local}, time.Minute)

	transcript, err := e.ExtractOne(context.Background(), video.ID, Options{UseFallback: true})
	if err != nil {
		t.Fatalf("ExtractOne failed: %v", err)
	}
	if transcript.Method != models.MethodAILocal {
		t.Errorf("method = %q, want %q", transcript.Method, models.MethodAILocal)
	}
	if transcript.Language != "unknown" {
		t.Errorf("language = %q, want unknown default", transcript.Language)
	}
	if got := store.statusOf(video.ID); got != models.StatusCompleted {
		t.Errorf("status = %q, want completed", got)
	}
}

func TestExtractOneFailureRecordsSpecificError(t *testing.T) {
	video := testVideo()
	store := newFakeStore(video)
	captions := &fakeCaptions{fetch: func(string) (*Caption, error) {
		return nil, fmt.Errorf("%w for this video", ErrNoCaptions)
	}}
	transcriber := &fakeTranscriber{method: models.MethodAICloud, err: errors.New("upstream rejected the audio: " + strings.Repeat("x", 300))}

	e := New(store, captions, &fakeAudio{}, []SpeechTranscriber{transcriber}, time.Minute)

	_, err := e.ExtractOne(context.Background(), video.ID, Options{UseFallback: true})
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("err = %v, want ErrTranscriptionFailed", err)
	}

	msg := store.errorOf(video.ID)
	if msg == "" {
		t.Fatal("expected a failure message on the video record")
	}
	if len(msg) > 200 {
		t.Errorf("failure message length = %d, want <= 200", len(msg))
	}
	if !strings.Contains(msg, "upstream rejected the audio") {
		t.Errorf("failure message = %q, want the transcriber's cause", msg)
	}
}

func TestExtractOneSaveFailureRecordsFailedStatus(t *testing.T) {
	video := testVideo()
	store := newFakeStore(video)
	store.saveErr = errors.New("unique constraint violated")
	captions := &fakeCaptions{fetch: func(string) (*Caption, error) {
		return captionResult("text that cannot be saved"), nil
	}}

	e := New(store, captions, &fakeAudio{}, nil, time.Minute)

	_, err := e.ExtractOne(context.Background(), video.ID, Options{})
	if err == nil {
		t.Fatal("expected an error when the transcript save fails")
	}
	if !strings.Contains(err.Error(), "unique constraint violated") {
		t.Errorf("err = %v, want the save failure cause", err)
	}
	if got := store.statusOf(video.ID); got != models.StatusFailed {
		t.Errorf("status = %q, want failed", got)
	}
	if msg := store.errorOf(video.ID); !strings.Contains(msg, "failed to save transcript") {
		t.Errorf("failure message = %q, want the save failure recorded", msg)
	}
}

func TestExtractOneSaveAndStatusFailure(t *testing.T) {
	video := testVideo()
	store := newFakeStore(video)
	store.saveErr = errors.New("disk full")
	store.failedStatusErr = errors.New("connection reset")
	captions := &fakeCaptions{fetch: func(string) (*Caption, error) {
		return captionResult("text"), nil
	}}

	e := New(store, captions, &fakeAudio{}, nil, time.Minute)

	_, err := e.ExtractOne(context.Background(), video.ID, Options{})
	if err == nil {
		t.Fatal("expected an error when save and status write both fail")
	}
	// Both causes surface so neither failure is lost.
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err = %v, want the save failure cause", err)
	}
	if !errors.Is(err, store.failedStatusErr) {
		t.Errorf("err = %v, want the status write failure wrapped", err)
	}
}

func TestExtractOneBusy(t *testing.T) {
	video := testVideo()
	store := newFakeStore(video)
	captions := &fakeCaptions{fetch: func(string) (*Caption, error) {
		return captionResult("text"), nil
	}}

	e := New(store, captions, &fakeAudio{}, nil, time.Minute)

	if !e.locks.TryAcquire(video.ID) {
		t.Fatal("setup: could not take the video lock")
	}
	defer e.locks.Release(video.ID)

	_, err := e.ExtractOne(context.Background(), video.ID, Options{})
	if !errors.Is(err, ErrExtractionInProgress) {
		t.Fatalf("err = %v, want ErrExtractionInProgress", err)
	}
	if len(store.transitions[video.ID]) != 0 {
		t.Errorf("expected no status writes while busy, got %v", store.transitions[video.ID])
	}
}

func TestExtractOneWaitBlocksUntilReleased(t *testing.T) {
	video := testVideo()
	store := newFakeStore(video)
	captions := &fakeCaptions{fetch: func(string) (*Caption, error) {
		return captionResult("waited for the lock"), nil
	}}

	e := New(store, captions, &fakeAudio{}, nil, time.Minute)
	e.locks.TryAcquire(video.ID)

	done := make(chan error, 1)
	go func() {
		_, err := e.ExtractOne(context.Background(), video.ID, Options{Wait: true})
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("ExtractOne returned while the lock was held")
	case <-time.After(20 * time.Millisecond):
	}

	e.locks.Release(video.ID)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ExtractOne failed after lock release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ExtractOne did not proceed after lock release")
	}
}
