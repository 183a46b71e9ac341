package download

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"tubescribe-backend/internal/models"
)

// stubFetcher mimics the real audio fetcher's contract: each file lands in
// its own temp dir and the caller is expected to remove it.
type stubFetcher struct {
	failIDs map[string]bool
}

func (f *stubFetcher) Fetch(_ context.Context, videoID string) (string, error) {
	if f.failIDs[videoID] {
		return "", errors.New("no playable audio stream")
	}
	dir, err := os.MkdirTemp("", "stub-audio-*")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, videoID+".m4a")
	if err := os.WriteFile(path, []byte("audio-"+videoID), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func downloadableVideo(youtubeID, title string) *models.Video {
	published := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	return &models.Video{
		ID:             uuid.New(),
		YouTubeVideoID: youtubeID,
		Title:          title,
		PublishedAt:    &published,
	}
}

func drainEvents(t *testing.T, events <-chan PrepareEvent) []PrepareEvent {
	t.Helper()
	var collected []PrepareEvent
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return collected
			}
			collected = append(collected, ev)
		case <-timeout:
			t.Fatalf("preparation did not finish, got %d events so far", len(collected))
		}
	}
}

func TestPrepareAndRedeem(t *testing.T) {
	fetcher := &stubFetcher{failIDs: map[string]bool{"broken": true}}
	m := NewManager(fetcher, t.TempDir(), time.Minute)

	videos := []*models.Video{
		downloadableVideo("alpha", "First Episode"),
		downloadableVideo("broken", "Missing Audio"),
		downloadableVideo("beta", "Second Episode"),
	}

	events := drainEvents(t, m.Prepare(context.Background(), "My Channel", videos))
	if len(events) != 5 {
		t.Fatalf("got %d events, want 3 downloading + archiving + ready", len(events))
	}

	for i := 0; i < 3; i++ {
		if events[i].Status != PhaseDownloading {
			t.Errorf("event %d status = %q, want downloading", i, events[i].Status)
		}
		if events[i].Current != i+1 || events[i].Total != 3 {
			t.Errorf("event %d progress = %d/%d, want %d/3", i, events[i].Current, events[i].Total, i+1)
		}
	}
	if events[1].ItemError == "" {
		t.Error("failed download carried no item error")
	}
	if events[3].Status != PhaseArchiving {
		t.Errorf("event 3 status = %q, want archiving", events[3].Status)
	}

	final := events[4]
	if final.Status != PhaseReady {
		t.Fatalf("terminal status = %q, want ready", final.Status)
	}
	if final.Completed != 2 || final.Failed != 1 {
		t.Errorf("terminal counters = %d completed / %d failed, want 2/1", final.Completed, final.Failed)
	}
	if final.Token == "" {
		t.Fatal("ready event carried no token")
	}
	if m.ActiveSessions() != 1 {
		t.Errorf("active sessions = %d, want 1", m.ActiveSessions())
	}

	rc, filename, err := m.Redeem(final.Token)
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if filename != "My Channel_audio.zip" {
		t.Errorf("filename = %q, want My Channel_audio.zip", filename)
	}

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("failed to read archive: %v", err)
	}
	rc.Close()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("redeemed data is not a zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("archive holds %d members, want 2", len(zr.File))
	}
	wantNames := map[string]bool{
		"20240115_First Episode.m4a":  true,
		"20240115_Second Episode.m4a": true,
	}
	for _, f := range zr.File {
		if !wantNames[f.Name] {
			t.Errorf("unexpected archive member %q", f.Name)
		}
	}

	// Single use: the same token never works twice.
	if _, _, err := m.Redeem(final.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("second Redeem err = %v, want ErrTokenNotFound", err)
	}
	if m.ActiveSessions() != 0 {
		t.Errorf("active sessions after redeem = %d, want 0", m.ActiveSessions())
	}
}

func TestPrepareDeduplicatesMemberNames(t *testing.T) {
	m := NewManager(&stubFetcher{}, t.TempDir(), time.Minute)

	// Same title and publish date, distinct videos.
	videos := []*models.Video{
		downloadableVideo("first-id", "Weekly Update"),
		downloadableVideo("second-id", "Weekly Update"),
	}

	events := drainEvents(t, m.Prepare(context.Background(), "Channel", videos))
	final := events[len(events)-1]
	if final.Status != PhaseReady {
		t.Fatalf("terminal status = %q, want ready", final.Status)
	}

	rc, _, err := m.Redeem(final.Token)
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("failed to read archive: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("redeemed data is not a zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("archive holds %d members, want both colliding videos", len(zr.File))
	}

	names := map[string]bool{}
	for _, f := range zr.File {
		if names[f.Name] {
			t.Fatalf("duplicate archive member %q", f.Name)
		}
		names[f.Name] = true
	}
	if !names["20240115_Weekly Update.m4a"] {
		t.Errorf("first member missing, got %v", names)
	}
	if !names["20240115_Weekly Update_second-id.m4a"] {
		t.Errorf("colliding member not suffixed with the video id, got %v", names)
	}
}

func TestPrepareAllDownloadsFail(t *testing.T) {
	fetcher := &stubFetcher{failIDs: map[string]bool{"a": true, "b": true}}
	baseDir := t.TempDir()
	m := NewManager(fetcher, baseDir, time.Minute)

	videos := []*models.Video{downloadableVideo("a", "One"), downloadableVideo("b", "Two")}
	events := drainEvents(t, m.Prepare(context.Background(), "Channel", videos))

	final := events[len(events)-1]
	if final.Status != PhaseError {
		t.Fatalf("terminal status = %q, want error", final.Status)
	}
	if final.Token != "" {
		t.Error("fully-failed session must not issue a token")
	}
	if !strings.Contains(final.Error, ErrPreparationFailed.Error()) {
		t.Errorf("terminal error = %q, want %q", final.Error, ErrPreparationFailed)
	}
	if m.ActiveSessions() != 0 {
		t.Errorf("active sessions = %d, want 0", m.ActiveSessions())
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		t.Fatalf("failed to read base dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("base dir holds %d leftover entries after failure", len(entries))
	}
}

func TestPrepareCancelled(t *testing.T) {
	m := NewManager(&stubFetcher{}, t.TempDir(), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := drainEvents(t, m.Prepare(ctx, "Channel", []*models.Video{downloadableVideo("a", "One")}))
	final := events[len(events)-1]
	if final.Status != PhaseError {
		t.Fatalf("terminal status = %q, want error", final.Status)
	}
	if final.Token != "" {
		t.Error("cancelled session must not issue a token")
	}
}

func TestRedeemUnknownToken(t *testing.T) {
	m := NewManager(&stubFetcher{}, t.TempDir(), time.Minute)
	if _, _, err := m.Redeem(uuid.New().String()); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("err = %v, want ErrTokenNotFound", err)
	}
}

func TestRedeemExpiredToken(t *testing.T) {
	m := NewManager(&stubFetcher{}, t.TempDir(), time.Millisecond)

	events := drainEvents(t, m.Prepare(context.Background(), "Channel", []*models.Video{downloadableVideo("a", "One")}))
	final := events[len(events)-1]
	if final.Status != PhaseReady {
		t.Fatalf("terminal status = %q, want ready", final.Status)
	}

	time.Sleep(20 * time.Millisecond)

	if _, _, err := m.Redeem(final.Token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
	// The tombstone keeps reporting expiry rather than not-found.
	if _, _, err := m.Redeem(final.Token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("second redeem err = %v, want ErrTokenExpired", err)
	}
}

func TestSweepExpiresSessions(t *testing.T) {
	ttl := time.Minute
	m := NewManager(&stubFetcher{}, t.TempDir(), ttl)

	events := drainEvents(t, m.Prepare(context.Background(), "Channel", []*models.Video{downloadableVideo("a", "One")}))
	token := events[len(events)-1].Token
	if token == "" {
		t.Fatal("no token issued")
	}

	m.sweep(time.Now().Add(2 * ttl))
	if m.ActiveSessions() != 0 {
		t.Errorf("active sessions after sweep = %d, want 0", m.ActiveSessions())
	}
	if _, _, err := m.Redeem(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err after sweep = %v, want ErrTokenExpired", err)
	}

	// A later sweep drops the tombstone too, demoting the token to unknown.
	m.sweep(time.Now().Add(4 * ttl))
	if _, _, err := m.Redeem(token); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("err after tombstone sweep = %v, want ErrTokenNotFound", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"Plain Title", 80, "Plain Title"},
		{`What: "is" <this>?`, 80, "What is this"},
		{"a/b\\c|d*e", 80, "abcde"},
		{"  .dotted name.  ", 80, "dotted name"},
		{"", 80, "untitled"},
		{"////", 80, "untitled"},
		{strings.Repeat("x", 100), 10, "xxxxxxxxxx"},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in, tc.max); got != tc.want {
			t.Errorf("SanitizeFilename(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestAudioFileName(t *testing.T) {
	video := downloadableVideo("vid", "Episode: One")
	if got := AudioFileName(video, ".m4a"); got != "20240115_Episode One.m4a" {
		t.Errorf("AudioFileName = %q", got)
	}

	video.PublishedAt = nil
	if got := AudioFileName(video, ".webm"); got != "Episode One.webm" {
		t.Errorf("AudioFileName without date = %q", got)
	}
}
