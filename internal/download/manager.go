package download

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tubescribe-backend/internal/extract"
	"tubescribe-backend/internal/models"
)

var (
	// ErrTokenNotFound covers unknown and already-consumed tokens.
	ErrTokenNotFound = errors.New("download not found")

	// ErrTokenExpired is returned when a known token is redeemed past its
	// deadline.
	ErrTokenExpired = errors.New("download expired")

	// ErrPreparationFailed is the terminal error for a session in which no
	// audio download succeeded.
	ErrPreparationFailed = errors.New("failed to download any audio files")
)

// Prepare event statuses.
const (
	PhaseDownloading = "downloading"
	PhaseArchiving   = "archiving"
	PhaseReady       = "ready"
	PhaseError       = "error"
)

// PrepareEvent is one self-contained record of staged-download progress.
type PrepareEvent struct {
	Status    string `json:"status"`
	Current   int    `json:"current,omitempty"`
	Total     int    `json:"total,omitempty"`
	Title     string `json:"title,omitempty"`
	ItemError string `json:"item_error,omitempty"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Token     string `json:"token,omitempty"`
	Error     string `json:"error,omitempty"`
}

type session struct {
	archivePath string
	filename    string
	tempDir     string
	createdAt   time.Time
	expiresAt   time.Time
}

// Manager prepares bulk audio archives and hands out single-use retrieval
// tokens bound to them. Sessions live in an in-process registry with an
// absolute TTL; a background sweeper reclaims whatever is never redeemed.
type Manager struct {
	fetcher extract.AudioFetcher
	baseDir string
	ttl     time.Duration

	mu         sync.Mutex
	sessions   map[string]*session
	tombstones map[string]time.Time // recently expired tokens, for error reporting

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewManager(fetcher extract.AudioFetcher, baseDir string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Manager{
		fetcher:    fetcher,
		baseDir:    baseDir,
		ttl:        ttl,
		sessions:   make(map[string]*session),
		tombstones: make(map[string]time.Time),
		stopChan:   make(chan struct{}),
	}
}

// StartSweeper launches the background purge loop.
func (m *Manager) StartSweeper() {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-m.stopChan:
				return
			case <-ticker.C:
				m.sweep(time.Now())
			}
		}
	}()
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// Prepare downloads audio for the given videos in order and bundles the
// successes into a zip archive, streaming progress events. The terminal
// event is either PhaseReady carrying a redemption token or PhaseError; a
// cancelled or fully-failed session never issues a token and leaves no files
// behind.
func (m *Manager) Prepare(ctx context.Context, archiveLabel string, videos []*models.Video) <-chan PrepareEvent {
	total := len(videos)
	events := make(chan PrepareEvent, total+2)

	go func() {
		defer close(events)

		tempDir, err := os.MkdirTemp(m.baseDir, "audio-prepare-*")
		if err != nil {
			events <- PrepareEvent{Status: PhaseError, Error: fmt.Sprintf("failed to create temp dir: %v", err)}
			return
		}

		type member struct {
			path string
			name string
		}
		var members []member
		completed := 0
		failed := 0

		for i, video := range videos {
			if ctx.Err() != nil {
				log.Printf("Audio preparation cancelled after %d of %d downloads", i, total)
				os.RemoveAll(tempDir)
				events <- PrepareEvent{Status: PhaseError, Completed: completed, Failed: failed, Error: "preparation cancelled"}
				return
			}

			ev := PrepareEvent{
				Status:  PhaseDownloading,
				Current: i + 1,
				Total:   total,
				Title:   truncate(video.Title, 50),
			}

			path, fetchErr := m.fetchInto(ctx, tempDir, video)
			if fetchErr != nil {
				log.Printf("Audio download failed for %s: %v", video.YouTubeVideoID, fetchErr)
				failed++
				ev.ItemError = truncate(fetchErr.Error(), 100)
			} else {
				completed++
				members = append(members, member{path: path, name: filepath.Base(path)})
			}

			ev.Completed = completed
			ev.Failed = failed
			events <- ev
		}

		if len(members) == 0 {
			os.RemoveAll(tempDir)
			events <- PrepareEvent{Status: PhaseError, Completed: completed, Failed: failed, Error: ErrPreparationFailed.Error()}
			return
		}

		// Archiving has no meaningful sub-progress; one event marks the phase.
		events <- PrepareEvent{Status: PhaseArchiving, Completed: completed, Failed: failed}

		archivePath := filepath.Join(tempDir, "audio_files.zip")
		zf, err := os.Create(archivePath)
		if err != nil {
			os.RemoveAll(tempDir)
			events <- PrepareEvent{Status: PhaseError, Completed: completed, Failed: failed, Error: fmt.Sprintf("failed to create archive: %v", err)}
			return
		}

		zw := zip.NewWriter(zf)
		for _, mem := range members {
			if err := addZipMember(zw, mem.path, mem.name); err != nil {
				zw.Close()
				zf.Close()
				os.RemoveAll(tempDir)
				events <- PrepareEvent{Status: PhaseError, Completed: completed, Failed: failed, Error: fmt.Sprintf("failed to archive %s: %v", mem.name, err)}
				return
			}
		}
		if err := zw.Close(); err != nil {
			zf.Close()
			os.RemoveAll(tempDir)
			events <- PrepareEvent{Status: PhaseError, Completed: completed, Failed: failed, Error: fmt.Sprintf("failed to finalize archive: %v", err)}
			return
		}
		zf.Close()

		// Members are inside the archive now; drop the loose files early.
		for _, mem := range members {
			os.Remove(mem.path)
		}

		token := uuid.New().String()
		now := time.Now()
		m.mu.Lock()
		m.sessions[token] = &session{
			archivePath: archivePath,
			filename:    SanitizeFilename(archiveLabel, 50) + "_audio.zip",
			tempDir:     tempDir,
			createdAt:   now,
			expiresAt:   now.Add(m.ttl),
		}
		m.mu.Unlock()

		events <- PrepareEvent{Status: PhaseReady, Completed: completed, Failed: failed, Token: token}
	}()

	return events
}

// Redeem exchanges a token for its prepared archive, exactly once. The
// returned reader removes the session's files when closed.
func (m *Manager) Redeem(token string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	s, ok := m.sessions[token]
	if !ok {
		if _, expired := m.tombstones[token]; expired {
			m.mu.Unlock()
			return nil, "", ErrTokenExpired
		}
		m.mu.Unlock()
		return nil, "", ErrTokenNotFound
	}

	if time.Now().After(s.expiresAt) {
		delete(m.sessions, token)
		m.tombstones[token] = s.expiresAt
		m.mu.Unlock()
		os.RemoveAll(s.tempDir)
		return nil, "", ErrTokenExpired
	}

	// Single use: the token is gone as soon as it is handed out.
	delete(m.sessions, token)
	m.mu.Unlock()

	f, err := os.Open(s.archivePath)
	if err != nil {
		os.RemoveAll(s.tempDir)
		return nil, "", ErrTokenNotFound
	}

	return &archiveReader{File: f, tempDir: s.tempDir}, s.filename, nil
}

// ActiveSessions reports how many unredeemed sessions are registered.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	var dirs []string
	for token, s := range m.sessions {
		if now.After(s.expiresAt) {
			delete(m.sessions, token)
			m.tombstones[token] = s.expiresAt
			dirs = append(dirs, s.tempDir)
		}
	}
	for token, expiredAt := range m.tombstones {
		if now.Sub(expiredAt) > m.ttl {
			delete(m.tombstones, token)
		}
	}
	m.mu.Unlock()

	for _, dir := range dirs {
		os.RemoveAll(dir)
	}
	if len(dirs) > 0 {
		log.Printf("Swept %d expired download session(s)", len(dirs))
	}
}

// fetchInto downloads a video's audio and moves it into dir under an
// archive-friendly YYYYMMDD_title name.
func (m *Manager) fetchInto(ctx context.Context, dir string, video *models.Video) (string, error) {
	srcPath, err := m.fetcher.Fetch(ctx, video.YouTubeVideoID)
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(filepath.Dir(srcPath))

	ext := filepath.Ext(srcPath)
	destPath := filepath.Join(dir, AudioFileName(video, ext))
	if _, err := os.Stat(destPath); err == nil {
		// Another video in this session produced the same date and title;
		// the YouTube id keeps the archive member unique.
		base := strings.TrimSuffix(AudioFileName(video, ext), ext)
		destPath = filepath.Join(dir, base+"_"+video.YouTubeVideoID+ext)
	}
	if err := os.Rename(srcPath, destPath); err != nil {
		// Rename fails across filesystems; fall back to a copy.
		if copyErr := copyFile(srcPath, destPath); copyErr != nil {
			return "", fmt.Errorf("failed to place audio file: %w", copyErr)
		}
	}
	return destPath, nil
}

type archiveReader struct {
	*os.File
	tempDir string
	once    sync.Once
}

func (r *archiveReader) Close() error {
	err := r.File.Close()
	r.once.Do(func() { os.RemoveAll(r.tempDir) })
	return err
}

func addZipMember(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// AudioFileName builds the archive-friendly YYYYMMDD_title name for a
// video's audio file.
func AudioFileName(video *models.Video, ext string) string {
	datePrefix := ""
	if video.PublishedAt != nil {
		datePrefix = video.PublishedAt.Format("20060102") + "_"
	}
	return datePrefix + SanitizeFilename(video.Title, 80) + ext
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFilename strips characters that are unsafe in download filenames
// and bounds the length.
func SanitizeFilename(name string, max int) string {
	clean := unsafeFilenameChars.ReplaceAllString(name, "")
	clean = truncate(clean, max)
	clean = trimSpace(clean)
	if clean == "" {
		clean = "untitled"
	}
	return clean
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '.') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '.') {
		s = s[:len(s)-1]
	}
	return s
}
