package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	yt "github.com/kkdai/youtube/v2"

	"tubescribe-backend/internal/extract"
)

const maxAudioBytes = 100 * 1024 * 1024 // safety cap per download

// AudioFetchOptions are opaque passthrough options for restricted videos:
// an outbound proxy and a Netscape-format cookies file for browser-session
// authentication.
type AudioFetchOptions struct {
	ProxyURL    string
	CookiesFile string
}

// AudioService downloads the best available audio-only stream for a video
// into a per-call temporary directory. It satisfies the engine's
// AudioFetcher interface.
type AudioService struct {
	client  *yt.Client
	baseDir string
}

func NewAudioService(baseDir string, opts AudioFetchOptions) (*AudioService, error) {
	transport := &http.Transport{}
	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   10 * time.Minute,
	}

	if opts.CookiesFile != "" {
		jar, err := loadCookieJar(opts.CookiesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load cookies file: %w", err)
		}
		httpClient.Jar = jar
	}

	return &AudioService{
		client:  &yt.Client{HTTPClient: httpClient},
		baseDir: baseDir,
	}, nil
}

// Fetch downloads the highest-bitrate audio stream for videoID. The file is
// created inside its own temporary directory, which the caller removes.
func (s *AudioService) Fetch(ctx context.Context, videoID string) (string, error) {
	video, err := s.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("%w: failed to fetch video metadata: %v", extract.ErrProviderUnavailable, err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return "", fmt.Errorf("no audio formats available for %s", videoID)
	}

	best := formats[0]
	for _, f := range formats {
		if f.Bitrate > best.Bitrate {
			best = f
		}
	}

	stream, _, err := s.client.GetStreamContext(ctx, video, &best)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open audio stream: %v", extract.ErrProviderUnavailable, err)
	}
	defer stream.Close()

	tempDir, err := os.MkdirTemp(s.baseDir, "audio-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	path := filepath.Join(tempDir, videoID+extensionForMime(best.MimeType))
	f, err := os.Create(path)
	if err != nil {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(stream, maxAudioBytes+1))
	closeErr := f.Close()
	if err != nil {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("failed to read audio stream: %w", err)
	}
	if closeErr != nil {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("failed to write audio file: %w", closeErr)
	}
	if written > maxAudioBytes {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("audio stream for %s exceeds %d MB limit", videoID, maxAudioBytes/(1024*1024))
	}

	log.Printf("Downloaded audio for %s (%d bytes)", videoID, written)
	return path, nil
}

func extensionForMime(mimeType string) string {
	base := strings.TrimSpace(strings.Split(mimeType, ";")[0])
	switch base {
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ".m4a"
	}
}

// loadCookieJar reads a Netscape-format cookies export and installs its
// youtube.com entries into a cookie jar.
func loadCookieJar(path string) (http.CookieJar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	target, _ := url.Parse("https://www.youtube.com/")
	var cookies []*http.Cookie

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// domain, includeSubdomains, path, secure, expiry, name, value
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		if !strings.Contains(fields[0], "youtube.com") {
			continue
		}

		cookies = append(cookies, &http.Cookie{
			Name:  fields[5],
			Value: fields[6],
			Path:  fields[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	jar.SetCookies(target, cookies)
	return jar, nil
}
