package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"

	"tubescribe-backend/internal/extract"
)

// CaptionService fetches existing YouTube captions. It satisfies the
// engine's CaptionProvider interface: the transcript API is tried first,
// with a raw timedtext page scrape as a legacy fallback.
type CaptionService struct {
	httpClient    *http.Client
	transcriptAPI *ytapi.YouTubeTranscriptApi
}

type timedTextXML struct {
	XMLName xml.Name  `xml:"transcript"`
	Texts   []textXML `xml:"text"`
}

type textXML struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

// Language preference order mirrors the catalog's user base: English
// variants first, then the other languages the tracker is used with.
var langPriority = []string{"en", "en-US", "en-GB", "it", "it-IT", "zh", "zh-Hans", "zh-Hant", "ja", "ko"}

func NewCaptionService() *CaptionService {
	return &CaptionService{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		transcriptAPI: ytapi.NewYouTubeTranscriptApi(),
	}
}

// Fetch returns the caption track for a video, as timestamped lines plus
// marker-free text. It returns extract.ErrNoCaptions when the video has no
// usable track anywhere.
func (s *CaptionService) Fetch(ctx context.Context, videoID string) (*extract.Caption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	transcript, err := s.transcriptAPI.GetTranscript(videoID, langPriority)
	if err != nil {
		// Retry without a language restriction before giving up.
		transcript, err = s.transcriptAPI.GetTranscript(videoID, nil)
	}

	if err == nil && len(transcript.Entries) > 0 {
		var lines []string
		var plainParts []string
		for _, entry := range transcript.Entries {
			text := strings.TrimSpace(entry.Text)
			if text == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("[%s] %s", formatTimestamp(entry.Start), text))
			plainParts = append(plainParts, text)
		}

		if len(lines) > 0 {
			return &extract.Caption{
				Content:   strings.Join(lines, "\n"),
				PlainText: strings.Join(plainParts, " "),
				Language:  "unknown",
			}, nil
		}
	}

	caption, legacyErr := s.fetchViaTimedText(ctx, videoID)
	if legacyErr == nil {
		return caption, nil
	}

	if isNoCaptions(legacyErr) {
		return nil, fmt.Errorf("%w for video %s", extract.ErrNoCaptions, videoID)
	}

	return nil, fmt.Errorf("%w: transcript API (%v), timedtext fallback (%v)", extract.ErrProviderUnavailable, err, legacyErr)
}

var errNoCaptionTrack = fmt.Errorf("no captions available for this video")

func isNoCaptions(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no captions available")
}

func (s *CaptionService) fetchViaTimedText(ctx context.Context, videoID string) (*extract.Caption, error) {
	pageURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	req, _ := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch YouTube page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read YouTube page: %w", err)
	}

	pageHTML := string(body)
	log.Printf("TimedText fallback: fetched YouTube page for %s (%d bytes)", videoID, len(pageHTML))

	captionURL, lang, err := extractCaptionURL(pageHTML)
	if err != nil {
		return nil, err
	}

	captionReq, _ := http.NewRequestWithContext(ctx, "GET", captionURL, nil)
	captionResp, err := s.httpClient.Do(captionReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch captions: %w", err)
	}
	defer captionResp.Body.Close()

	captionBody, err := io.ReadAll(captionResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read captions: %w", err)
	}

	caption, err := parseCaptionsXML(captionBody)
	if err != nil {
		return nil, fmt.Errorf("failed to parse captions XML: %w", err)
	}
	caption.Language = lang

	return caption, nil
}

func extractCaptionURL(pageHTML string) (string, string, error) {
	re := regexp.MustCompile(`"captionTracks"\s*:\s*\[(.*?)\],\s*"`)
	matches := re.FindStringSubmatch(pageHTML)
	if len(matches) < 2 {
		re2 := regexp.MustCompile(`"playerCaptionsTracklistRenderer"\s*:\s*\{(?:.*?,)?\s*"captionTracks"\s*:\s*\[(.*?)\],\s*"`)
		matches = re2.FindStringSubmatch(pageHTML)
		if len(matches) < 2 {
			return "", "", errNoCaptionTrack
		}
	}

	tracksJSON := matches[1]
	reURL := regexp.MustCompile(`"baseUrl"\s*:\s*"(.*?)"`)
	urlMatches := reURL.FindStringSubmatch(tracksJSON)
	if len(urlMatches) < 2 {
		return "", "", fmt.Errorf("caption track found but baseUrl missing")
	}

	lang := "unknown"
	reLang := regexp.MustCompile(`"languageCode"\s*:\s*"(.*?)"`)
	if m := reLang.FindStringSubmatch(tracksJSON); len(m) > 1 {
		lang = m[1]
	}

	u := urlMatches[1]
	u = strings.ReplaceAll(u, `\u0026`, "&")
	u = strings.ReplaceAll(u, `\/`, "/")

	return u, lang, nil
}

func parseCaptionsXML(data []byte) (*extract.Caption, error) {
	var tt timedTextXML
	if err := xml.Unmarshal(data, &tt); err != nil {
		return nil, err
	}

	var lines []string
	var plainParts []string
	for _, t := range tt.Texts {
		text := html.UnescapeString(t.Text)
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		start, _ := strconv.ParseFloat(t.Start, 64)
		lines = append(lines, fmt.Sprintf("[%s] %s", formatTimestamp(start), text))
		plainParts = append(plainParts, text)
	}

	if len(lines) == 0 {
		return nil, errNoCaptionTrack
	}

	return &extract.Caption{
		Content:   strings.Join(lines, "\n"),
		PlainText: strings.Join(plainParts, " "),
	}, nil
}

// formatTimestamp renders seconds as MM:SS, or HH:MM:SS past the hour.
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
