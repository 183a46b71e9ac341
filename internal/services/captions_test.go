package services

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{5.7, "00:05"},
		{65, "01:05"},
		{599.9, "09:59"},
		{3599, "59:59"},
		{3600, "01:00:00"},
		{3725, "01:02:05"},
		{7322.4, "02:02:02"},
	}
	for _, tc := range cases {
		if got := formatTimestamp(tc.seconds); got != tc.want {
			t.Errorf("formatTimestamp(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestParseCaptionsXML(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0.32" dur="2.1">Hello &amp; welcome</text>
  <text start="2.5" dur="1.0">   </text>
  <text start="3661.0" dur="3.5">past the hour</text>
</transcript>`)

	caption, err := parseCaptionsXML(data)
	if err != nil {
		t.Fatalf("parseCaptionsXML failed: %v", err)
	}

	lines := strings.Split(caption.Content, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (blank entries dropped): %q", len(lines), caption.Content)
	}
	if lines[0] != "[00:00] Hello & welcome" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "[01:01:01] past the hour" {
		t.Errorf("line 1 = %q", lines[1])
	}
	if caption.PlainText != "Hello & welcome past the hour" {
		t.Errorf("plain text = %q", caption.PlainText)
	}
}

func TestParseCaptionsXMLEmpty(t *testing.T) {
	data := []byte(`<transcript><text start="0" dur="1">  </text></transcript>`)
	if _, err := parseCaptionsXML(data); !isNoCaptions(err) {
		t.Errorf("err = %v, want a no-captions error", err)
	}

	if _, err := parseCaptionsXML([]byte("not xml at all")); err == nil {
		t.Error("expected an error for malformed XML")
	}
}

func TestExtractCaptionURL(t *testing.T) {
	page := `{"playerConfig":{},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"https:\/\/www.youtube.com\/api\/timedtext?v=abc&lang=en","languageCode":"en","kind":"asr"}], "audioTracks":[]}},"videoDetails":{}}`

	u, lang, err := extractCaptionURL(page)
	if err != nil {
		t.Fatalf("extractCaptionURL failed: %v", err)
	}
	if u != "https://www.youtube.com/api/timedtext?v=abc&lang=en" {
		t.Errorf("url = %q, escapes not decoded", u)
	}
	if lang != "en" {
		t.Errorf("lang = %q, want en", lang)
	}
}

func TestExtractCaptionURLNoTracks(t *testing.T) {
	_, _, err := extractCaptionURL(`{"videoDetails":{"title":"no subs here"}}`)
	if !errors.Is(err, errNoCaptionTrack) {
		t.Errorf("err = %v, want errNoCaptionTrack", err)
	}
	if !isNoCaptions(err) {
		t.Error("errNoCaptionTrack not recognized by isNoCaptions")
	}
}

func TestExtractCaptionURLMissingLanguage(t *testing.T) {
	page := `"captionTracks":[{"baseUrl":"https://example.com/tt"}], "audioTracks":[]`
	u, lang, err := extractCaptionURL(page)
	if err != nil {
		t.Fatalf("extractCaptionURL failed: %v", err)
	}
	if u != "https://example.com/tt" {
		t.Errorf("url = %q", u)
	}
	if lang != "unknown" {
		t.Errorf("lang = %q, want unknown", lang)
	}
}
