package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"tubescribe-backend/internal/models"
)

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// WhisperService transcribes audio with a local whisper.cpp binary. It is
// the offline backend of the speech-to-text fallback; leave the binary path
// unset to disable it.
type WhisperService struct {
	whisperBin string
	modelPath  string
	ffmpegBin  string
	runner     commandRunner
}

func NewWhisperService(whisperBin, modelPath string) *WhisperService {
	return &WhisperService{
		whisperBin: whisperBin,
		modelPath:  modelPath,
		ffmpegBin:  "ffmpeg",
		runner:     &execRunner{},
	}
}

func (s *WhisperService) Method() string { return models.MethodAILocal }

func (s *WhisperService) Available() bool {
	return s != nil && s.whisperBin != "" && s.modelPath != ""
}

// Transcribe converts the audio to 16kHz mono WAV with ffmpeg, runs
// whisper.cpp over it, and returns the transcript text.
func (s *WhisperService) Transcribe(ctx context.Context, audioPath string) (string, string, error) {
	if !s.Available() {
		return "", "", fmt.Errorf("whisper binary or model not configured")
	}

	tempDir, err := os.MkdirTemp("", "whisper-*")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	wavPath := filepath.Join(tempDir, "audio-16k-mono.wav")
	_, stderr, err := s.runner.Run(ctx, s.ffmpegBin,
		"-hide_banner", "-nostdin", "-y",
		"-i", audioPath,
		"-vn", "-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le",
		wavPath,
	)
	if err != nil {
		return "", "", fmt.Errorf("ffmpeg conversion failed: %w (%s)", err, lastLine(stderr))
	}

	textBase := filepath.Join(tempDir, "transcript")
	_, stderr, err = s.runner.Run(ctx, s.whisperBin,
		"-m", s.modelPath,
		"-f", wavPath,
		"-of", textBase,
		"-otxt",
	)
	if err != nil {
		return "", "", fmt.Errorf("whisper transcription failed: %w (%s)", err, lastLine(stderr))
	}

	content, err := os.ReadFile(textBase + ".txt")
	if err != nil {
		return "", "", fmt.Errorf("whisper completed but transcript file is missing: %w", err)
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		return "", "", errors.New("whisper produced an empty transcript")
	}

	log.Printf("Whisper transcribed %s (%d chars)", filepath.Base(audioPath), len(text))
	return text, "", nil
}

// lastLine trims command stderr down to its final non-empty line, which is
// where ffmpeg and whisper.cpp put the actual failure reason.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
