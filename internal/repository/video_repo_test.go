package repository

import (
	"strings"
	"testing"
)

func TestExtractableConditions(t *testing.T) {
	cases := []struct {
		name             string
		captionOnly      bool
		includeCompleted bool
		wantParts        []string
		excludeParts     []string
	}{
		{
			name:         "default skips transcribed and in-flight videos",
			wantParts:    []string{"channel_id = $1", "has_transcript = FALSE", "transcript_status != 'extracting'"},
			excludeParts: []string{"caption = TRUE"},
		},
		{
			name:        "caption only adds the caption flag",
			captionOnly: true,
			wantParts:   []string{"has_transcript = FALSE", "caption = TRUE"},
		},
		{
			name:             "forced runs include completed videos",
			includeCompleted: true,
			wantParts:        []string{"channel_id = $1"},
			excludeParts:     []string{"has_transcript", "transcript_status"},
		},
		{
			name:             "forced caption-only keeps the caption flag",
			captionOnly:      true,
			includeCompleted: true,
			wantParts:        []string{"caption = TRUE"},
			excludeParts:     []string{"has_transcript"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			where := extractableConditions(tc.captionOnly, tc.includeCompleted)
			for _, part := range tc.wantParts {
				if !strings.Contains(where, part) {
					t.Errorf("clause %q missing %q", where, part)
				}
			}
			for _, part := range tc.excludeParts {
				if strings.Contains(where, part) {
					t.Errorf("clause %q unexpectedly contains %q", where, part)
				}
			}
		})
	}
}
