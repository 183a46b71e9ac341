package models

import "testing"

func TestStripTimestamps(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "minute markers",
			in:   "[00:05] hello there\n[01:23] second line",
			want: "hello there\nsecond line",
		},
		{
			name: "hour markers",
			in:   "[01:02:03] past the hour\n[12:00:00] noon",
			want: "past the hour\nnoon",
		},
		{
			name: "mixed markers",
			in:   "[00:05] intro\n[1:15:00] deep into the stream",
			want: "intro\ndeep into the stream",
		},
		{
			name: "lines without markers untouched",
			in:   "plain line\n[00:10] marked line\nanother plain one",
			want: "plain line\nmarked line\nanother plain one",
		},
		{
			name: "marker not at line start stays",
			in:   "see [00:10] for details",
			want: "see [00:10] for details",
		},
		{
			name: "empty content",
			in:   "",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripTimestamps(tc.in); got != tc.want {
				t.Errorf("StripTimestamps(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
