package manual

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLToPattern(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{
			name: "workday posting with locale and location code",
			url:  "https://acme.myworkdayjobs.com/en-US/careers/job/NYC/apply",
			want: "*.myworkdayjobs.com/*/careers/job/*/apply",
		},
		{
			name: "two-label host is kept verbatim",
			url:  "https://example.com/jobs/apply",
			want: "example.com/jobs/apply",
		},
		{
			name: "numeric id segment",
			url:  "https://boards.greenhouse.io/acme/jobs/4012345",
			want: "*.greenhouse.io/acme/jobs/*",
		},
		{
			name: "uuid segment",
			url:  "https://jobs.lever.co/acme/0c1f6a6e-2c7e-4b5a-9f3d-6a1b2c3d4e5f/apply",
			want: "*.lever.co/acme/*/apply",
		},
		{
			name: "bare host with no path",
			url:  "https://careers.example.org",
			want: "*.example.org",
		},
		{
			name: "query string is dropped",
			url:  "https://example.com/apply?src=linkedin",
			want: "example.com/apply",
		},
		{
			name:    "no hostname",
			url:     "/relative/path",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := URLToPattern(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// A concrete URL must always match the pattern generated from it.
func TestURLToPatternRoundTrip(t *testing.T) {
	urls := []string{
		"https://acme.myworkdayjobs.com/en-US/careers/job/NYC/apply",
		"https://boards.greenhouse.io/acme/jobs/4012345",
		"https://jobs.lever.co/acme/0c1f6a6e-2c7e-4b5a-9f3d-6a1b2c3d4e5f/apply",
		"https://example.com/jobs/apply",
		"https://careers.example.org/",
	}
	for _, u := range urls {
		pattern, err := URLToPattern(u)
		require.NoError(t, err, u)
		assert.True(t, MatchesPattern(u, pattern), "%s should match %s", u, pattern)
	}
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		pattern string
		want    bool
	}{
		{
			name:    "another tenant matches the same pattern",
			url:     "https://globex.myworkdayjobs.com/fr-FR/careers/job/SF01/apply",
			pattern: "*.myworkdayjobs.com/*/careers/job/*/apply",
			want:    true,
		},
		{
			name:    "different trailing segment does not match",
			url:     "https://acme.myworkdayjobs.com/en-US/careers/job/NYC/review",
			pattern: "*.myworkdayjobs.com/*/careers/job/*/apply",
			want:    false,
		},
		{
			name:    "wildcard does not span slashes",
			url:     "https://acme.myworkdayjobs.com/en-US/extra/careers/job/NYC/apply",
			pattern: "*.myworkdayjobs.com/*/careers/job/*/apply",
			want:    false,
		},
		{
			name:    "trailing slash on url is ignored",
			url:     "https://example.com/jobs/apply/",
			pattern: "example.com/jobs/apply",
			want:    true,
		},
		{
			name:    "trailing slash on pattern is ignored",
			url:     "https://example.com/jobs/apply",
			pattern: "example.com/jobs/apply/",
			want:    true,
		},
		{
			name:    "wildcard requires at least one character",
			url:     "https://example.com/jobs//apply",
			pattern: "example.com/jobs/*/apply",
			want:    false,
		},
		{
			name:    "different host does not match",
			url:     "https://example.net/jobs/apply",
			pattern: "example.com/jobs/apply",
			want:    false,
		},
		{
			name:    "unparseable url never matches",
			url:     "://bad",
			pattern: "example.com",
			want:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesPattern(tt.url, tt.pattern))
		})
	}
}
