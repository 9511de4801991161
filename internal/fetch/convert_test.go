package fetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePRURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		url     string
		owner   string
		repo    string
		number  int
		wantErr bool
	}{
		{
			name:   "dotcom",
			url:    "https://api.github.com/repos/acme/widget/pulls/42",
			owner:  "acme",
			repo:   "widget",
			number: 42,
		},
		{
			name:   "trailing slash",
			url:    "https://api.github.com/repos/acme/widget/pulls/42/",
			owner:  "acme",
			repo:   "widget",
			number: 42,
		},
		{
			name:   "enterprise path prefix",
			url:    "https://ghe.example.com/api/v3/repos/platform/gateway/pulls/7",
			owner:  "platform",
			repo:   "gateway",
			number: 7,
		},
		{
			name:    "issue url",
			url:     "https://api.github.com/repos/acme/widget/issues/42",
			wantErr: true,
		},
		{
			name:    "bad number",
			url:     "https://api.github.com/repos/acme/widget/pulls/abc",
			wantErr: true,
		},
		{
			name:    "empty",
			url:     "",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			owner, repo, number, err := parsePRURL(tc.url)
			if tc.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.owner, owner)
			assert.Equal(t, tc.repo, repo)
			assert.Equal(t, tc.number, number)
		})
	}
}

func TestParseIssueURL(t *testing.T) {
	t.Parallel()

	owner, repo, number, err := parseIssueURL("https://api.github.com/repos/acme/widget/issues/9")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "widget", repo)
	assert.Equal(t, 9, number)

	_, _, _, err = parseIssueURL("https://api.github.com/repos/acme/widget/pulls/9")
	require.Error(t, err)
}

func TestIsoTime(t *testing.T) {
	t.Parallel()

	assert.Empty(t, isoTime(time.Time{}))

	seoul := time.FixedZone("KST", 9*60*60)
	ts := time.Date(2026, 1, 15, 10, 30, 0, 0, seoul)
	assert.Equal(t, "2026-01-15T01:30:00Z", isoTime(ts))
}

func TestTypeSet(t *testing.T) {
	t.Parallel()

	all := typeSet(nil)
	assert.Len(t, all, 3)
	assert.True(t, all["prs"] && all["commits"] && all["issues"])

	subset := typeSet([]string{"commits"})
	assert.Equal(t, map[string]bool{"commits": true}, subset)

	unknown := typeSet([]string{"prs", "gists"})
	assert.Equal(t, map[string]bool{"prs": true}, unknown)
}
