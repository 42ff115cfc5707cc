package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityAddTag(t *testing.T) {
	a := NewActivity()
	a.AddTag("sun", "http://example.com/sun")
	a.AddTag("sun", "http://example.com/ignored")
	a.AddTag("fun", "http://example.com/fun")

	require.Contains(t, a.Tags, "sun")
	assert.Equal(t, 2, a.Tags["sun"].Count)
	assert.Equal(t, "http://example.com/sun", a.Tags["sun"].URL)
	assert.Equal(t, 1, a.Tags["fun"].Count)
}

func TestSocialCacheDocumentShape(t *testing.T) {
	c := SocialCache{
		ID:      "123",
		Profile: map[string]string{"bio": "hi"},
		Activity: &Activity{
			Photos: []Photo{{URL: "http://img/1"}},
			Tags:   map[string]*TagCount{"sun": {Count: 1, URL: "http://t/sun"}},
		},
		Has: Has{Activity: true},
	}

	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "123",
		"profile": {"bio": "hi"},
		"activity": {
			"photos": [{"url": "http://img/1"}],
			"tags": {"sun": {"count": 1, "url": "http://t/sun"}}
		},
		"has": {"activity": true}
	}`, string(raw))
}

func TestCleanIdentifier(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"alan", "alan"},
		{"  Alan ", "Alan"},
		{"@alan", "alan"},
		{"https://instagram.com/alanhartless/", "alanhartless"},
		{"http://www.instagram.com/alan?hl=en", "alan"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanIdentifier(tc.in), "input %q", tc.in)
	}
}
