package domain

import (
	"net/url"
	"strings"
)

// CleanIdentifier normalizes a user-supplied handle: surrounding whitespace
// and a leading "@" are removed, and a profile URL is reduced to its last
// path segment.
func CleanIdentifier(identifier string) string {
	id := strings.TrimSpace(identifier)

	if strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
		if u, err := url.Parse(id); err == nil {
			segments := strings.Split(strings.Trim(u.Path, "/"), "/")
			id = segments[len(segments)-1]
		}
	}

	id = strings.TrimPrefix(id, "@")
	return strings.TrimSpace(id)
}
