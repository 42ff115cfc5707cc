package instagram

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeAPI serves canned users/search, users/{id} and media responses and
// records every request path.
type fakeAPI struct {
	mu       sync.Mutex
	requests []*http.Request

	search map[string]any // raw JSON body per query
	users  map[string]any
	media  map[string]any
	status int
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client) {
	t.Helper()
	api := &fakeAPI{
		search: map[string]any{},
		users:  map[string]any{},
		media:  map[string]any{},
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, NewClient(srv.URL, "test-token")
}

func (a *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.requests = append(a.requests, r)
	status := a.status
	a.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		w.Write([]byte(`{"meta":{"error_type":"OAuthException"}}`))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/users/")
	var body any
	switch {
	case path == "search":
		body = a.search[r.URL.Query().Get("q")]
	case strings.HasSuffix(path, "/media/recent"):
		body = a.media[strings.TrimSuffix(path, "/media/recent")]
	default:
		body = a.users[path]
	}

	if body == nil {
		body = map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func (a *fakeAPI) requestCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func (a *fakeAPI) paths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.requests))
	for i, r := range a.requests {
		out[i] = r.URL.Path
	}
	return out
}

func (a *fakeAPI) lastRequest() *http.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.requests) == 0 {
		return nil
	}
	return a.requests[len(a.requests)-1]
}

func searchResult(users ...[2]string) map[string]any {
	data := make([]map[string]any, 0, len(users))
	for _, u := range users {
		data = append(data, map[string]any{"id": u[0], "username": u[1]})
	}
	return map[string]any{"data": data}
}

func image(url, caption string) map[string]any {
	m := map[string]any{
		"type":   "image",
		"images": map[string]any{"standard_resolution": map[string]any{"url": url}},
	}
	if caption != "" {
		m["caption"] = map[string]any{"text": caption}
	} else {
		m["caption"] = nil
	}
	return m
}

func video() map[string]any {
	return map[string]any{
		"type":    "video",
		"images":  map[string]any{"standard_resolution": map[string]any{"url": "http://img/video-thumb.jpg"}},
		"caption": map[string]any{"text": "#video"},
	}
}
