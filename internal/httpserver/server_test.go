package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/social-enrichment/internal/domain"
	"github.com/blackmichael/social-enrichment/internal/instagram"
	"github.com/blackmichael/social-enrichment/internal/integration"
	"github.com/blackmichael/social-enrichment/internal/store"
)

// instagramStub answers the three Instagram endpoints for user "alan".
func instagramStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users/search":
			w.Write([]byte(`{"data":[{"id":"11","username":"alanh"},{"id":"42","username":"alan"}]}`))
		case "/users/42":
			w.Write([]byte(`{"data":{"id":"42","username":"alan","full_name":"Alan","profile_picture":"http://img/alan.jpg"}}`))
		case "/users/42/media/recent":
			w.Write([]byte(`{"data":[{"type":"image","images":{"standard_resolution":{"url":"http://img/1.jpg"}},"caption":{"text":"#sun"}}]}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo, err := store.NewRepository(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.Migrate(t.Context()))

	api := instagramStub(t)
	registry := integration.NewRegistry(instagram.NewIntegration(instagram.NewClient(api.URL, "tok")))
	svc := domain.NewEnrichmentService(registry, repo, repo, 2)

	return NewServer(0, svc, zerolog.Nop()).Handler()
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorInfo      `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	rec, _ := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListIntegrations(t *testing.T) {
	h := newTestServer(t)
	rec, resp := do(t, h, http.MethodGet, "/api/v1/integrations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []integrationInfo
	require.NoError(t, json.Unmarshal(resp.Data, &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "Instagram", infos[0].Name)
	assert.Equal(t, "instagram", infos[0].IdentifierField)
	assert.Len(t, infos[0].LeadFields, 3)
}

func TestEnrichLifecycle(t *testing.T) {
	h := newTestServer(t)
	path := "/api/v1/leads/7/social/instagram"

	rec, resp := do(t, h, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	rec, resp = do(t, h, http.MethodPost, path, `{"identifier":"@alan"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)

	var cache domain.SocialCache
	require.NoError(t, json.Unmarshal(resp.Data, &cache))
	assert.Equal(t, "42", cache.ID)
	assert.Equal(t, "alan", cache.Profile["profileHandle"])
	assert.True(t, cache.Has.Activity)
	assert.Equal(t, 1, cache.Activity.Tags["sun"].Count)

	rec, resp = do(t, h, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stored domain.SocialCache
	require.NoError(t, json.Unmarshal(resp.Data, &stored))
	assert.Equal(t, cache, stored)

	rec, _ = do(t, h, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = do(t, h, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnrich_OnlyProfileFeature(t *testing.T) {
	h := newTestServer(t)

	rec, resp := do(t, h, http.MethodPost, "/api/v1/leads/7/social/instagram", `{"identifier":"alan","features":["public_profile"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var cache domain.SocialCache
	require.NoError(t, json.Unmarshal(resp.Data, &cache))
	assert.NotEmpty(t, cache.Profile)
	assert.False(t, cache.Has.Activity)
	assert.Nil(t, cache.Activity)
}

func TestEnrich_Errors(t *testing.T) {
	h := newTestServer(t)

	rec, resp := do(t, h, http.MethodPost, "/api/v1/leads/7/social/myspace", `{"identifier":"alan"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	rec, resp = do(t, h, http.MethodPost, "/api/v1/leads/7/social/instagram", `{"identifier":"alan","features":["public_posts"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/leads/7/social/instagram", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnrichBatch(t *testing.T) {
	h := newTestServer(t)

	rec, resp := do(t, h, http.MethodPost, "/api/v1/social/Instagram/batch", `{"leads":[
		{"leadId":"1","identifier":"alan"},
		{"leadId":"2","identifier":"nobody","features":["public_profile"]},
		{"leadId":"3","identifier":"alan","features":["public_posts"]}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var items []batchItem
	require.NoError(t, json.Unmarshal(resp.Data, &items))
	require.Len(t, items, 3)

	assert.Equal(t, "1", items[0].LeadID)
	assert.True(t, items[0].Success)
	require.NotNil(t, items[0].Data)
	assert.Equal(t, "42", items[0].Data.ID)
	assert.True(t, items[0].Data.Has.Activity)

	assert.True(t, items[1].Success)
	assert.Empty(t, items[1].Data.ID)

	assert.False(t, items[2].Success)
	assert.Contains(t, items[2].Error, "public_posts")

	rec, resp = do(t, h, http.MethodGet, "/api/v1/leads/1/social/instagram", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stored domain.SocialCache
	require.NoError(t, json.Unmarshal(resp.Data, &stored))
	assert.Equal(t, "42", stored.ID)
}

func TestEnrichBatch_Rejected(t *testing.T) {
	h := newTestServer(t)
	path := "/api/v1/social/instagram/batch"

	var many strings.Builder
	many.WriteString(`{"leads":[`)
	for i := 0; i <= maxBatchSize; i++ {
		if i > 0 {
			many.WriteString(",")
		}
		fmt.Fprintf(&many, `{"leadId":"%d","identifier":"alan"}`, i)
	}
	many.WriteString(`]}`)

	for _, tc := range []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"malformed", path, `{"leads":`, http.StatusBadRequest},
		{"empty", path, `{"leads":[]}`, http.StatusBadRequest},
		{"too many", path, many.String(), http.StatusBadRequest},
		{"duplicate lead", path, `{"leads":[{"leadId":"1","identifier":"a"},{"leadId":"1","identifier":"b"}]}`, http.StatusBadRequest},
		{"unknown network", "/api/v1/social/myspace/batch", `{"leads":[{"leadId":"1","identifier":"a"}]}`, http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := do(t, h, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}
