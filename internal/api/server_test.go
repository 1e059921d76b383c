package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moodcanvas/internal/apperr"
	"moodcanvas/internal/archive"
	"moodcanvas/internal/storage"
)

type fakeLister struct {
	page archive.Page
	err  error
	got  archive.ListOptions
}

func (f *fakeLister) ListImages(_ context.Context, opts archive.ListOptions) (archive.Page, error) {
	f.got = opts
	return f.page, f.err
}

type memPageCache struct {
	pages map[string]archive.Page
}

func (m *memPageCache) GetPage(_ context.Context, key string) (archive.Page, bool, error) {
	page, ok := m.pages[key]
	return page, ok, nil
}

func (m *memPageCache) SetPage(_ context.Context, key string, page archive.Page) error {
	m.pages[key] = page
	return nil
}

func testServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           "127.0.0.1:0",
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}
}

func doGet(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) listResponse {
	t.Helper()
	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func samplePage() archive.Page {
	return archive.Page{
		Items: []storage.Painting{
			{
				ID:         "p-002",
				Timestamp:  time.Date(2026, 8, 29, 14, 3, 0, 0, time.UTC),
				Bucket:     time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC),
				ParamsHash: "deadbeef",
				Seed:       "cafe",
				ImageURL:   "https://cdn.example.com/p-002.webp",
				FileSize:   1024,
			},
		},
		Cursor:  "next-token",
		HasMore: true,
	}
}

func TestHealthz(t *testing.T) {
	s := NewServer(testServerConfig(), &fakeLister{}, nil, zerolog.Nop())

	rec := doGet(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestListImagesResponseShape(t *testing.T) {
	lister := &fakeLister{page: samplePage()}
	s := NewServer(testServerConfig(), lister, nil, zerolog.Nop())

	rec := doGet(t, s, "/api/images?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeList(t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "p-002", resp.Items[0].ID)
	assert.Equal(t, "20260829T14", resp.Items[0].TimeBucket)
	assert.Equal(t, "deadbeef", resp.Items[0].ParamsHash)
	assert.Equal(t, int64(1024), resp.Items[0].FileSize)
	assert.Equal(t, "next-token", resp.Cursor)
	assert.True(t, resp.HasMore)

	assert.Equal(t, 10, lister.got.Limit)
}

func TestListImagesParsesDateWindow(t *testing.T) {
	lister := &fakeLister{}
	s := NewServer(testServerConfig(), lister, nil, zerolog.Nop())

	rec := doGet(t, s, "/api/images?from=2026-08-25&to=2026-08-29")
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, lister.got.From)
	require.NotNil(t, lister.got.To)
	assert.Equal(t, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), *lister.got.From)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), *lister.got.To)
}

func TestListImagesValidation(t *testing.T) {
	s := NewServer(testServerConfig(), &fakeLister{}, nil, zerolog.Nop())

	tests := []struct {
		name   string
		target string
	}{
		{"zero limit", "/api/images?limit=0"},
		{"non-numeric limit", "/api/images?limit=abc"},
		{"bad from", "/api/images?from=yesterday"},
		{"bad to", "/api/images?to=29-08-2026"},
		{"inverted window", "/api/images?from=2026-08-29&to=2026-08-25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(t, s, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, errCodeInvalidInput, decodeError(t, rec).Code)
		})
	}
}

func TestListImagesBadCursor(t *testing.T) {
	lister := &fakeLister{err: &apperr.ValidationError{Message: "malformed cursor"}}
	s := NewServer(testServerConfig(), lister, nil, zerolog.Nop())

	rec := doGet(t, s, "/api/images?cursor=%21%21")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errCodeInvalidInput, decodeError(t, rec).Code)
}

func TestListImagesStorageErrorMapsToUnavailable(t *testing.T) {
	lister := &fakeLister{err: &apperr.StorageError{Op: "list", Key: "images/"}}
	s := NewServer(testServerConfig(), lister, nil, zerolog.Nop())

	rec := doGet(t, s, "/api/images")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, errCodeUnavailable, decodeError(t, rec).Code)
}

func TestListImagesUsesPageCache(t *testing.T) {
	lister := &fakeLister{page: samplePage()}
	pages := &memPageCache{pages: map[string]archive.Page{}}
	s := NewServer(testServerConfig(), lister, pages, zerolog.Nop())

	rec := doGet(t, s, "/api/images?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pages.pages, 1)

	// Break the lister; the second identical request must come from cache.
	lister.err = &apperr.StorageError{Op: "list"}
	rec = doGet(t, s, "/api/images?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "next-token", decodeList(t, rec).Cursor)
}

func TestRateLimit(t *testing.T) {
	cfg := testServerConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 2
	s := NewServer(cfg, &fakeLister{}, nil, zerolog.Nop())

	codes := make(map[int]int)
	for i := 0; i < 5; i++ {
		codes[doGet(t, s, "/healthz").Code]++
	}
	assert.Equal(t, 2, codes[http.StatusOK])
	assert.Equal(t, 3, codes[http.StatusTooManyRequests])
}

func TestRequestIDEchoed(t *testing.T) {
	s := NewServer(testServerConfig(), &fakeLister{}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	rec = doGet(t, s, "/healthz")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
