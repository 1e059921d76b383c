package objstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"moodcanvas/internal/apperr"
)

// HTTPOptions parameterise the REST-backed store.
type HTTPOptions struct {
	BaseURL       string
	Bucket        string
	APIKey        string
	PublicBaseURL string
	Timeout       time.Duration
}

// HTTPStore talks to a storage service over its REST object API.
type HTTPStore struct {
	opts    HTTPOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHTTPStore constructs the REST client.
func NewHTTPStore(opts HTTPOptions, logger zerolog.Logger) *HTTPStore {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPStore{
		opts:    opts,
		logger:  logger.With().Str("component", "object_store").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

func (s *HTTPStore) objectURL(key string) string {
	return fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.opts.Bucket, key)
}

// Put uploads data under key, overwriting any existing object.
func (s *HTTPStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(key), bytes.NewReader(data))
	if err != nil {
		return &apperr.StorageError{Op: "put", Key: key, Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return &apperr.StorageError{Op: "put", Key: key, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apperr.StorageError{Op: "put", Key: key, Cause: statusError(resp)}
	}
	return nil
}

// Get downloads the object stored under key.
func (s *HTTPStore) Get(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(key), nil)
	if err != nil {
		return nil, &apperr.StorageError{Op: "get", Key: key, Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &apperr.StorageError{Op: "get", Key: key, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &apperr.StorageError{Op: "get", Key: key, Cause: statusError(resp)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.StorageError{Op: "get", Key: key, Cause: err}
	}
	return data, nil
}

// Delete removes the object stored under key.
func (s *HTTPStore) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(key), nil)
	if err != nil {
		return &apperr.StorageError{Op: "delete", Key: key, Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return &apperr.StorageError{Op: "delete", Key: key, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return &apperr.StorageError{Op: "delete", Key: key, Cause: statusError(resp)}
	}
	return nil
}

type listRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type listEntry struct {
	Name     string `json:"name"`
	Metadata struct {
		Size int64 `json:"size"`
	} `json:"metadata"`
}

// List pages through keys under prefix. The token is an opaque offset.
func (s *HTTPStore) List(ctx context.Context, prefix string, limit int, token string) (ListPage, error) {
	offset := 0
	if token != "" {
		parsed, err := strconv.Atoi(token)
		if err != nil {
			return ListPage{}, &apperr.StorageError{Op: "list", Key: prefix, Cause: fmt.Errorf("bad list token %q", token)}
		}
		offset = parsed
	}

	body, err := json.Marshal(listRequest{Prefix: prefix, Limit: limit, Offset: offset})
	if err != nil {
		return ListPage{}, &apperr.StorageError{Op: "list", Key: prefix, Cause: err}
	}

	endpoint := fmt.Sprintf("%s/object/list/%s", s.baseURL, s.opts.Bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ListPage{}, &apperr.StorageError{Op: "list", Key: prefix, Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return ListPage{}, &apperr.StorageError{Op: "list", Key: prefix, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ListPage{}, &apperr.StorageError{Op: "list", Key: prefix, Cause: statusError(resp)}
	}

	var entries []listEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return ListPage{}, &apperr.StorageError{Op: "list", Key: prefix, Cause: err}
	}

	page := ListPage{Objects: make([]ObjectInfo, 0, len(entries))}
	for _, entry := range entries {
		page.Objects = append(page.Objects, ObjectInfo{Key: entry.Name, Size: entry.Metadata.Size})
	}
	if len(entries) == limit {
		page.HasMore = true
		page.NextToken = strconv.Itoa(offset + len(entries))
	}
	return page, nil
}

// PublicURL resolves a key against the public base URL.
func (s *HTTPStore) PublicURL(key string) string {
	base := strings.TrimRight(s.opts.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("%s/object/public/%s", s.baseURL, s.opts.Bucket)
		return fmt.Sprintf("%s/%s", base, key)
	}
	return fmt.Sprintf("%s/%s/%s", base, s.opts.Bucket, key)
}

func statusError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(payload))
	if msg == "" {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
}

var _ Store = (*HTTPStore)(nil)
