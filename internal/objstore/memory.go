package objstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"moodcanvas/internal/apperr"
)

// Memory is an in-process Store used by tests and dry runs.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// PutHook and DeleteHook, when set, run before the operation and can
	// inject failures.
	PutHook    func(key string) error
	DeleteHook func(key string) error
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Put stores a copy of data under key.
func (m *Memory) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if m.PutHook != nil {
		if err := m.PutHook(key); err != nil {
			return &apperr.StorageError{Op: "put", Key: key, Cause: err}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

// Get returns the object stored under key.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, &apperr.StorageError{Op: "get", Key: key, Cause: fmt.Errorf("not found")}
	}
	return append([]byte(nil), data...), nil
}

// Delete removes the object stored under key, if present.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if m.DeleteHook != nil {
		if err := m.DeleteHook(key); err != nil {
			return &apperr.StorageError{Op: "delete", Key: key, Cause: err}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// List pages lexically sorted keys under prefix; the token is an offset.
func (m *Memory) List(ctx context.Context, prefix string, limit int, token string) (ListPage, error) {
	offset := 0
	if token != "" {
		parsed, err := strconv.Atoi(token)
		if err != nil {
			return ListPage{}, &apperr.StorageError{Op: "list", Key: prefix, Cause: fmt.Errorf("bad list token %q", token)}
		}
		offset = parsed
	}

	m.mu.RLock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)

	if offset >= len(keys) {
		return ListPage{}, nil
	}

	end := offset + limit
	if limit <= 0 || end > len(keys) {
		end = len(keys)
	}

	page := ListPage{Objects: make([]ObjectInfo, 0, end-offset)}
	m.mu.RLock()
	for _, key := range keys[offset:end] {
		page.Objects = append(page.Objects, ObjectInfo{Key: key, Size: int64(len(m.objects[key]))})
	}
	m.mu.RUnlock()

	if end < len(keys) {
		page.HasMore = true
		page.NextToken = strconv.Itoa(end)
	}
	return page, nil
}

// PublicURL returns a synthetic URL for the key.
func (m *Memory) PublicURL(key string) string {
	return "memory://" + key
}

// Len reports how many objects are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Has reports whether key currently exists.
func (m *Memory) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

var _ Store = (*Memory)(nil)
