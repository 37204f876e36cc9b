package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/formhub/backend/internal/application/files"
)

var _ files.Store = (*MemoryFileStore)(nil)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryFileStore keeps blobs in process memory.
// Used by tests and local runs without an S3 endpoint.
type MemoryFileStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	// BaseURL prefixes the URLs returned by Upload
	BaseURL string
}

// NewMemoryFileStore creates an empty store
func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{
		objects: make(map[string]memoryObject),
		BaseURL: "memory://files",
	}
}

// Upload stores a copy of body
func (s *MemoryFileStore) Upload(_ context.Context, key string, body io.Reader, _ int64, contentType string) (string, error) {
	if key == "" {
		return "", errors.New("storage key is required")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload body: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, contentType: contentType}
	s.mu.Unlock()

	return strings.TrimRight(s.BaseURL, "/") + "/" + key, nil
}

// Open returns a reader over the stored bytes
func (s *MemoryFileStore) Open(_ context.Context, key string) (*files.Object, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, files.ErrObjectNotFound
	}
	return &files.Object{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
	}, nil
}

// Delete removes key if present
func (s *MemoryFileStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Keys lists stored keys in order
func (s *MemoryFileStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key is stored
func (s *MemoryFileStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}
