package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tendant/simple-docs/pkg/simpledocs"
)

// Backend is an in-memory implementation of the simpledocs.BlobStore interface
type Backend struct {
	mu              sync.RWMutex
	objects         map[string][]byte
	objectsMimeType map[string]string
}

// New creates a new in-memory storage backend
func New() simpledocs.BlobStore {
	return &Backend{
		objects:         make(map[string][]byte),
		objectsMimeType: make(map[string]string),
	}
}

// Put uploads content directly
func (b *Backend) Put(ctx context.Context, objectKey string, reader io.Reader, mimeType string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[objectKey] = data
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	b.objectsMimeType[objectKey] = mimeType

	return fmt.Sprintf("mem://%s", objectKey), nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[objectKey]
	if !exists {
		return nil, errors.New("object not found")
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete deletes content and reports whether the object existed
func (b *Backend) Delete(ctx context.Context, objectKey string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return false, nil
	}

	delete(b.objects, objectKey)
	delete(b.objectsMimeType, objectKey)
	return true, nil
}

// Exists reports whether an object is stored under the key
func (b *Backend) Exists(ctx context.Context, objectKey string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.objects[objectKey]
	return exists, nil
}

// Move renames an object
func (b *Backend) Move(ctx context.Context, oldKey, newKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, exists := b.objects[oldKey]
	if !exists {
		return errors.New("object not found")
	}

	b.objects[newKey] = data
	b.objectsMimeType[newKey] = b.objectsMimeType[oldKey]
	delete(b.objects, oldKey)
	delete(b.objectsMimeType, oldKey)
	return nil
}

// GetTemporaryAccessURL returns a URL for time-boxed access
// In-memory implementation doesn't use URLs
func (b *Backend) GetTemporaryAccessURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	return "", errors.New("direct download required for memory backend")
}
