package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tendant/simple-docs/pkg/simpledocs"
)

// Backend is a filesystem implementation of the simpledocs.BlobStore interface
type Backend struct {
	baseDir   string
	urlPrefix string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	URLPrefix string // Optional URL prefix for temporary access URLs
}

// New creates a new filesystem storage backend
func New(config Config) (simpledocs.BlobStore, error) {
	// Validate and create base directory if it doesn't exist
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   config.BaseDir,
		urlPrefix: config.URLPrefix,
	}, nil
}

// Put uploads content directly to the filesystem
func (b *Backend) Put(ctx context.Context, objectKey string, reader io.Reader, mimeType string) (string, error) {
	filePath := filepath.Join(b.baseDir, objectKey)

	// Create directory structure if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return fmt.Sprintf("file://%s", filePath), nil
}

// Download downloads content directly from the filesystem
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	filePath := filepath.Join(b.baseDir, objectKey)

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, errors.New("object not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete deletes content from the filesystem and reports whether it existed
func (b *Backend) Delete(ctx context.Context, objectKey string) (bool, error) {
	filePath := filepath.Join(b.baseDir, objectKey)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return false, nil
	}

	if err := os.Remove(filePath); err != nil {
		return false, fmt.Errorf("failed to delete file: %w", err)
	}

	// Clean up empty directories
	b.cleanupEmptyDirectories(filepath.Dir(filePath))

	return true, nil
}

// Exists reports whether a file is stored under the key
func (b *Backend) Exists(ctx context.Context, objectKey string) (bool, error) {
	filePath := filepath.Join(b.baseDir, objectKey)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to get file info: %w", err)
	}
	return true, nil
}

// Move renames a file within the backend
func (b *Backend) Move(ctx context.Context, oldKey, newKey string) error {
	oldPath := filepath.Join(b.baseDir, oldKey)
	newPath := filepath.Join(b.baseDir, newKey)

	if _, err := os.Stat(oldPath); os.IsNotExist(err) {
		return errors.New("object not found")
	}

	if err := os.MkdirAll(filepath.Dir(newPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(oldPath))

	return nil
}

// GetTemporaryAccessURL returns a URL for time-boxed access. The filesystem
// backend cannot sign URLs; it requires an external server at urlPrefix.
func (b *Backend) GetTemporaryAccessURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	if b.urlPrefix == "" {
		return "", errors.New("direct download required for filesystem backend")
	}
	return fmt.Sprintf("%s/download/%s", b.urlPrefix, objectKey), nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	// Don't remove the base directory
	if dir == b.baseDir {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
