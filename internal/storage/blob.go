package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore stages uploaded audio between accept and transcription, addressed
// by URL so the pipeline never holds the full byte stream for its whole run.
type BlobStore interface {
	// Put uploads bytes under a name and returns the object's URL.
	Put(ctx context.Context, name string, data []byte) (string, error)
	// Fetch retrieves the object's bytes back into memory.
	Fetch(ctx context.Context, blobURL string) ([]byte, error)
	// Delete removes the object. Callers treat failures as non-fatal.
	Delete(ctx context.Context, blobURL string) error
}

// LocalBlobStore keeps staged audio on the local filesystem under a single
// directory, addressed by file:// URLs.
type LocalBlobStore struct {
	dir string
}

// NewLocalBlobStore creates the staging directory if needed.
func NewLocalBlobStore(dir string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &LocalBlobStore{dir: dir}, nil
}

func (ls *LocalBlobStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(ls.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve blob path: %w", err)
	}
	return "file://" + abs, nil
}

func (ls *LocalBlobStore) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	path, err := localPath(blobURL)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

func (ls *LocalBlobStore) Delete(ctx context.Context, blobURL string) error {
	path, err := localPath(blobURL)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func localPath(blobURL string) (string, error) {
	if !strings.HasPrefix(blobURL, "file://") {
		return "", fmt.Errorf("not a local blob URL: %s", blobURL)
	}
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", fmt.Errorf("invalid blob URL %s: %w", blobURL, err)
	}
	return u.Path, nil
}
