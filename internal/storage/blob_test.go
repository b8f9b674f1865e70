package storage

import (
	"bytes"
	"context"
	"testing"
)

func TestLocalBlobStoreRoundTrip(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBlobStore: %v", err)
	}
	ctx := context.Background()

	data := []byte("fake audio bytes")
	url, err := store.Put(ctx, "recording_1.wav", data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url == "" {
		t.Fatal("Put returned empty URL")
	}

	got, err := store.Fetch(ctx, url)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Fetch = %q, want %q", got, data)
	}

	if err := store.Delete(ctx, url); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Fetch(ctx, url); err == nil {
		t.Error("Fetch after Delete should fail")
	}

	// Deleting an already-deleted blob is not an error.
	if err := store.Delete(ctx, url); err != nil {
		t.Errorf("Delete (again): %v", err)
	}
}

func TestLocalBlobStoreRejectsForeignURL(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Fetch(context.Background(), "https://example.com/a.wav"); err == nil {
		t.Error("Fetch should reject non-file URLs")
	}
}

func TestExtractDriveFileID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://drive.google.com/uc?export=download&id=abc123_XYZ", "abc123_XYZ"},
		{"https://drive.google.com/file/d/1a2b3c4d5e/view", "1a2b3c4d5e"},
		{"https://drive.google.com/open?id=qwerty", "qwerty"},
		{"https://example.com/nothing", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := extractDriveFileID(tt.url); got != tt.want {
			t.Errorf("extractDriveFileID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
