package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/lecture-notebook/internal/apperr"
	"github.com/codebuildervaibhav/lecture-notebook/internal/auth"
	"github.com/codebuildervaibhav/lecture-notebook/internal/config"
	"github.com/codebuildervaibhav/lecture-notebook/internal/logger"
	"github.com/codebuildervaibhav/lecture-notebook/internal/queue"
	"github.com/codebuildervaibhav/lecture-notebook/internal/quota"
	"github.com/codebuildervaibhav/lecture-notebook/internal/storage"
	"github.com/codebuildervaibhav/lecture-notebook/internal/types"
)

type fakeEnqueuer struct {
	jobs []*queue.Job
}

func (f *fakeEnqueuer) Enqueue(job *queue.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

type uploadFixture struct {
	app      *fiber.App
	store    *storage.Store
	blobs    storage.BlobStore
	enqueuer *fakeEnqueuer
	cfg      *config.Config
}

func newUploadFixture(t *testing.T, mutate func(*config.Config)) *uploadFixture {
	t.Helper()

	cfg := &config.Config{
		Storage: config.StorageConfig{Database: filepath.Join(t.TempDir(), "test.db")},
		Limits:  config.LimitsConfig{DailyLimit: 2, MaxFileSizeMB: 1},
		Auth:    config.AuthConfig{RequireAuth: true},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if mutate != nil {
		mutate(cfg)
	}

	store, err := storage.NewStore(cfg.Storage.Database)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	blobs, err := storage.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	enqueuer := &fakeEnqueuer{}
	log := logger.NewNop()
	handler := NewUploadHandler(cfg, store, blobs,
		quota.NewGuard(store, cfg.Limits, cfg.Auth),
		auth.NewResolver(store, cfg.Auth.IdentityHeader),
		enqueuer, log)

	app := fiber.New()
	app.Post("/recordings", handler.Handle)

	return &uploadFixture{app: app, store: store, blobs: blobs, enqueuer: enqueuer, cfg: cfg}
}

func uploadRequest(t *testing.T, filename string, size int, email string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(bytes.Repeat([]byte("a"), size)); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/recordings", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if email != "" {
		req.Header.Set("X-Auth-Email", email)
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("invalid JSON response %q: %v", raw, err)
	}
	return m
}

func (f *uploadFixture) notebookCount(t *testing.T) int {
	t.Helper()
	// Ids are assigned sequentially from 1; probe until not found.
	count := 0
	for id := int64(1); ; id++ {
		_, err := f.store.GetNotebook(context.Background(), id)
		if errors.Is(err, apperr.ErrNotFound) {
			return count
		}
		if err != nil {
			t.Fatal(err)
		}
		count++
	}
}

func TestUploadAccepted(t *testing.T) {
	f := newUploadFixture(t, nil)

	resp, err := f.app.Test(uploadRequest(t, "lecture.wav", 2048, "teacher@example.com"), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["status"] != string(types.StatusPending) {
		t.Errorf("status = %v, want pending", body["status"])
	}
	id := int64(body["id"].(float64))

	nb, err := f.store.GetNotebook(context.Background(), id)
	if err != nil {
		t.Fatalf("record should exist: %v", err)
	}
	if nb.Status != types.StatusPending {
		t.Errorf("stored status = %s, want pending", nb.Status)
	}
	if nb.UserID == nil {
		t.Error("notebook should be owned by the authenticated user")
	}

	if len(f.enqueuer.jobs) != 1 {
		t.Fatalf("enqueued jobs = %d, want 1", len(f.enqueuer.jobs))
	}
	job := f.enqueuer.jobs[0]
	if job.NotebookID != id {
		t.Errorf("job notebook id = %d, want %d", job.NotebookID, id)
	}

	staged, err := f.blobs.Fetch(context.Background(), job.BlobURL)
	if err != nil {
		t.Fatalf("staged audio should be fetchable: %v", err)
	}
	if len(staged) != 2048 {
		t.Errorf("staged %d bytes, want 2048", len(staged))
	}
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int
		wantCode string
	}{
		{"unsupported format", "notes.txt", 100, apperr.CodeInvalidFormat},
		{"empty file", "lecture.wav", 0, apperr.CodeEmptyFile},
		{"too large", "lecture.wav", 2 * 1024 * 1024, apperr.CodeFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUploadFixture(t, nil)

			resp, err := f.app.Test(uploadRequest(t, tt.filename, tt.size, "teacher@example.com"), -1)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}

			body := decodeBody(t, resp)
			if body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
			}

			if n := f.notebookCount(t); n != 0 {
				t.Errorf("rejected upload must create no records, found %d", n)
			}
			if len(f.enqueuer.jobs) != 0 {
				t.Error("rejected upload must not enqueue")
			}
		})
	}
}

func TestUploadMissingFile(t *testing.T) {
	f := newUploadFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/recordings", nil)
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["code"] != apperr.CodeNoFile {
		t.Errorf("code = %v, want %s", body["code"], apperr.CodeNoFile)
	}
}

func TestUploadRequiresAuth(t *testing.T) {
	f := newUploadFixture(t, nil)

	resp, err := f.app.Test(uploadRequest(t, "lecture.wav", 2048, ""), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if n := f.notebookCount(t); n != 0 {
		t.Errorf("unauthorized upload must create no records, found %d", n)
	}
}

func TestUploadAnonymousAllowed(t *testing.T) {
	f := newUploadFixture(t, func(cfg *config.Config) {
		cfg.Auth.RequireAuth = false
	})

	resp, err := f.app.Test(uploadRequest(t, "lecture.wav", 2048, ""), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	id := int64(body["id"].(float64))
	nb, err := f.store.GetNotebook(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if nb.UserID != nil {
		t.Error("anonymous notebook should have no owner")
	}
}

func TestUploadQuotaExceeded(t *testing.T) {
	f := newUploadFixture(t, nil) // daily limit 2

	for i := 0; i < 2; i++ {
		resp, err := f.app.Test(uploadRequest(t, "lecture.wav", 2048, "teacher@example.com"), -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("upload %d status = %d, want 200", i+1, resp.StatusCode)
		}
	}

	resp, err := f.app.Test(uploadRequest(t, "lecture.wav", 2048, "teacher@example.com"), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if n := f.notebookCount(t); n != 2 {
		t.Errorf("quota-rejected upload must create no record, found %d", n)
	}

	// A different user is unaffected.
	resp, err = f.app.Test(uploadRequest(t, "lecture.wav", 2048, "other@example.com"), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("other user status = %d, want 200", resp.StatusCode)
	}
}

func TestUploadAdminBypassesQuota(t *testing.T) {
	f := newUploadFixture(t, func(cfg *config.Config) {
		cfg.Auth.AdminEmail = "admin@example.com"
	})

	for i := 0; i < 5; i++ {
		resp, err := f.app.Test(uploadRequest(t, "lecture.wav", 2048, "admin@example.com"), -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("admin upload %d status = %d, want 200", i+1, resp.StatusCode)
		}
	}
}
