package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/lecture-notebook/internal/apperr"
	"github.com/codebuildervaibhav/lecture-notebook/internal/auth"
	"github.com/codebuildervaibhav/lecture-notebook/internal/config"
	"github.com/codebuildervaibhav/lecture-notebook/internal/queue"
	"github.com/codebuildervaibhav/lecture-notebook/internal/storage"
	"github.com/codebuildervaibhav/lecture-notebook/internal/types"
)

// Enqueuer hands accepted jobs to the processing pipeline.
type Enqueuer interface {
	Enqueue(job *queue.Job) error
}

// QuotaGuard admits or rejects a new submission for a user.
type QuotaGuard interface {
	Admit(ctx context.Context, user *types.User) error
}

// UploadHandler accepts lecture recordings. All synchronous checks
// (validation, identity, quota) run before any state is created; once the
// notebook row exists the caller gets its id immediately and the pipeline
// continues in the background.
type UploadHandler struct {
	cfg      *config.Config
	store    *storage.Store
	blobs    storage.BlobStore
	guard    QuotaGuard
	resolver *auth.Resolver
	pipeline Enqueuer
	log      *zap.SugaredLogger
}

// NewUploadHandler creates the submission handler.
func NewUploadHandler(
	cfg *config.Config,
	store *storage.Store,
	blobs storage.BlobStore,
	guard QuotaGuard,
	resolver *auth.Resolver,
	pipeline Enqueuer,
	log *zap.SugaredLogger,
) *UploadHandler {
	return &UploadHandler{
		cfg:      cfg,
		store:    store,
		blobs:    blobs,
		guard:    guard,
		resolver: resolver,
		pipeline: pipeline,
		log:      log,
	}
}

// Handle processes POST /recordings.
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return validationError(c, apperr.Validation(apperr.CodeNoFile, "No file uploaded"))
	}

	if file.Size == 0 {
		return validationError(c, apperr.Validation(apperr.CodeEmptyFile, "Uploaded file is empty"))
	}
	if file.Size > h.cfg.MaxFileSizeBytes() {
		return validationError(c, apperr.Validation(apperr.CodeFileTooLarge,
			fmt.Sprintf("File too large (max %dMB)", h.cfg.Limits.MaxFileSizeMB)))
	}

	ext := filepath.Ext(file.Filename)
	if !h.cfg.FormatSupported(ext) {
		return validationError(c, apperr.Validation(apperr.CodeInvalidFormat, "Unsupported audio format"))
	}

	user, err := h.resolver.Resolve(c)
	if err != nil {
		h.log.Errorw("identity resolution failed", "error", err)
		return internalError(c, "Failed to resolve identity")
	}
	if user == nil && h.cfg.Auth.RequireAuth {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": apperr.ErrAuthRequired.Error(),
			"code":  "AUTH_REQUIRED",
		})
	}

	if user != nil {
		if err := h.guard.Admit(c.UserContext(), user); err != nil {
			if errors.Is(err, apperr.ErrQuotaExceeded) {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": err.Error(),
					"code":  "QUOTA_EXCEEDED",
				})
			}
			h.log.Errorw("quota check failed", "error", err)
			return internalError(c, "Failed to check quota")
		}
	}

	data, err := readUpload(file)
	if err != nil {
		h.log.Errorw("failed to read upload", "error", err)
		return internalError(c, "Failed to read uploaded file")
	}

	// Stage the audio before creating the row, so a rejected request leaves
	// no notebook behind.
	blobName := fmt.Sprintf("recording_%s%s", uuid.New().String(), ext)
	blobURL, err := h.blobs.Put(c.UserContext(), blobName, data)
	if err != nil {
		h.log.Errorw("failed to stage recording", "error", err)
		return internalError(c, "Failed to store recording")
	}

	var userID *int64
	if user != nil {
		userID = &user.ID
	}

	notebook, err := h.store.CreateNotebook(c.UserContext(), userID)
	if err != nil {
		h.log.Errorw("failed to create notebook", "error", err)
		if derr := h.blobs.Delete(context.Background(), blobURL); derr != nil {
			h.log.Warnw("failed to clean up staged recording", "blob_url", blobURL, "error", derr)
		}
		return internalError(c, "Failed to create notebook")
	}

	if err := h.pipeline.Enqueue(queue.NewJob(notebook.ID, blobName, blobURL)); err != nil {
		h.log.Errorw("failed to enqueue job", "notebook_id", notebook.ID, "error", err)
		// The row exists; leave it for the stale sweep rather than lying to
		// the caller with an id that was never accepted.
		return internalError(c, "Failed to start processing")
	}

	return c.JSON(fiber.Map{
		"id":     notebook.ID,
		"status": notebook.Status,
	})
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func validationError(c *fiber.Ctx, verr *apperr.ValidationError) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": verr.Message,
		"code":  verr.Code,
	})
}

func internalError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": message,
		"code":  "ERR_INTERNAL",
	})
}
