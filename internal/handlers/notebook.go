package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/lecture-notebook/internal/apperr"
	"github.com/codebuildervaibhav/lecture-notebook/internal/storage"
)

// NotebookHandler serves read-only notebook lookups. Callers poll this until
// the status is terminal; failure is only ever visible as the status field.
type NotebookHandler struct {
	store *storage.Store
	log   *zap.SugaredLogger
}

// NewNotebookHandler creates the lookup handler.
func NewNotebookHandler(store *storage.Store, log *zap.SugaredLogger) *NotebookHandler {
	return &NotebookHandler{store: store, log: log}
}

// Handle processes GET /notebooks/:id.
func (h *NotebookHandler) Handle(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid notebook id",
			"code":  "ERR_INVALID_ID",
		})
	}

	notebook, err := h.store.GetNotebook(c.UserContext(), int64(id))
	if errors.Is(err, apperr.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Notebook not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	if err != nil {
		h.log.Errorw("failed to load notebook", "id", id, "error", err)
		return internalError(c, "Failed to load notebook")
	}

	return c.JSON(notebook)
}
