package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/lecture-notebook/internal/storage"
	"github.com/codebuildervaibhav/lecture-notebook/internal/types"
)

// WatchHandler pushes status transitions for one notebook over a websocket,
// closing once a terminal state is reached. It is a convenience over polling
// GET /notebooks/:id; the store remains the source of truth.
type WatchHandler struct {
	store    *storage.Store
	interval time.Duration
	log      *zap.SugaredLogger
}

// NewWatchHandler creates the websocket status watcher.
func NewWatchHandler(store *storage.Store, log *zap.SugaredLogger) *WatchHandler {
	return &WatchHandler{
		store:    store,
		interval: 2 * time.Second,
		log:      log,
	}
}

type statusUpdate struct {
	ID     int64        `json:"id"`
	Status types.Status `json:"status"`
}

// Handle processes GET /ws/notebooks/:id connections.
func (h *WatchHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		h.writeError(c, "invalid notebook id")
		return
	}

	var last types.Status
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		notebook, err := h.store.GetNotebook(context.Background(), id)
		if err != nil {
			h.writeError(c, "notebook not found")
			return
		}

		if notebook.Status != last {
			last = notebook.Status
			payload, _ := json.Marshal(statusUpdate{ID: notebook.ID, Status: notebook.Status})
			if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.log.Debugw("watch connection dropped", "notebook_id", id, "error", err)
				return
			}
		}

		if notebook.Status.Terminal() {
			return
		}
		<-ticker.C
	}
}

func (h *WatchHandler) writeError(c *websocket.Conn, message string) {
	payload, _ := json.Marshal(map[string]string{"error": message})
	_ = c.WriteMessage(websocket.TextMessage, payload)
}
