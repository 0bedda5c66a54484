package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shopstream/storefront-platform/internal/chat"
	"github.com/shopstream/storefront-platform/internal/middleware"
	"github.com/shopstream/storefront-platform/pkg/logger"
	"github.com/shopstream/storefront-platform/pkg/metrics"
)

// StreamHandler serves the realtime chat event stream over SSE.
type StreamHandler struct {
	chat   *chat.Service
	logger *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(chatSvc *chat.Service, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		chat:   chatSvc,
		logger: log,
	}
}

// Stream handles GET /api/v1/chat/stream
//
// Events are the reconciled per-user view: only conversations the user is a
// participant in, after duplicate and ordering guards have run.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	rec, err := h.chat.For(userID)
	if err != nil {
		h.logger.Error("failed to attach chat session", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "chat unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	events, remove := rec.Listen()
	defer remove()

	sendSSEEvent(w, "connected", map[string]string{"user_id": userID})
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			sendSSEEvent(w, string(ev.Type), ev)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
