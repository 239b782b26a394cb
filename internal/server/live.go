package server

import (
	"log/slog"
	"net/http"

	"github.com/zishang520/socket.io/v2/socket"

	"github.com/vk/beacongrid/internal/store"
)

// LiveNamespace is the Socket.IO namespace live viewers connect to.
const LiveNamespace = "/live"

// LiveEvent is the event name carrying accepted records.
const LiveEvent = "beacon"

// LiveHub broadcasts every accepted record over Socket.IO so dashboards and
// the smoke client's watch mode see messages as they arrive.
type LiveHub struct {
	logger *slog.Logger
	io     *socket.Server
}

// NewLiveHub creates the Socket.IO server and wires connection logging.
func NewLiveHub(logger *slog.Logger) *LiveHub {
	io := socket.NewServer(nil, nil)
	hub := &LiveHub{logger: logger, io: io}

	io.Of(LiveNamespace, nil).On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		logger.Info("Live viewer connected.", "sid", client.Id())
		client.On("disconnect", func(...any) {
			logger.Debug("Live viewer disconnected.", "sid", client.Id())
		})
	})

	return hub
}

// Handler returns the engine.io endpoint, mounted at /socket.io/.
func (h *LiveHub) Handler() http.Handler {
	return h.io.ServeHandler(nil)
}

// Broadcast implements Broadcaster.
func (h *LiveHub) Broadcast(entry store.Entry) {
	if err := h.io.Of(LiveNamespace, nil).Emit(LiveEvent, entry); err != nil {
		h.logger.Error("Failed to broadcast record.", "idNumber", entry.IDNumber, "error", err)
	}
}

// Close shuts the Socket.IO server down.
func (h *LiveHub) Close() {
	h.io.Close(nil)
}
