package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamFeed upgrades to a websocket and pushes each dispatch report to the
// client as one JSON message. The stream ends when the client disconnects or
// the broadcaster shuts down.
func (h *Handler) streamFeed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("feed upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, reports := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(id)

	// Drain client frames so pings and close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case report, ok := <-reports:
			if !ok {
				return
			}
			if err := conn.WriteJSON(report); err != nil {
				return
			}
		}
	}
}
