package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// handleProgressWebSocket pushes a ProgressRecord to the client every time
// ProgressJournal.Subscribe fires for this run, instead of the client
// polling GET /api/progress/{run_id} (spec.md §9 extension point; the
// underlying file contract is unchanged, this is additive).
func (g *Gateway) handleProgressWebSocket(c *gin.Context) {
	runID := c.Param("run_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", "run_id", runID, "error", err)
		return
	}
	defer conn.Close()

	if rec, err := g.journal.Snapshot(runID); err == nil {
		if writeErr := conn.WriteJSON(rec); writeErr != nil {
			return
		}
	}

	changes := g.journal.Subscribe(runID)
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-changes:
			rec, err := g.journal.Snapshot(runID)
			if err != nil {
				continue
			}
			if err := conn.WriteJSON(rec); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
