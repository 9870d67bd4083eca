package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sweeney/oven-controller/internal/status"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMsgSize      = 1 << 12
	defaultInterval = time.Second
	minInterval     = 100 * time.Millisecond
	maxInterval     = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS pushes the status JSON at a fixed interval (?interval=500ms)
// until the client goes away.
func (s *Server) handleWS(c *gin.Context) {
	interval := parseInterval(c.Query("interval"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	push := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer push.Stop()
	defer ping.Stop()

	send := func() error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, status.FormatJSON(s.tracker.Snapshot()))
	}
	if err := send(); err != nil {
		s.log.Debugw("websocket initial write failed", "err", err)
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Debugw("websocket ping failed", "err", err)
				return
			}
		case <-push.C:
			if err := send(); err != nil {
				s.log.Debugw("websocket write failed", "err", err)
				return
			}
		}
	}
}

func parseInterval(v string) time.Duration {
	if v == "" {
		return defaultInterval
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < minInterval || d > maxInterval {
		return defaultInterval
	}
	return d
}
