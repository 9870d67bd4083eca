package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sweeney/oven-controller/internal/history"
)

const maxCycleLimit = 500

// CycleJSON is the JSON representation of a completed cook cycle.
type CycleJSON struct {
	ID            string `json:"id"`
	Mode          string `json:"mode"`
	Doneness      string `json:"doneness"`
	TargetC       int    `json:"target_c"`
	DurationMs    int64  `json:"duration_ms"`
	StartedAt     string `json:"started_at"`
	EndedAt       string `json:"ended_at"`
	HeaterOnCount int    `json:"heater_on_count"`
	MaxTempC      *int   `json:"max_temp_c"`
}

func cycleJSON(c history.Cycle) CycleJSON {
	out := CycleJSON{
		ID:            c.ID,
		Mode:          c.Mode,
		Doneness:      c.Doneness,
		TargetC:       c.TargetC,
		DurationMs:    c.Duration.Milliseconds(),
		StartedAt:     c.StartedAt.UTC().Format(time.RFC3339),
		EndedAt:       c.EndedAt.UTC().Format(time.RFC3339),
		HeaterOnCount: c.HeaterOnCount,
	}
	if c.MaxTempC >= 0 {
		m := c.MaxTempC
		out.MaxTempC = &m
	}
	return out
}

// handleButton presses a virtual button. Presses are fire-and-forget like
// the physical buttons: 202 means the notification was offered, not acted on.
func (s *Server) handleButton(c *gin.Context) {
	button := c.Param("button")

	var press func()
	if s.buttons != nil {
		switch button {
		case "mode":
			press = s.buttons.ModeEdge
		case "doneness":
			press = s.buttons.DonenessEdge
		case "start":
			press = s.buttons.StartEdge
		}
	}
	if press == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown button: " + button})
		return
	}
	if s.buttons.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "cook cycle running"})
		return
	}

	press()
	s.log.Infow("virtual button pressed", "button", button, "remote", c.ClientIP())
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "button": button})
}

func (s *Server) handleCycles(c *gin.Context) {
	limit := history.DefaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxCycleLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and " + strconv.Itoa(maxCycleLimit)})
			return
		}
		limit = n
	}

	out := []CycleJSON{}
	if s.history != nil {
		cycles, err := s.history.List(c.Request.Context(), limit)
		if err != nil {
			s.log.Errorw("list cycles", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cycles"})
			return
		}
		for _, cy := range cycles {
			out = append(out, cycleJSON(cy))
		}
	}
	c.JSON(http.StatusOK, gin.H{"cycles": out})
}
