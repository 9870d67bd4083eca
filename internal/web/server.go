// Package web provides an HTTP status server for the oven controller:
// a status page, JSON status, a websocket live feed, virtual buttons and
// the cook cycle history.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sweeney/oven-controller/internal/history"
	"github.com/sweeney/oven-controller/internal/logger"
	"github.com/sweeney/oven-controller/internal/status"
)

// Buttons presses the oven buttons on behalf of a web client.
// Implemented by *oven.Oven.
type Buttons interface {
	ModeEdge()
	DonenessEdge()
	StartEdge()
	Running() bool
}

// Server serves the status page and API over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	buttons    Buttons
	history    history.Store
	log        *logger.Logger
}

// New creates a Server that reads state from tracker. buttons and store
// may be nil, which disables the matching routes' actions.
func New(addr string, tracker *status.Tracker, buttons Buttons, store history.Store, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		tracker: tracker,
		buttons: buttons,
		history: store,
		log:     log,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog)

	router.GET("/", s.handleIndex)
	router.GET("/index.html", s.handleIndex)
	router.GET("/index.json", s.handleJSON)
	router.GET("/ws", s.handleWS)

	api := router.Group("/api/v1")
	{
		api.POST("/buttons/:button", s.handleButton)
		api.GET("/cycles", s.handleCycles)
	}
	return router
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Debugw("http request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"elapsed", time.Since(start))
}

func (s *Server) handleIndex(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := renderHTML(c.Writer, snap); err != nil {
		s.log.Errorw("render status page", "err", err)
	}
}

func (s *Server) handleJSON(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.Data(http.StatusOK, "application/json", status.FormatJSON(snap))
}
