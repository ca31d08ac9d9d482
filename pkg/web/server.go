// Package web serves a local status API for the assistant: engine status,
// the latest detections, Prometheus metrics and a live event stream.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-pathsense/pkg/alert"
	"github.com/teslashibe/go-pathsense/pkg/detection"
	"github.com/teslashibe/go-pathsense/pkg/frame"
	"github.com/teslashibe/go-pathsense/pkg/hub"
	"github.com/teslashibe/go-pathsense/pkg/speech"
)

const (
	maxEvents       = 200
	shutdownTimeout = 5 * time.Second
)

// Sources are read on every request. Nil sources are reported as zero
// values.
type Sources struct {
	Engine     func() alert.Status
	Detections func() []detection.Detection
	Frames     func() frame.SlotStats
	Speech     func() speech.Stats
	Metrics    http.Handler
}

// Status is the /api/status payload.
type Status struct {
	Engine  alert.Status    `json:"engine"`
	Frames  frame.SlotStats `json:"frames"`
	Speech  speech.Stats    `json:"speech"`
	Clients int             `json:"clients"`
	Uptime  string          `json:"uptime"`
}

// Server is the status server.
type Server struct {
	app     *fiber.App
	addr    string
	src     Sources
	events  *hub.Hub
	logger  *slog.Logger
	started time.Time

	mu     sync.RWMutex
	recent []alert.Event
}

// NewServer builds the routes. Nothing listens until Run.
func NewServer(addr string, src Sources, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:    addr,
		src:     src,
		logger:  logger.With("component", "web"),
		events:  hub.New("events", logger),
		started: time.Now(),
		recent:  make([]alert.Event, 0, maxEvents),
	}

	app := fiber.New(fiber.Config{
		AppName:               "pathsense",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/detections", s.handleDetections)
	api.Get("/events", s.handleEvents)

	if src.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(src.Metrics))
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Run listens until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.events.Run(ctx)

	stop := context.AfterFunc(ctx, func() {
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			s.logger.Warn("shutdown", "error", err)
		}
	})
	defer stop()

	s.logger.Info("status server listening", "addr", s.addr)
	if err := s.app.Listen(s.addr); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Publish records an engine event and streams it to websocket clients.
// Silent and suppressed cycles are too frequent to stream and are only
// counted by metrics.
func (s *Server) Publish(ev alert.Event) {
	if ev.Kind == alert.EventSilent || ev.Kind == alert.EventSuppressed {
		return
	}

	s.mu.Lock()
	s.recent = append(s.recent, ev)
	if len(s.recent) > maxEvents {
		s.recent = s.recent[1:]
	}
	s.mu.Unlock()

	if err := s.events.BroadcastJSON(ev); err != nil {
		s.logger.Warn("encode event", "error", err)
	}
}

// Recent returns the buffered events, oldest first.
func (s *Server) Recent() []alert.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]alert.Event, len(s.recent))
	copy(out, s.recent)
	return out
}

// Hub returns the event hub.
func (s *Server) Hub() *hub.Hub {
	return s.events
}

func (s *Server) status() Status {
	st := Status{
		Clients: s.events.ClientCount(),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if s.src.Engine != nil {
		st.Engine = s.src.Engine()
	}
	if s.src.Frames != nil {
		st.Frames = s.src.Frames()
	}
	if s.src.Speech != nil {
		st.Speech = s.src.Speech()
	}
	return st
}
