package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-pathsense/pkg/alert"
	"github.com/teslashibe/go-pathsense/pkg/detection"
)

// handleStatus returns engine, frame and speech state.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

// handleDetections returns the detections of the last evaluated frame.
func (s *Server) handleDetections(c *fiber.Ctx) error {
	dets := []detection.Detection{}
	if s.src.Detections != nil {
		if d := s.src.Detections(); d != nil {
			dets = d
		}
	}
	return c.JSON(dets)
}

// handleEvents returns buffered events; ?kind= filters by event kind.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	events := s.Recent()
	kind := c.Query("kind")
	if kind == "" {
		return c.JSON(events)
	}

	filtered := make([]alert.Event, 0, len(events))
	for _, ev := range events {
		if string(ev.Kind) == kind {
			filtered = append(filtered, ev)
		}
	}
	return c.JSON(filtered)
}

// handleEventsWS sends the current status, then streams events until the
// client goes away.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	if err := c.WriteJSON(s.status()); err != nil {
		return
	}

	client, err := s.events.Subscribe(c)
	if err != nil {
		c.Close()
		return
	}
	client.Serve()
}
