package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-pathsense/pkg/detection"
)

// EventKind classifies engine events.
type EventKind string

const (
	EventAlert      EventKind = "alert"
	EventSuppressed EventKind = "suppressed"
	EventSilent     EventKind = "silent"
	EventQuery      EventKind = "query"
	EventAnswer     EventKind = "answer"
	EventError      EventKind = "error"
)

// Event describes one engine decision.
type Event struct {
	ID         string                `json:"id"`
	Time       time.Time             `json:"time"`
	Kind       EventKind             `json:"kind"`
	Text       string                `json:"text,omitempty"`
	Detections []detection.Detection `json:"detections,omitempty"`
	Error      string                `json:"error,omitempty"`
}

func newEvent(now time.Time, kind EventKind, text string) Event {
	return Event{ID: uuid.NewString(), Time: now, Kind: kind, Text: text}
}
