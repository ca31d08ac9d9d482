// Package detection turns camera frames into labeled, localized obstacles
// with a coarse direction and distance.
package detection

import (
	"image"

	"github.com/teslashibe/go-pathsense/pkg/frame"
)

// Direction is the horizontal position of an object relative to the user.
type Direction string

const (
	Left   Direction = "left"
	Center Direction = "center"
	Right  Direction = "right"
)

// Phrase returns the spoken form used in scene descriptions.
func (d Direction) Phrase() string {
	switch d {
	case Left:
		return "to your left"
	case Right:
		return "to your right"
	default:
		return "right in front of you"
	}
}

// Candidate is a raw backend result before heuristics are applied.
type Candidate struct {
	Label      string
	Confidence float64
	Box        image.Rectangle // pixel corners (x1,y1)-(x2,y2)
}

// Detection is one recognized object in one frame.
type Detection struct {
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
	Direction  Direction       `json:"direction"`
	Distance   float64         `json:"distance"`
}

// CenterX returns the horizontal center of the bounding box.
func (d Detection) CenterX() float64 {
	return float64(d.Box.Min.X+d.Box.Max.X) / 2
}

// Width returns the bounding box width in pixels.
func (d Detection) Width() int {
	return d.Box.Dx()
}

// Backend is a pluggable recognition model.
type Backend interface {
	// Infer returns candidates in model order.
	Infer(f frame.Frame) ([]Candidate, error)

	// Close releases model resources.
	Close() error
}
