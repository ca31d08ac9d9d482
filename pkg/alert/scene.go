package alert

import (
	"encoding/json"
	"strings"

	"github.com/teslashibe/go-pathsense/pkg/detection"
)

// SceneObject is one detected object as described to the answer model.
type SceneObject struct {
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Distance  int    `json:"distance"`
}

// Scene is the ordered list of objects in view when a question was asked.
type Scene []SceneObject

// NewScene describes every detection, in detection order. Distances are
// re-estimated with policy from each box and the frame width.
func NewScene(dets []detection.Detection, frameWidth int, policy detection.DistancePolicy) Scene {
	scene := make(Scene, 0, len(dets))
	for _, d := range dets {
		scene = append(scene, SceneObject{
			Name:      strings.ToLower(d.Label),
			Direction: d.Direction.Phrase(),
			Distance:  int(policy.Estimate(d.Box, frameWidth)),
		})
	}
	return scene
}

// JSON serializes the scene. An empty scene is "[]".
func (s Scene) JSON() string {
	if len(s) == 0 {
		return "[]"
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "[]"
	}
	return string(b)
}
