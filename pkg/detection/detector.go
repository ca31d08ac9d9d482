package detection

import (
	"fmt"

	"github.com/teslashibe/go-pathsense/pkg/frame"
)

// DefaultConfidence is the minimum confidence kept by Detect.
const DefaultConfidence = 0.5

// Detector runs a Backend and derives direction and distance.
type Detector struct {
	backend   Backend
	tolerance Tolerance
	distance  DistancePolicy
}

// Option configures a Detector.
type Option func(*Detector)

// WithTolerance sets the center band.
func WithTolerance(t Tolerance) Option {
	return func(d *Detector) { d.tolerance = t }
}

// WithDistancePolicy sets the distance proxy.
func WithDistancePolicy(p DistancePolicy) Option {
	return func(d *Detector) { d.distance = p }
}

// NewDetector wraps backend. Defaults: 50 px fixed tolerance, bucket distances.
func NewDetector(backend Backend, opts ...Option) *Detector {
	d := &Detector{
		backend:   backend,
		tolerance: FixedTolerance(DefaultCenterTolerance),
		distance:  BucketPolicy{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DistanceUnit reports the unit of Detection.Distance.
func (d *Detector) DistanceUnit() string {
	return d.distance.Unit()
}

// Detect returns detections with confidence >= threshold, in backend order.
func (d *Detector) Detect(f frame.Frame, threshold float64) ([]Detection, error) {
	if f.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}

	candidates, err := d.backend.Infer(f)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	tol := d.tolerance(f.Width)
	out := make([]Detection, 0, len(candidates))
	for _, c := range candidates {
		if c.Confidence < threshold {
			continue
		}
		det := Detection{
			Label:      c.Label,
			Confidence: c.Confidence,
			Box:        c.Box,
		}
		det.Direction = ClassifyDirection(det.CenterX(), f.Width, tol)
		det.Distance = d.distance.Estimate(c.Box, f.Width)
		out = append(out, det)
	}
	return out, nil
}

// Close releases the backend.
func (d *Detector) Close() error {
	return d.backend.Close()
}
