package detection

import (
	"image"
	"math"
)

// DistancePolicy turns a bounding box into an ordinal distance proxy.
// Larger boxes are closer. Values are for ranking and rough speech only.
type DistancePolicy interface {
	Estimate(box image.Rectangle, frameWidth int) float64

	// Unit names what the numbers are spoken as.
	Unit() string
}

// BucketPolicy buckets the box-to-frame width ratio into four steps:
// above 0.5 is 0.5 m, above 0.3 is 1 m, above 0.15 is 2 m, otherwise 3 m.
type BucketPolicy struct{}

// Estimate implements DistancePolicy.
func (BucketPolicy) Estimate(box image.Rectangle, frameWidth int) float64 {
	if frameWidth <= 0 {
		return 3
	}
	ratio := float64(box.Dx()) / float64(frameWidth)
	switch {
	case ratio > 0.5:
		return 0.5
	case ratio > 0.3:
		return 1
	case ratio > 0.15:
		return 2
	default:
		return 3
	}
}

// Unit implements DistancePolicy.
func (BucketPolicy) Unit() string { return "meters" }

// DefaultInverseWidthK is the numerator of the inverse-width proxy.
const DefaultInverseWidthK = 1000

// InverseWidthPolicy estimates round(K / max(width_px, 1)).
type InverseWidthPolicy struct {
	K float64
}

// Estimate implements DistancePolicy.
func (p InverseWidthPolicy) Estimate(box image.Rectangle, _ int) float64 {
	k := p.K
	if k <= 0 {
		k = DefaultInverseWidthK
	}
	w := box.Dx()
	if w < 1 {
		w = 1
	}
	return math.Round(k / float64(w))
}

// Unit implements DistancePolicy.
func (InverseWidthPolicy) Unit() string { return "centimeters" }
