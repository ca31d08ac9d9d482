package detection

// DefaultCenterTolerance is the half-width, in pixels, of the band around
// the frame center that counts as straight ahead.
const DefaultCenterTolerance = 50

// Tolerance yields the center band half-width for a given frame width.
type Tolerance func(frameWidth int) float64

// FixedTolerance uses the same pixel tolerance at every resolution.
func FixedTolerance(px float64) Tolerance {
	return func(int) float64 { return px }
}

// ProportionalTolerance scales the tolerance with the frame width.
// A fraction of 0.078 gives about 50 px at 640 px.
func ProportionalTolerance(fraction float64) Tolerance {
	return func(w int) float64 { return fraction * float64(w) }
}

// ClassifyDirection places a box center cx within a frame of the given width.
// Offsets strictly inside the tolerance are Center.
func ClassifyDirection(cx float64, frameWidth int, tolerance float64) Direction {
	mid := float64(frameWidth) / 2
	offset := cx - mid
	if offset < 0 {
		if -offset < tolerance {
			return Center
		}
		return Left
	}
	if offset < tolerance {
		return Center
	}
	return Right
}
