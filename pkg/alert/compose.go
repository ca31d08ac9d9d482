package alert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/teslashibe/go-pathsense/pkg/detection"
)

// SelectClosest returns the detection with the smallest distance proxy.
// Ties go to the earliest detection. ok is false for an empty list.
func SelectClosest(dets []detection.Detection) (closest detection.Detection, ok bool) {
	if len(dets) == 0 {
		return detection.Detection{}, false
	}
	closest = dets[0]
	for _, d := range dets[1:] {
		if d.Distance < closest.Distance {
			closest = d
		}
	}
	return closest, true
}

// Compose renders the ambient alert for d, e.g. "chair ahead, about 1 meters".
func Compose(d detection.Detection) string {
	return fmt.Sprintf("%s ahead, about %s meters", d.Label, formatDistance(d.Distance))
}

// formatDistance prints 0.5 as "0.5" and whole numbers without decimals.
func formatDistance(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}
