package grid

import (
	"math"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"mcr-analyzer/pkg/geometry"
)

// findContours extracts the external contours of a binary image. Holes are
// ignored. The caller must Close the result.
func findContours(binary gocv.Mat) gocv.PointsVector {
	return gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
}

// spotCandidates extracts circle-like blobs from a threshold image. Each
// accepted contour yields its minimal enclosing circle. Returns nil when no
// contour passes the roundness filter.
func spotCandidates(binary gocv.Mat) []SpotCandidate {
	contours := findContours(binary)
	defer contours.Close()

	var spots []SpotCandidate
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		// Zero perimeter means a degenerate contour.
		perimeter := gocv.ArcLength(contour, true)
		if perimeter == 0 {
			continue
		}

		area := gocv.ContourArea(contour)
		if !isCircleLike(perimeter, area) {
			continue
		}

		x, y, radius := gocv.MinEnclosingCircle(contour)
		spots = append(spots, SpotCandidate{
			Center: geometry.Position{X: float64(x), Y: float64(y)},
			Radius: float64(radius),
		})
	}
	return spots
}

// circleArea returns the area of a circle with the given radius.
func circleArea(radius float64) float64 {
	return math.Pi * radius * radius
}

// roundness is the isoperimetric ratio 4πA/P²: 1 for a perfect circle,
// ~0.785 for a square, approaching 0 for elongated shapes.
func roundness(perimeter, area float64) float64 {
	return 4 * math.Pi * area / (perimeter * perimeter)
}

// roundnessThreshold returns the acceptance cut for a contour of the given
// area.
func roundnessThreshold(area float64) float64 {
	switch {
	case area < circleArea(roundnessSmallAreaRadius):
		return roundnessThresholdSmall
	case area < circleArea(roundnessMediumAreaRadius):
		return roundnessThresholdMedium
	default:
		return roundnessThresholdLarge
	}
}

// isCircleLike reports whether a contour with the given perimeter and area
// passes the roundness filter.
func isCircleLike(perimeter, area float64) bool {
	return roundness(perimeter, area) > roundnessThreshold(area)
}

// referenceSpotRadius derives a robust spot radius estimate from the
// candidate set: the 95th-percentile radius widened by half. The quantile
// tracks the true spot size while damping a single oversized false positive;
// the widening gives drawn disks headroom to cover true spot footprints
// without merging neighbors.
func referenceSpotRadius(spots []SpotCandidate) int {
	radii := make([]float64, len(spots))
	for i, s := range spots {
		radii[i] = s.Radius
	}
	sort.Float64s(radii)

	q := stat.Quantile(referenceRadiusQuantile, stat.Empirical, radii, nil)
	return int(math.Round(q * referenceRadiusResize))
}

// filterRadiusOutliers drops candidates whose radius exceeds twice the
// reference radius. Anything that large is a merged blob or noise, not a
// spot.
func filterRadiusOutliers(spots []SpotCandidate, referenceRadius int) []SpotCandidate {
	kept := make([]SpotCandidate, 0, len(spots))
	for _, s := range spots {
		if s.Radius <= float64(referenceRadius)*outlierRadiusFactor {
			kept = append(kept, s)
		}
	}
	return kept
}

// imageIsAlmostEmpty reports whether a threshold image decomposed into so
// many blobs that it must be noise from a near-empty source image.
func imageIsAlmostEmpty(binary gocv.Mat) bool {
	contours := findContours(binary)
	defer contours.Close()
	return contours.Size() > almostEmptyContourLimit
}
