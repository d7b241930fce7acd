// Package spot reduces raw image samples to spot values the way the MCR
// device evaluates them, and flags which replicates of a measurement
// column agree with each other.
package spot

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BrightestPixelCount is how many of the brightest pixels are averaged
// into a spot value.
const BrightestPixelCount = 10

// DefaultCutoff is the relative deviation from the consensus mean below
// which a replicate still counts as valid.
const DefaultCutoff = 0.1

// Value reduces a spot's raw samples to the mean of its brightest
// pixels. Returns NaN when no samples are given.
func Value(samples []uint16) float64 {
	if len(samples) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(samples))
	for i, s := range samples {
		sorted[i] = float64(s)
	}
	sort.Float64s(sorted)

	if len(sorted) > BrightestPixelCount {
		sorted = sorted[len(sorted)-BrightestPixelCount:]
	}
	return stat.Mean(sorted, nil)
}

// ValidateReplicates reports which values belong to the consensus group.
// The tightest window of three values anchors the group mean, and every
// further value within cutoff of that mean joins the group. Groups of
// three or fewer are accepted as they stand.
func ValidateReplicates(values []float64, cutoff float64) []bool {
	valid := make([]bool, len(values))
	if len(values) <= 3 {
		for i := range valid {
			valid[i] = true
		}
		return valid
	}

	sorted := append([]float64(nil), values...)
	indices := make([]int, len(values))
	floats.Argsort(sorted, indices)

	start := 0
	minDelta := sorted[2] - sorted[0]
	for i := 1; i+2 < len(sorted); i++ {
		if delta := sorted[i+2] - sorted[i]; delta < minDelta {
			start = i
			minDelta = delta
		}
	}

	mean := stat.Mean(sorted[start:start+3], nil)
	for _, idx := range indices[start : start+3] {
		valid[idx] = true
	}

	// Values outside the window join when close enough to its mean.
	for i, idx := range indices {
		if i >= start && i < start+3 {
			continue
		}
		if math.Abs(values[idx]-mean) < cutoff*mean {
			valid[idx] = true
		}
	}
	return valid
}
