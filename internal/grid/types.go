// Package grid locates the regular lattice of circular reaction spots in an
// MCR result image. Given a normalized 8-bit grayscale image it determines
// the grid's column and row counts, a reference spot radius, and the
// positions of the four corner spots, without prior knowledge of the grid's
// orientation or spacing.
//
// The pipeline thresholds the image, keeps circle-like blobs, renders the
// surviving spot centers as uniform disks, and reads the lattice spacing off
// the peaks of the disk image's Fourier magnitude. The corner spots are then
// recovered by projecting every candidate onto the rotated grid axes.
package grid

import (
	"mcr-analyzer/pkg/geometry"
)

// SpotCandidate is a single circle-like blob detection: the center of its
// minimal enclosing circle and that circle's radius in pixels.
type SpotCandidate struct {
	Center geometry.Position
	Radius float64
}

// BoundaryPositions identifies the extreme member of a point set in each of
// the four cardinal directions.
type BoundaryPositions struct {
	Left   geometry.Position
	Right  geometry.Position
	Top    geometry.Position
	Bottom geometry.Position
}

// positions returns the members in left, right, top, bottom order.
func (b BoundaryPositions) positions() []geometry.Position {
	return []geometry.Position{b.Left, b.Right, b.Top, b.Bottom}
}

// allUnique reports whether the four boundary members are pairwise distinct.
func (b BoundaryPositions) allUnique() bool {
	ps := b.positions()
	for i := 0; i < len(ps); i++ {
		for j := i + 1; j < len(ps); j++ {
			if ps[i] == ps[j] {
				return false
			}
		}
	}
	return true
}

// CornerPositions holds the centers of the four outermost spots of a
// detected grid. These anchor the reconstruction of the full spot layout.
type CornerPositions struct {
	TopLeft     geometry.Position `json:"top_left"`
	TopRight    geometry.Position `json:"top_right"`
	BottomRight geometry.Position `json:"bottom_right"`
	BottomLeft  geometry.Position `json:"bottom_left"`
}

// Positions returns the corners in top-left, top-right, bottom-right,
// bottom-left order.
func (c CornerPositions) Positions() []geometry.Position {
	return []geometry.Position{c.TopLeft, c.TopRight, c.BottomRight, c.BottomLeft}
}

// Dimensions is the size of a detected grid in whole spots.
type Dimensions struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// Grid is the result of a successful detection.
type Grid struct {
	// ThresholdValue is the global threshold that separated spots from
	// background, as computed by Otsu's method or fixed by the caller.
	ThresholdValue int

	// ReferenceRadius is the robust spot radius estimate in pixels. The
	// spot size persisted with a measurement is twice this value.
	ReferenceRadius int

	Dims    Dimensions
	Corners CornerPositions
}
