package grid

import (
	"math"

	"mcr-analyzer/pkg/geometry"
)

// gridPosition reconstructs the corner spots and grid size from the
// validated boundary peaks and the full candidate set.
func gridPosition(spots []SpotCandidate, peaks BoundaryPositions, intervalColumn, intervalRow float64) (CornerPositions, Dimensions) {
	columnSlope, rowSlope := rotationSlopes(peaks)
	boundary := spotsOnBoundary(spots, columnSlope, rowSlope)
	cs := corners(columnSlope, rowSlope, boundary)
	dims := columnAndRowCount(intervalColumn, intervalRow, cs)
	return cs, dims
}

// divideOrInfinity returns the quotient, mapping division by zero to a
// signed infinity.
func divideOrInfinity(numerator, denominator float64) float64 {
	if denominator == 0 {
		return numerator * math.Inf(1)
	}
	return numerator / denominator
}

// rotationSlopes derives the slopes of the grid's column and row lines from
// the boundary peaks. Each slope is the negative reciprocal of the normal
// through the corresponding peak pair, so an axis-aligned grid yields an
// infinite column slope and a zero row slope.
func rotationSlopes(b BoundaryPositions) (columnSlope, rowSlope float64) {
	horizontalNormal := divideOrInfinity(b.Left.Y-b.Right.Y, b.Left.X-b.Right.X)
	verticalNormal := divideOrInfinity(b.Top.Y-b.Bottom.Y, b.Top.X-b.Bottom.X)

	columnSlope = divideOrInfinity(-1, horizontalNormal)
	rowSlope = divideOrInfinity(-1, verticalNormal)
	return columnSlope, rowSlope
}

// spotsOnBoundary finds the four outermost spot centers by projecting every
// candidate onto the rotated grid axes. A spot's y-intercept against the
// row direction orders it vertically, its x-intercept against the column
// direction horizontally; the extremes are the boundary spots.
func spotsOnBoundary(spots []SpotCandidate, columnSlope, rowSlope float64) BoundaryPositions {
	xInterceptMin, xInterceptMax := math.Inf(1), math.Inf(-1)
	yInterceptMin, yInterceptMax := math.Inf(1), math.Inf(-1)

	var b BoundaryPositions
	for _, s := range spots {
		// b = y - a·x
		yIntercept := s.Center.Y - rowSlope*s.Center.X

		// -b/a = x - (1/a)·y
		xIntercept := s.Center.X - (1/columnSlope)*s.Center.Y

		if xIntercept < xInterceptMin {
			xInterceptMin = xIntercept
			b.Left = s.Center
		}
		if xIntercept > xInterceptMax {
			xInterceptMax = xIntercept
			b.Right = s.Center
		}
		if yIntercept < yInterceptMin {
			yInterceptMin = yIntercept
			b.Top = s.Center
		}
		if yIntercept > yInterceptMax {
			yInterceptMax = yIntercept
			b.Bottom = s.Center
		}
	}
	return b
}

// corners intersects, for each corner, the row line through a row-boundary
// spot with the column line through a column-boundary spot.
func corners(columnSlope, rowSlope float64, b BoundaryPositions) CornerPositions {
	return CornerPositions{
		TopLeft:     intersectLines(rowSlope, columnSlope, b.Top, b.Left),
		TopRight:    intersectLines(rowSlope, columnSlope, b.Top, b.Right),
		BottomRight: intersectLines(rowSlope, columnSlope, b.Bottom, b.Right),
		BottomLeft:  intersectLines(rowSlope, columnSlope, b.Bottom, b.Left),
	}
}

// intersectLines intersects the line of slope a1 through p1 with the line
// of slope a2 through p2. Vertical lines are solved by fixing x first.
func intersectLines(a1, a2 float64, p1, p2 geometry.Position) geometry.Position {
	b1 := p1.Y - a1*p1.X
	b2 := p2.Y - a2*p2.X

	var x, y float64
	switch {
	case math.IsInf(a1, 0):
		x = p1.X
		y = a2*x + b2
	case math.IsInf(a2, 0):
		x = p2.X
		y = a1*x + b1
	default:
		x = (b2 - b1) / (a1 - a2)
		y = (a2*b1 - a1*b2) / (a2 - a1)
	}
	return geometry.Position{X: x, Y: y}
}

// columnAndRowCount derives the grid size from the corner spans divided by
// the spacing, counted inclusively.
func columnAndRowCount(intervalColumn, intervalRow float64, c CornerPositions) Dimensions {
	width := c.TopLeft.Distance(c.TopRight)
	height := c.TopLeft.Distance(c.BottomLeft)

	return Dimensions{
		Columns: int(math.Round(width/intervalColumn)) + 1,
		Rows:    int(math.Round(height/intervalRow)) + 1,
	}
}
