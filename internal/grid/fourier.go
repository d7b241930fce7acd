package grid

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"mcr-analyzer/pkg/geometry"
)

// foregroundAndBackgroundColor derives drawing colors from an image: the
// background is the most frequent pixel value, the foreground its 8-bit
// complement. On a threshold image this recovers the original polarity.
func foregroundAndBackgroundColor(img gocv.Mat) (foreground, background int) {
	var hist [maxPixelValue + 1]int
	for _, b := range img.ToBytes() {
		hist[b]++
	}

	for v, count := range hist {
		if count > hist[background] {
			background = v
		}
	}
	return maxPixelValue - background, background
}

// drawDisks renders the spot centers as filled disks of the given radius on
// a fresh canvas with the colors of the reference image. A radius of zero
// draws each spot at its own detected radius. The disk image carries the
// spot arrangement as a pure lattice signal, free of intensity noise. The
// caller owns the returned Mat.
func drawDisks(like gocv.Mat, spots []SpotCandidate, radius int) gocv.Mat {
	foreground, background := foregroundAndBackgroundColor(like)

	canvas := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(background), 0, 0, 0),
		like.Rows(), like.Cols(), gocv.MatTypeCV8U,
	)

	fg := color.RGBA{uint8(foreground), uint8(foreground), uint8(foreground), 0}
	for _, s := range spots {
		r := radius
		if r <= 0 {
			r = int(math.Round(s.Radius))
		}
		center := image.Pt(int(math.Round(s.Center.X)), int(math.Round(s.Center.Y)))
		gocv.Circle(&canvas, center, r, fg, -1)
	}
	return canvas
}

// fourierMagnitude computes the centered 2-D DFT magnitude of an 8-bit
// image, linearly rescaled to the 8-bit range by its maximum. The caller
// owns the returned Mat.
func fourierMagnitude(img gocv.Mat) gocv.Mat {
	samples := gocv.NewMat()
	defer samples.Close()
	img.ConvertTo(&samples, gocv.MatTypeCV64F)

	freq := gocv.NewMat()
	defer freq.Close()
	gocv.DFT(samples, &freq, gocv.DftComplexOutput)

	planes := gocv.Split(freq)
	magnitude := gocv.NewMat()
	gocv.Magnitude(planes[0], planes[1], &magnitude)
	for i := range planes {
		planes[i].Close()
	}

	// Trim to even dimensions so the quadrant swap below is exact.
	even := magnitude.Region(image.Rect(0, 0, magnitude.Cols()&^1, magnitude.Rows()&^1))
	shifted := fftShift(even)
	even.Close()
	magnitude.Close()
	defer shifted.Close()

	_, maxVal, _, _ := gocv.MinMaxLoc(shifted)

	out := gocv.NewMat()
	if maxVal > 0 {
		shifted.ConvertToWithParams(&out, gocv.MatTypeCV8U, float32(maxPixelValue)/maxVal, 0)
	} else {
		shifted.ConvertTo(&out, gocv.MatTypeCV8U)
	}
	return out
}

// fftShift moves the zero-frequency component to the image center by
// swapping diagonally opposite quadrants. Dimensions must be even.
func fftShift(m gocv.Mat) gocv.Mat {
	cx, cy := m.Cols()/2, m.Rows()/2

	dst := m.Clone()
	q0 := dst.Region(image.Rect(0, 0, cx, cy))
	q1 := dst.Region(image.Rect(cx, 0, 2*cx, cy))
	q2 := dst.Region(image.Rect(0, cy, cx, 2*cy))
	q3 := dst.Region(image.Rect(cx, cy, 2*cx, 2*cy))
	defer q0.Close()
	defer q1.Close()
	defer q2.Close()
	defer q3.Close()

	tmp := gocv.NewMat()
	defer tmp.Close()

	q0.CopyTo(&tmp)
	q3.CopyTo(&q0)
	tmp.CopyTo(&q3)

	q1.CopyTo(&tmp)
	q2.CopyTo(&q1)
	tmp.CopyTo(&q2)

	return dst
}

// maximumFilter replaces each pixel with the maximum of its size×size
// neighborhood, merging smeared frequency peaks into single blobs. A size
// of one leaves the image unchanged. The caller owns the returned Mat.
func maximumFilter(img gocv.Mat, size int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size))
	defer kernel.Close()

	dst := gocv.NewMat()
	gocv.Dilate(img, &dst, kernel)
	return dst
}

// fivePeakCentroids descends a global threshold from the magnitude image's
// maximum toward zero until the binarized image decomposes into exactly
// five blobs: the four periodicity peaks plus the central DC peak. Once
// more than five blobs appear, no lower threshold can separate exactly
// five, so the search aborts.
func fivePeakCentroids(magnitude gocv.Mat) ([]geometry.Position, error) {
	_, maxVal, _, _ := gocv.MinMaxLoc(magnitude)

	found := 0
	for level := int(maxVal); level >= 1; level-- {
		_, binary := fixedThreshold(magnitude, level)
		contours := findContours(binary)
		binary.Close()

		found = contours.Size()
		if found == expectedPeakCount {
			centroids := make([]geometry.Position, found)
			for i := range centroids {
				centroids[i] = contourCentroid(contours.At(i))
			}
			contours.Close()
			return centroids, nil
		}
		contours.Close()

		if found > expectedPeakCount {
			break
		}
	}

	return nil, fmt.Errorf("%w: expected %d, found %d", ErrPeakCountMismatch, expectedPeakCount, found)
}

// contourCentroid computes a blob's centroid from its polygon moments. A
// degenerate blob falls back to its first contour point.
func contourCentroid(contour gocv.PointVector) geometry.Position {
	pts := contour.ToPoints()
	vertices := make([]geometry.Position, len(pts))
	for i, p := range pts {
		vertices[i] = geometry.Position{X: float64(p.X), Y: float64(p.Y)}
	}
	return geometry.PolygonCentroid(vertices)
}

// boundaryPeaks identifies the leftmost, rightmost, topmost and bottommost
// peak centroids by linear scan. The DC peak is implicitly excluded since
// its coordinates sit between the others. Coinciding boundary peaks mean
// the resolution cannot separate the periodicity signal.
func boundaryPeaks(centroids []geometry.Position, width, height int) (BoundaryPositions, error) {
	xMin, xMax := float64(width), 0.0
	yMin, yMax := float64(height), 0.0

	var b BoundaryPositions
	for _, c := range centroids {
		if c.X < xMin {
			xMin = c.X
			b.Left = c
		}
		if c.X > xMax {
			xMax = c.X
			b.Right = c
		}
		if c.Y < yMin {
			yMin = c.Y
			b.Top = c
		}
		if c.Y > yMax {
			yMax = c.Y
			b.Bottom = c
		}
	}

	if !b.allUnique() {
		return BoundaryPositions{}, fmt.Errorf("%w: %v", ErrNonUniqueBoundaryPeaks, b.positions())
	}
	return b, nil
}

// intervalColumnAndRow converts the separation of opposite frequency peaks
// into spatial grid spacing: interval = length / frequency, where the
// frequency is half the peak distance.
func intervalColumnAndRow(width, height int, b BoundaryPositions) (intervalColumn, intervalRow float64) {
	intervalColumn = float64(width) / (b.Left.Distance(b.Right) / 2)
	intervalRow = float64(height) / (b.Top.Distance(b.Bottom) / 2)
	return intervalColumn, intervalRow
}

// spatialFrequency converts a spatial interval back to its frequency index.
func spatialFrequency(totalLength, interval float64) int {
	return int(math.Round(totalLength / interval))
}

// crossLikePosition validates the arrangement of the boundary peaks around
// the DC peak:
//
//	        top
//	left     +     right
//	       bottom
//
// The midpoints of the two pairs must nearly coincide, the spot diameter
// must fit within the derived spacing, and the two spacings must be within
// a factor of two of each other.
func crossLikePosition(referenceSpotDiameter float64, b BoundaryPositions, intervalColumn, intervalRow float64) bool {
	midLR := geometry.Midpoint(b.Left, b.Right)
	midTB := geometry.Midpoint(b.Top, b.Bottom)

	return midLR.Distance(midTB) < crossAllowedError &&
		referenceSpotDiameter < math.Min(intervalColumn, intervalRow) &&
		intervalColumn/intervalRatioBound < intervalRow &&
		intervalRow < intervalColumn*intervalRatioBound
}
