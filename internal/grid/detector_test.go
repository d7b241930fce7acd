package grid

import (
	"errors"
	"fmt"
	"image"
	"math"
	"testing"

	"go.viam.com/test"
	"gocv.io/x/gocv"

	"mcr-analyzer/pkg/geometry"
)

const (
	testImageWidth  = 696
	testImageHeight = 520
)

// latticeInterval returns the spot spacing that fits the requested grid
// into the sensor frame with one interval of margin on every side.
func latticeInterval(rowCount, columnCount int) float64 {
	return math.Min(
		float64(testImageHeight)/float64(rowCount+1),
		float64(testImageWidth)/float64(columnCount+1),
	)
}

// gridSpots lays out a synthetic lattice the way chips are imaged: equal
// spacing in both directions and a spot radius of a quarter interval.
func gridSpots(rowCount, columnCount int) []SpotCandidate {
	interval := latticeInterval(rowCount, columnCount)
	spotRadius := interval / 4

	var spots []SpotCandidate
	for i := 0; i < rowCount; i++ {
		y := interval + interval*float64(i)
		for j := 0; j < columnCount; j++ {
			x := interval + interval*float64(j)
			spots = append(spots, SpotCandidate{
				Center: geometry.Position{X: x, Y: y},
				Radius: spotRadius,
			})
		}
	}
	return spots
}

// rotateSpots turns the lattice about its own center so the grid stays
// inside the frame for small angles.
func rotateSpots(spots []SpotCandidate, degrees float64) []SpotCandidate {
	centers := make([]geometry.Position, len(spots))
	for i, s := range spots {
		centers[i] = s.Center
	}
	center := geometry.Centroid(centers)

	sin, cos := math.Sincos(degrees * math.Pi / 180)
	rotated := make([]SpotCandidate, len(spots))
	for i, s := range spots {
		d := s.Center.Sub(center)
		rotated[i] = SpotCandidate{
			Center: geometry.Position{
				X: center.X + d.X*cos - d.Y*sin,
				Y: center.Y + d.X*sin + d.Y*cos,
			},
			Radius: s.Radius,
		}
	}
	return rotated
}

// renderSpots draws the lattice as bright disks on a black frame.
func renderSpots(spots []SpotCandidate) gocv.Mat {
	black := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(0, 0, 0, 0), testImageHeight, testImageWidth, gocv.MatTypeCV8U)
	defer black.Close()
	return drawDisks(black, spots, 0)
}

func TestDetectRecoversGridDimensions(t *testing.T) {
	for _, size := range []Dimensions{
		{Columns: 5, Rows: 5},
		{Columns: 8, Rows: 6},
		{Columns: 12, Rows: 12},
		{Columns: 17, Rows: 9},
		{Columns: 10, Rows: 21},
		{Columns: 26, Rows: 26},
	} {
		t.Run(fmt.Sprintf("%dx%d", size.Columns, size.Rows), func(t *testing.T) {
			img := renderSpots(gridSpots(size.Rows, size.Columns))
			defer img.Close()

			grid, err := Detect(img, DefaultParams())
			test.That(t, err, test.ShouldBeNil)
			test.That(t, grid.Dims, test.ShouldResemble, size)
		})
	}
}

func TestDetectRecoversRotatedGrid(t *testing.T) {
	for _, tc := range []struct {
		size    int
		degrees float64
	}{
		{size: 8, degrees: -5},
		{size: 8, degrees: 3.2},
		{size: 12, degrees: -2.4},
		{size: 12, degrees: 5},
		{size: 16, degrees: -5},
		{size: 16, degrees: 4.1},
	} {
		t.Run(fmt.Sprintf("%dx%d_%+.1fdeg", tc.size, tc.size, tc.degrees), func(t *testing.T) {
			spots := rotateSpots(gridSpots(tc.size, tc.size), tc.degrees)
			img := renderSpots(spots)
			defer img.Close()

			grid, err := Detect(img, DefaultParams())
			test.That(t, err, test.ShouldBeNil)
			test.That(t, grid.Dims.Columns, test.ShouldBeBetweenOrEqual, tc.size-1, tc.size+1)
			test.That(t, grid.Dims.Rows, test.ShouldBeBetweenOrEqual, tc.size-1, tc.size+1)
		})
	}
}

func TestDetectFailsCleanlyOnUniformImages(t *testing.T) {
	for _, fill := range []float64{0, 255} {
		t.Run(fmt.Sprintf("fill_%.0f", fill), func(t *testing.T) {
			img := gocv.NewMatWithSizeFromScalar(
				gocv.NewScalar(fill, 0, 0, 0), testImageHeight, testImageWidth, gocv.MatTypeCV8U)
			defer img.Close()

			_, err := Detect(img, DefaultParams())
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, ErrEmptyCandidateSet), test.ShouldBeTrue)
			test.That(t, err.Error(), test.ShouldContainSubstring, "Spot list by roundness is empty.")
		})
	}
}

func TestDetectIdempotent(t *testing.T) {
	img := renderSpots(gridSpots(10, 14))
	defer img.Close()

	first, err := Detect(img, DefaultParams())
	test.That(t, err, test.ShouldBeNil)
	second, err := Detect(img, DefaultParams())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second, test.ShouldResemble, first)
}

func TestDetectCornerPositions(t *testing.T) {
	interval := latticeInterval(9, 9)
	img := renderSpots(gridSpots(9, 9))
	defer img.Close()

	grid, err := Detect(img, DefaultParams())
	test.That(t, err, test.ShouldBeNil)

	corners := grid.Corners.Positions()
	test.That(t, corners, test.ShouldHaveLength, 4)
	for i := 0; i < len(corners); i++ {
		for j := i + 1; j < len(corners); j++ {
			test.That(t, corners[i], test.ShouldNotResemble, corners[j])
		}
	}

	// Corners sit on the outermost spot centers of the lattice.
	first := geometry.Position{X: interval, Y: interval}
	last := geometry.Position{X: 9 * interval, Y: 9 * interval}
	test.That(t, grid.Corners.TopLeft.Distance(first), test.ShouldBeLessThan, 3)
	test.That(t, grid.Corners.BottomRight.Distance(last), test.ShouldBeLessThan, 3)
	test.That(t, grid.Corners.TopLeft.X, test.ShouldBeLessThan, grid.Corners.TopRight.X)
	test.That(t, grid.Corners.TopLeft.Y, test.ShouldBeLessThan, grid.Corners.BottomLeft.Y)
}

func TestDetectReportsReferenceRadius(t *testing.T) {
	img := renderSpots(gridSpots(12, 12))
	defer img.Close()

	grid, err := Detect(img, DefaultParams())
	test.That(t, err, test.ShouldBeNil)

	// Spot radius is a quarter of the 40px interval, enlarged by half.
	test.That(t, grid.ReferenceRadius, test.ShouldBeBetweenOrEqual, 14, 16)
	test.That(t, grid.ThresholdValue, test.ShouldBeGreaterThan, 0)
	test.That(t, grid.ThresholdValue, test.ShouldBeLessThan, 255)
}

func TestDetectWithFixedThreshold(t *testing.T) {
	img := renderSpots(gridSpots(8, 8))
	defer img.Close()

	grid, err := Detect(img, DefaultParams().WithFixedThreshold(128))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, grid.ThresholdValue, test.ShouldEqual, 128)
	test.That(t, grid.Dims, test.ShouldResemble, Dimensions{Columns: 8, Rows: 8})
}

func TestDetectWithTriangleStrategy(t *testing.T) {
	img := renderSpots(gridSpots(9, 13))
	defer img.Close()

	params := DefaultParams()
	params.GlobalStrategy = StrategyTriangle
	grid, err := Detect(img, params)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, grid.Dims, test.ShouldResemble, Dimensions{Columns: 13, Rows: 9})
}

func TestDetectWithNoiseResistantParams(t *testing.T) {
	img := renderSpots(gridSpots(7, 11))
	defer img.Close()

	grid, err := Detect(img, NoiseResistantParams())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, grid.Dims, test.ShouldResemble, Dimensions{Columns: 11, Rows: 7})
}

func TestDetectWithReferenceSpotDiameter(t *testing.T) {
	img := renderSpots(gridSpots(12, 12))
	defer img.Close()

	params := DefaultParams()
	params = params.WithReferenceSpotDiameter(28)
	grid, err := Detect(img, params)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, grid.Dims, test.ShouldResemble, Dimensions{Columns: 12, Rows: 12})
}

func TestDetectImageBridge(t *testing.T) {
	img := renderSpots(gridSpots(6, 6))
	defer img.Close()

	converted, err := img.ToImage()
	test.That(t, err, test.ShouldBeNil)
	gray, ok := converted.(*image.Gray)
	test.That(t, ok, test.ShouldBeTrue)

	grid, err := DetectImage(gray, DefaultParams())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, grid.Dims, test.ShouldResemble, Dimensions{Columns: 6, Rows: 6})
}
