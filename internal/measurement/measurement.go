// Package measurement samples a measurement image on its grid and
// reduces every spot to a value with per-column replicate validation.
package measurement

import (
	"math"

	"mcr-analyzer/internal/grid"
	"mcr-analyzer/internal/netpbm"
	"mcr-analyzer/internal/spot"
	"mcr-analyzer/pkg/geometry"
)

// Results holds per-spot values and their replicate validity, row-major.
type Results struct {
	Values [][]float64
	Valid  [][]bool
}

// SpotCenters interpolates the spot centers of a dims-sized grid between
// its four corner positions. The corners are themselves spot centers, so
// a 1x1 grid collapses onto the top-left corner.
func SpotCenters(corners grid.CornerPositions, dims grid.Dimensions) [][]geometry.Position {
	centers := make([][]geometry.Position, dims.Rows)
	for row := 0; row < dims.Rows; row++ {
		rowFraction := 0.0
		if dims.Rows > 1 {
			rowFraction = float64(row) / float64(dims.Rows-1)
		}
		left := corners.TopLeft.Add(corners.BottomLeft.Sub(corners.TopLeft).Scale(rowFraction))
		right := corners.TopRight.Add(corners.BottomRight.Sub(corners.TopRight).Scale(rowFraction))

		centers[row] = make([]geometry.Position, dims.Columns)
		for column := 0; column < dims.Columns; column++ {
			columnFraction := 0.0
			if dims.Columns > 1 {
				columnFraction = float64(column) / float64(dims.Columns-1)
			}
			centers[row][column] = left.Add(right.Sub(left).Scale(columnFraction))
		}
	}
	return centers
}

// Process samples img at every spot of the grid described by corners and
// dims. Each spot is a spotSize square around its center, reduced to the
// mean of its brightest raw samples. Replicates of an analyte run down a
// column, so validation groups column-wise.
func Process(img *netpbm.Image, corners grid.CornerPositions, dims grid.Dimensions, spotSize int) Results {
	centers := SpotCenters(corners, dims)

	values := make([][]float64, dims.Rows)
	valid := make([][]bool, dims.Rows)
	for row := 0; row < dims.Rows; row++ {
		values[row] = make([]float64, dims.Columns)
		valid[row] = make([]bool, dims.Columns)
		for column := 0; column < dims.Columns; column++ {
			values[row][column] = spot.Value(tileSamples(img, centers[row][column], spotSize))
		}
	}

	replicates := make([]float64, dims.Rows)
	for column := 0; column < dims.Columns; column++ {
		for row := 0; row < dims.Rows; row++ {
			replicates[row] = values[row][column]
		}
		flags := spot.ValidateReplicates(replicates, spot.DefaultCutoff)
		for row := 0; row < dims.Rows; row++ {
			valid[row][column] = flags[row]
		}
	}

	return Results{Values: values, Valid: valid}
}

// tileSamples collects the raw samples of the spotSize square centered
// on p, clipped to the image bounds.
func tileSamples(img *netpbm.Image, p geometry.Position, spotSize int) []uint16 {
	half := float64(spotSize) / 2
	tile := geometry.RectInt{
		X:      int(math.Round(p.X - half)),
		Y:      int(math.Round(p.Y - half)),
		Width:  spotSize,
		Height: spotSize,
	}.Clip(img.Width, img.Height)

	samples := make([]uint16, 0, tile.Width*tile.Height)
	for y := tile.Y; y < tile.Y+tile.Height; y++ {
		for x := tile.X; x < tile.X+tile.Width; x++ {
			samples = append(samples, img.At(x, y))
		}
	}
	return samples
}
