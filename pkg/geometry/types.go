// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"math"
)

// Position represents a 2D position with floating-point coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition creates a new Position.
func NewPosition(x, y float64) Position {
	return Position{X: x, Y: y}
}

// Distance returns the Euclidean distance to another position.
func (p Position) Distance(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Add returns the sum of two positions.
func (p Position) Add(other Position) Position {
	return Position{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two positions.
func (p Position) Sub(other Position) Position {
	return Position{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the position scaled by a factor.
func (p Position) Scale(factor float64) Position {
	return Position{X: p.X * factor, Y: p.Y * factor}
}

// Midpoint returns the point halfway between two positions.
func Midpoint(a, b Position) Position {
	return Position{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Centroid computes the centroid (average position) of a set of positions.
func Centroid(points []Position) Position {
	if len(points) == 0 {
		return Position{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Position{X: sumX / n, Y: sumY / n}
}

// RectInt represents a rectangle with integer pixel coordinates.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRectInt creates a new RectInt.
func NewRectInt(x, y, width, height int) RectInt {
	return RectInt{X: x, Y: y, Width: width, Height: height}
}

// Center returns the center of the rectangle.
func (r RectInt) Center() Position {
	return Position{X: float64(r.X) + float64(r.Width)/2, Y: float64(r.Y) + float64(r.Height)/2}
}

// Contains returns true if the position is inside the rectangle.
func (r RectInt) Contains(p Position) bool {
	return p.X >= float64(r.X) && p.X <= float64(r.X+r.Width) &&
		p.Y >= float64(r.Y) && p.Y <= float64(r.Y+r.Height)
}

// Clip returns the rectangle clipped to an image of the given dimensions.
// The result may have zero width or height if the rectangle lies entirely
// outside the image.
func (r RectInt) Clip(width, height int) RectInt {
	x0 := r.X
	y0 := r.Y
	x1 := r.X + r.Width
	y1 := r.Y + r.Height
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > width {
		x1 = width
	}
	if y1 > height {
		y1 = height
	}
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return RectInt{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// BoundingBox computes the axis-aligned bounding box of a set of positions
// as min corner and max corner.
func BoundingBox(points []Position) (Position, Position) {
	if len(points) == 0 {
		return Position{}, Position{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Position{X: minX, Y: minY}, Position{X: maxX, Y: maxY}
}

// GenerateCirclePoints generates n evenly-spaced points around a circle.
func GenerateCirclePoints(centerX, centerY, radius float64, n int) []Position {
	points := make([]Position, n)
	for i := 0; i < n; i++ {
		angle := float64(i) * 2.0 * math.Pi / float64(n)
		points[i] = Position{
			X: centerX + radius*math.Cos(angle),
			Y: centerY + radius*math.Sin(angle),
		}
	}
	return points
}
