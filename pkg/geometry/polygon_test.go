package geometry

import (
	"testing"

	"go.viam.com/test"
)

func TestSignedArea(t *testing.T) {
	// Counter-clockwise unit square.
	square := []Position{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	test.That(t, SignedArea(square), test.ShouldEqual, 1)

	// Clockwise winding flips the sign.
	reversed := []Position{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	test.That(t, SignedArea(reversed), test.ShouldEqual, -1)

	test.That(t, SignedArea([]Position{{X: 1, Y: 1}, {X: 2, Y: 2}}), test.ShouldEqual, 0)
}

func TestPolygonCentroidSquare(t *testing.T) {
	square := []Position{{X: 2, Y: 2}, {X: 6, Y: 2}, {X: 6, Y: 6}, {X: 2, Y: 6}}
	c := PolygonCentroid(square)
	test.That(t, c.X, test.ShouldAlmostEqual, 4)
	test.That(t, c.Y, test.ShouldAlmostEqual, 4)
}

func TestPolygonCentroidTriangle(t *testing.T) {
	tri := []Position{{X: 0, Y: 0}, {X: 6, Y: 0}, {X: 0, Y: 3}}
	c := PolygonCentroid(tri)
	test.That(t, c.X, test.ShouldAlmostEqual, 2)
	test.That(t, c.Y, test.ShouldAlmostEqual, 1)
}

func TestPolygonCentroidRegularPolygon(t *testing.T) {
	// The moment centroid of a regular polygon is its circumcenter.
	pts := GenerateCirclePoints(50, 30, 12, 24)
	c := PolygonCentroid(pts)
	test.That(t, c.X, test.ShouldAlmostEqual, 50, 1e-9)
	test.That(t, c.Y, test.ShouldAlmostEqual, 30, 1e-9)
}

func TestPolygonCentroidDegenerate(t *testing.T) {
	// Single point and collinear segments have zero area and fall back to
	// the first vertex.
	test.That(t, PolygonCentroid([]Position{{X: 5, Y: 9}}), test.ShouldResemble, Position{X: 5, Y: 9})

	segment := []Position{{X: 1, Y: 1}, {X: 4, Y: 4}}
	test.That(t, PolygonCentroid(segment), test.ShouldResemble, Position{X: 1, Y: 1})

	test.That(t, PolygonCentroid(nil), test.ShouldResemble, Position{})
}
