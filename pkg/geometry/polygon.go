package geometry

// SignedArea computes the signed area of a closed polygon using the
// shoelace formula. The sign depends on vertex winding order.
func SignedArea(vertices []Position) float64 {
	n := len(vertices)
	if n < 3 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += vertices[i].X*vertices[j].Y - vertices[j].X*vertices[i].Y
	}
	return sum / 2
}

// PolygonCentroid computes the centroid of a closed polygon from its
// first-order moments. A degenerate polygon (zero signed area, such as a
// single point or a line segment) falls back to its first vertex.
func PolygonCentroid(vertices []Position) Position {
	if len(vertices) == 0 {
		return Position{}
	}

	n := len(vertices)
	var m00, m10, m01 float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := vertices[i].X*vertices[j].Y - vertices[j].X*vertices[i].Y
		m00 += cross
		m10 += (vertices[i].X + vertices[j].X) * cross
		m01 += (vertices[i].Y + vertices[j].Y) * cross
	}
	m00 /= 2
	if m00 == 0 {
		return vertices[0]
	}
	m10 /= 6
	m01 /= 6

	return Position{X: m10 / m00, Y: m01 / m00}
}
