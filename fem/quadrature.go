package fem

import (
	"gonum.org/v1/gonum/integrate/quad"
)

// Quadrature is a rule on the reference triangle (-1,-1), (1,-1), (-1,1).
// The weights sum to the reference area, 2.
type Quadrature struct {
	R, S, W []float64
}

// NumPoints returns the number of quadrature points
func (q Quadrature) NumPoints() int { return len(q.W) }

// TriangleQuadrature returns a collapsed Gauss-Legendre rule that is exact
// for polynomials of total degree order. The unit square is mapped onto the
// triangle by (u, v) -> (u, v(1-u)), which adds one degree in u.
func TriangleQuadrature(order int) Quadrature {
	if order < 1 {
		order = 1
	}
	n := (order + 3) / 2
	x := make([]float64, n)
	w := make([]float64, n)
	quad.Legendre{}.FixedLocations(x, w, 0, 1)

	q := Quadrature{
		R: make([]float64, 0, n*n),
		S: make([]float64, 0, n*n),
		W: make([]float64, 0, n*n),
	}
	for i := 0; i < n; i++ {
		u := x[i]
		for j := 0; j < n; j++ {
			v := x[j] * (1 - u)
			q.R = append(q.R, 2*u-1)
			q.S = append(q.S, 2*v-1)
			// Unit triangle has area 1/2, the reference triangle 2
			q.W = append(q.W, 4*w[i]*w[j]*(1-u))
		}
	}
	return q
}
