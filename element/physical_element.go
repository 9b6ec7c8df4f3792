package element

import "math"

// GeometricTransform maps between the reference triangle and physical space
// for straight sided (affine) triangles. All data is stored per cell, length K.
//
//	x = x0 + (x1-x0)(r+1)/2 + (x2-x0)(s+1)/2
//	y = y0 + (y1-y0)(r+1)/2 + (y2-y0)(s+1)/2
type GeometricTransform struct {
	// Components of the inverse Jacobian matrix (∂ξ/∂x terms)
	Rx, Ry []float64 // ∂r/∂x, ∂r/∂y
	Sx, Sy []float64 // ∂s/∂x, ∂s/∂y

	// Jacobian determinant |∂(x,y)/∂(r,s)|, signed by cell orientation
	// Used for integration: ∫_Ω f dA = ∫_Ω̂ f |J| dr ds
	J []float64

	// Cell origin (vertex 0) and forward Jacobian, used for point mapping
	X0, Y0         []float64
	Xr, Xs, Yr, Ys []float64
}

// NewGeometricTransform computes the affine maps for all cells
func NewGeometricTransform(vx, vy []float64, etov [][3]int) GeometricTransform {
	K := len(etov)
	gt := GeometricTransform{
		Rx: make([]float64, K), Ry: make([]float64, K),
		Sx: make([]float64, K), Sy: make([]float64, K),
		J:  make([]float64, K),
		X0: make([]float64, K), Y0: make([]float64, K),
		Xr: make([]float64, K), Xs: make([]float64, K),
		Yr: make([]float64, K), Ys: make([]float64, K),
	}
	for k, v := range etov {
		x0, y0 := vx[v[0]], vy[v[0]]
		xr := 0.5 * (vx[v[1]] - x0)
		xs := 0.5 * (vx[v[2]] - x0)
		yr := 0.5 * (vy[v[1]] - y0)
		ys := 0.5 * (vy[v[2]] - y0)
		j := xr*ys - xs*yr
		gt.X0[k], gt.Y0[k] = x0, y0
		gt.Xr[k], gt.Xs[k], gt.Yr[k], gt.Ys[k] = xr, xs, yr, ys
		gt.J[k] = j
		gt.Rx[k], gt.Ry[k] = ys/j, -xs/j
		gt.Sx[k], gt.Sy[k] = -yr/j, xr/j
	}
	return gt
}

// ToPhysical maps reference coordinates in cell k to physical coordinates
func (gt GeometricTransform) ToPhysical(k int, r, s float64) (x, y float64) {
	x = gt.X0[k] + gt.Xr[k]*(r+1) + gt.Xs[k]*(s+1)
	y = gt.Y0[k] + gt.Yr[k]*(r+1) + gt.Ys[k]*(s+1)
	return
}

// ToReference maps physical coordinates to reference coordinates of cell k
func (gt GeometricTransform) ToReference(k int, x, y float64) (r, s float64) {
	dx, dy := x-gt.X0[k], y-gt.Y0[k]
	r = gt.Rx[k]*dx + gt.Ry[k]*dy - 1
	s = gt.Sx[k]*dx + gt.Sy[k]*dy - 1
	return
}

// PhysicalGradient converts reference derivatives to physical ones in cell k
func (gt GeometricTransform) PhysicalGradient(k int, dr, ds, dx, dy []float64) {
	rx, ry, sx, sy := gt.Rx[k], gt.Ry[k], gt.Sx[k], gt.Sy[k]
	for i := range dr {
		dx[i] = rx*dr[i] + sx*ds[i]
		dy[i] = ry*dr[i] + sy*ds[i]
	}
}

// Area returns the physical area of cell k; the reference triangle area is 2
func (gt GeometricTransform) Area(k int) float64 {
	return 2 * math.Abs(gt.J[k])
}
