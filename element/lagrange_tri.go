package element

import (
	"fmt"
	"strings"

	"github.com/notargets/gocfd/DG2D"
	"github.com/notargets/gocfd/utils"
)

// LagrangeTri is the continuous Lagrange triangle of order 1 or 2
// Node ordering: the three vertices, then one node per edge for order 2,
// where edge i joins vertices i and (i+1)%3.
type LagrangeTri struct {
	N  int // polynomial order
	Np int

	rg ReferenceGeometry

	// The nodal basis in monomial form: coef[k][i] multiplies monomial
	// r^powers[k][0] s^powers[k][1] in basis function i
	powers [][2]int
	coef   [][]float64
}

// Families accepted by NewElement
var lagrangeFamilies = []string{"CG", "LAGRANGE", "P"}

// NewElement returns the reference element for a family name and degree
func NewElement(family string, degree int) (ReferenceElement, error) {
	f := strings.ToUpper(family)
	for _, name := range lagrangeFamilies {
		if f == name {
			lt, err := NewLagrangeTri(degree)
			if err != nil {
				return nil, err
			}
			return lt, nil
		}
	}
	return nil, fmt.Errorf("unsupported element family %q", family)
}

// NewLagrangeTri creates a Lagrange triangle of order 1 or 2
func NewLagrangeTri(order int) (*LagrangeTri, error) {
	lt := &LagrangeTri{N: order}
	switch order {
	case 1:
		lt.Np = 3
		lt.rg = ReferenceGeometry{
			R:              []float64{-1, 1, -1},
			S:              []float64{-1, -1, 1},
			VertexPoints:   []int{0, 1, 2},
			EdgePoints:     [][]int{{}, {}, {}},
			InteriorPoints: []int{},
		}
	case 2:
		lt.Np = 6
		lt.rg = ReferenceGeometry{
			R:              []float64{-1, 1, -1, 0, 0, -1},
			S:              []float64{-1, -1, 1, -1, 0, 0},
			VertexPoints:   []int{0, 1, 2},
			EdgePoints:     [][]int{{3}, {4}, {5}},
			InteriorPoints: []int{},
		}
	default:
		return nil, fmt.Errorf("Lagrange triangle order %d not supported, use 1 or 2", order)
	}
	for i := 0; i <= order; i++ {
		for j := 0; j <= order-i; j++ {
			lt.powers = append(lt.powers, [2]int{i, j})
		}
	}
	if err := lt.buildBasis(); err != nil {
		return nil, err
	}
	return lt, nil
}

// buildBasis derives the nodal basis from the orthonormal Jacobi basis on
// the triangle. The nodal interpolant is sampled at the nodes pulled
// halfway toward the centroid, which stay unisolvent, and the samples are
// converted to monomial coefficients.
func (lt *LagrangeTri) buildBasis() error {
	np := lt.Np
	const c = -1. / 3
	sr, ss := make([]float64, np), make([]float64, np)
	for i := 0; i < np; i++ {
		sr[i] = 0.5 * (lt.rg.R[i] + c)
		ss[i] = 0.5 * (lt.rg.S[i] + c)
	}
	modal := DG2D.NewJacobiBasis2D(lt.N,
		utils.NewVector(np, append([]float64(nil), lt.rg.R...)),
		utils.NewVector(np, append([]float64(nil), lt.rg.S...)),
		0, 0)
	interp := modal.GetInterpMatrix(utils.NewVector(np, sr), utils.NewVector(np, ss))

	mono := utils.NewMatrix(np, np)
	for q := 0; q < np; q++ {
		for k, p := range lt.powers {
			mono.Set(q, k, monomial(sr[q], p[0])*monomial(ss[q], p[1]))
		}
	}
	monoInv, err := mono.Inverse()
	if err != nil {
		return fmt.Errorf("order %d monomial samples: %w", lt.N, err)
	}
	coef := monoInv.Mul(interp)
	lt.coef = make([][]float64, np)
	for k := 0; k < np; k++ {
		lt.coef[k] = make([]float64, np)
		for i := 0; i < np; i++ {
			lt.coef[k][i] = coef.At(k, i)
		}
	}
	return nil
}

func monomial(x float64, n int) float64 {
	v := 1.
	for ; n > 0; n-- {
		v *= x
	}
	return v
}

func (lt *LagrangeTri) GetProperties() ElementProperties {
	return ElementProperties{
		Name:       "Lagrange Triangle Order " + string(rune('0'+lt.N)),
		ShortName:  "Tri" + string(rune('0'+lt.N)),
		Family:     "CG",
		Type:       Tri,
		Order:      lt.N,
		Np:         lt.Np,
		NEp:        lt.N + 1,
		NVp:        3,
		NIp:        len(lt.rg.InteriorPoints),
		NEdges:     3,
		Dimensions: D2,
	}
}

func (lt *LagrangeTri) GetReferenceGeometry() ReferenceGeometry {
	return lt.rg
}

func (lt *LagrangeTri) Basis(r, s float64, phi []float64) {
	if len(phi) < lt.Np {
		panic("basis buffer too short")
	}
	for i := 0; i < lt.Np; i++ {
		phi[i] = 0
	}
	for k, p := range lt.powers {
		m := monomial(r, p[0]) * monomial(s, p[1])
		for i, c := range lt.coef[k] {
			phi[i] += c * m
		}
	}
}

func (lt *LagrangeTri) Gradient(r, s float64, dr, ds []float64) {
	if len(dr) < lt.Np || len(ds) < lt.Np {
		panic("gradient buffer too short")
	}
	for i := 0; i < lt.Np; i++ {
		dr[i], ds[i] = 0, 0
	}
	for k, p := range lt.powers {
		var mr, ms float64
		if p[0] > 0 {
			mr = float64(p[0]) * monomial(r, p[0]-1) * monomial(s, p[1])
		}
		if p[1] > 0 {
			ms = float64(p[1]) * monomial(r, p[0]) * monomial(s, p[1]-1)
		}
		for i, c := range lt.coef[k] {
			dr[i] += c * mr
			ds[i] += c * ms
		}
	}
}
