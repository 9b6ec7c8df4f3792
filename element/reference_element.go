package element

// Dimensionality represents the spatial dimension of an element
type Dimensionality uint8

const (
	D0 Dimensionality = iota // 0D elements (points)
	D1                       // 1D elements (lines, edges)
	D2                       // 2D elements (triangles, quadrilaterals)
	D3                       // 3D elements (tetrahedra, hexahedra, etc.)
)

// GeometryType identifies the shape of an element
type GeometryType uint8

const (
	Tri GeometryType = iota
	Line
)

// ElementProperties contains metadata describing an element type
type ElementProperties struct {
	Name       string         // Full descriptive name (e.g., "Lagrange Triangle Order 2")
	ShortName  string         // Abbreviated name (e.g., "Tri2")
	Family     string         // Element family, "CG" for continuous Lagrange
	Type       GeometryType   // Element shape
	Order      int            // Polynomial order
	Np         int            // Total number of nodes/points in element
	NEp        int            // Number of nodes per edge, including the two vertices
	NVp        int            // Number of vertex nodes (equals number of vertices)
	NIp        int            // Number of strictly interior nodes
	NEdges     int            // Number of edges in each element
	Dimensions Dimensionality // Spatial dimension (1D, 2D, or 3D)
}

// ReferenceGeometry defines the layout of nodes in reference space
// The reference triangle has vertices (-1,-1), (1,-1), (-1,1)
type ReferenceGeometry struct {
	// Node coordinates in reference space, length Np each
	R, S []float64

	// Node classification by topological entity
	VertexPoints   []int   // Indices of nodes located at vertices
	EdgePoints     [][]int // [edge_num][point_indices] - nodes strictly inside each edge
	InteriorPoints []int   // Indices of nodes strictly inside the element
}

// ReferenceElement defines element properties and basis evaluation in
// reference space. It is implemented once per element type (e.g., Tri1, Tri2)
type ReferenceElement interface {
	// Element metadata and properties
	GetProperties() ElementProperties

	// Node distribution in reference space
	GetReferenceGeometry() ReferenceGeometry

	// Basis writes the Np nodal basis values at (r,s) into phi
	Basis(r, s float64, phi []float64)

	// Gradient writes the reference derivatives of the Np basis functions
	Gradient(r, s float64, dr, ds []float64)
}
