package multigrid

import "fmt"

// FieldKind says what a vector of level coefficients represents, which
// decides the transfers it may take part in
type FieldKind uint8

const (
	State      FieldKind = iota // an approximate solution
	Defect                      // a residual, a functional on the space
	Correction                  // a difference of states
)

func (k FieldKind) String() string {
	switch k {
	case State:
		return "state"
	case Defect:
		return "defect"
	case Correction:
		return "correction"
	default:
		return fmt.Sprintf("FieldKind(%d)", uint8(k))
	}
}

// Field is a coefficient vector living on one level
type Field struct {
	Kind   FieldKind
	Level  int
	Values []float64
}

// NewField returns a zero field with n coefficients
func NewField(kind FieldKind, level, n int) *Field {
	return &Field{Kind: kind, Level: level, Values: make([]float64, n)}
}

// Clone returns a deep copy of f
func (f *Field) Clone() *Field {
	return &Field{Kind: f.Kind, Level: f.Level, Values: append([]float64(nil), f.Values...)}
}
