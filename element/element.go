package element

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

type Dimensionality uint8

const (
	D0 Dimensionality = iota // points
	D1                       // lines, edges
	D2                       // triangles, quadrilaterals
	D3                       // tetrahedra, hexahedra, etc.
)

type ElementGeometry uint8

const (
	Tet ElementGeometry = iota
	Hex
	Prism
	Pyramid
	Tri
	Rectangle
	Line
)

var geometryNames = map[ElementGeometry]string{
	Tet:       "tet4",
	Hex:       "hex8",
	Prism:     "wedge6",
	Pyramid:   "pyramid5",
	Tri:       "tri3",
	Rectangle: "quad4",
	Line:      "line2",
}

func (g ElementGeometry) String() string {
	if name, ok := geometryNames[g]; ok {
		return name
	}
	return fmt.Sprintf("ElementGeometry(%d)", uint8(g))
}

// ParseGeometry accepts the cell type names used in cut test files
// ("hex8", "tet4", ...), case insensitive
func ParseGeometry(name string) (ElementGeometry, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for g, n := range geometryNames {
		if n == name {
			return g, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownShape, name)
}

// Element is a linear Lagrange reference element. Implementations are
// stateless; one instance per geometry is shared through Lookup.
type Element interface {
	// Element metadata and topology
	GetProperties() ElementProperties
	GetReferenceGeometry() ReferenceGeometry

	// ShapeFunctions evaluates N_i(r,s,t) for every node
	ShapeFunctions(rst [3]float64) []float64

	// Derivatives returns dN_i/dr_b as a [Dim × NumNodes] matrix:
	//   deriv.At(0,i) = ∂N_i/∂r   deriv.At(1,i) = ∂N_i/∂s   deriv.At(2,i) = ∂N_i/∂t
	Derivatives(rst [3]float64) *mat.Dense

	// InsideReference reports whether rst lies in the reference domain
	InsideReference(rst [3]float64, tol float64) bool
}
