package cut

import (
	"fmt"
	"math"

	"github.com/notargets/DGCut/element"
	"github.com/notargets/DGCut/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// planarityTol bounds the warp of quad4 cut sides relative to their size
const planarityTol = 1.e-8

// CutSide is one planar tri3 or quad4 piece of the interface. Its node order
// defines the interface normal.
type CutSide struct {
	ID       int
	ParentID int   // Id of the quad4 a tri3 was split from, ID otherwise
	Nodes    []int // Global interface node ids
	X        []r3.Vec
	Shape    element.ElementGeometry
	Plane    geometry.Plane
	bbox     geometry.BoundingBox
}

// NewCutSide validates the shape and builds the side plane
func NewCutSide(id int, nodes []int, x []r3.Vec, shape element.ElementGeometry) (*CutSide, error) {
	if shape != element.Tri && shape != element.Rectangle {
		return nil, fmt.Errorf("%w %d: shape %v, want tri3 or quad4", ErrInvalidCutSide, id, shape)
	}
	ref, err := element.Lookup(shape)
	if err != nil {
		return nil, err
	}
	if n := ref.GetProperties().NumNodes; len(x) != n || len(nodes) != n {
		return nil, fmt.Errorf("%w %d: %v needs %d nodes, got %d ids and %d coordinates",
			ErrInvalidCutSide, id, shape, n, len(nodes), len(x))
	}
	pl, ok := geometry.PlaneFromPolygon(x)
	if !ok {
		return nil, fmt.Errorf("%w %d: zero area", ErrInvalidCutSide, id)
	}
	bbox := geometry.NewBoundingBox(x...)
	if !pl.Coplanar(x, planarityTol*bbox.Diagonal()) {
		return nil, fmt.Errorf("%w %d: warped quad4", ErrInvalidCutSide, id)
	}
	return &CutSide{
		ID:       id,
		ParentID: id,
		Nodes:    append([]int(nil), nodes...),
		X:        append([]r3.Vec(nil), x...),
		Shape:    shape,
		Plane:    pl,
		bbox:     bbox,
	}, nil
}

func (cs *CutSide) BoundingBox() geometry.BoundingBox { return cs.bbox }

func (cs *CutSide) Area() float64 { return geometry.Area(cs.X) }

// Split cuts a quad4 along its 0-2 diagonal into two tri3 sides numbered by
// nextID. Tri3 sides are returned unchanged.
func (cs *CutSide) Split(nextID func() int) ([]*CutSide, error) {
	if cs.Shape != element.Rectangle {
		return []*CutSide{cs}, nil
	}
	var out []*CutSide
	for _, tri := range [2][3]int{{0, 1, 2}, {0, 2, 3}} {
		nodes := []int{cs.Nodes[tri[0]], cs.Nodes[tri[1]], cs.Nodes[tri[2]]}
		x := []r3.Vec{cs.X[tri[0]], cs.X[tri[1]], cs.X[tri[2]]}
		t, err := NewCutSide(nextID(), nodes, x, element.Tri)
		if err != nil {
			return nil, fmt.Errorf("splitting cut side %d: %w", cs.ID, err)
		}
		t.ParentID = cs.ID
		out = append(out, t)
	}
	return out, nil
}

// Contains reports whether x lies on the side within tol
func (cs *CutSide) Contains(x r3.Vec, tol float64) bool {
	if math.Abs(cs.Plane.SignedDistance(x)) > tol {
		return false
	}
	var (
		fr      = geometry.NewFrame(cs.X[0], cs.Plane.Normal)
		p       = fr.Project(x)
		areaTol = tol * cs.bbox.Diagonal()
	)
	for _, tri := range cs.Triangles() {
		q := fr.ProjectAll(tri[:])
		if geometry.PointInTriangle2D(p, q[0], q[1], q[2], areaTol) {
			return true
		}
	}
	return false
}

// Triangles of the side for ray tests
func (cs *CutSide) Triangles() [][3]r3.Vec {
	tris := [][3]r3.Vec{{cs.X[0], cs.X[1], cs.X[2]}}
	if len(cs.X) == 4 {
		tris = append(tris, [3]r3.Vec{cs.X[0], cs.X[2], cs.X[3]})
	}
	return tris
}

func (cs *CutSide) String() string {
	return fmt.Sprintf("cut side %d (%v) nodes %v", cs.ID, cs.Shape, cs.Nodes)
}
