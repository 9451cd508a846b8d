package cut

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/DGCut/geometry"
	"github.com/notargets/DGCut/triangulate"
	"gonum.org/v1/gonum/spatial/r3"
)

// Facet is a planar polygon bounding volume cells: either a piece of an
// element side or the part of a cut side inside the element. Side facets are
// oriented outward from the element, cut facets like their cut side.
type Facet struct {
	ID        int
	Points    []*Point   // Outer cycle
	Holes     [][]*Point // Inner cycles, oriented against the outer cycle
	Side      int        // Element side index, -1 for cut facets
	CutSide   *CutSide   // Cut side of a cut facet, or the cut side an element side facet lies on
	OnCutSide bool       // Side facet covered by a touching cut side
	Position  Position

	cells [][]*Point
}

// IsCutFacet reports whether the facet comes from the interface
func (f *Facet) IsCutFacet() bool { return f.Side < 0 }

// OnInterface reports whether the facet is part of the interface
func (f *Facet) OnInterface() bool { return f.IsCutFacet() || f.OnCutSide }

func coords(pts []*Point) []r3.Vec {
	x := make([]r3.Vec, len(pts))
	for i, p := range pts {
		x[i] = p.X
	}
	return x
}

func vertices(pts []*Point) []triangulate.Vertex {
	vs := make([]triangulate.Vertex, len(pts))
	for i, p := range pts {
		vs[i] = p
	}
	return vs
}

// Normal is the unit normal of the outer cycle
func (f *Facet) Normal() r3.Vec { return geometry.UnitNormal(coords(f.Points)) }

// Area of the facet without its holes
func (f *Facet) Area() float64 {
	a := r3.Dot(geometry.VectorArea(coords(f.Points)), f.Normal())
	for _, h := range f.Holes {
		a -= math.Abs(r3.Dot(geometry.VectorArea(coords(h)), f.Normal()))
	}
	return a
}

// InterfaceNormal is the unit normal of the cut side the facet lies on
func (f *Facet) InterfaceNormal() r3.Vec {
	if f.CutSide == nil {
		return r3.Vec{}
	}
	return f.CutSide.Plane.Normal
}

func ringSegments(ring []*Point) [][2]*Point {
	segs := make([][2]*Point, 0, len(ring))
	for i, p := range ring {
		segs = append(segs, [2]*Point{p, ring[(i+1)%len(ring)]})
	}
	return segs
}

// Segments returns the directed boundary segments of the outer cycle and the
// holes
func (f *Facet) Segments() [][2]*Point {
	segs := ringSegments(f.Points)
	for _, h := range f.Holes {
		segs = append(segs, ringSegments(h)...)
	}
	return segs
}

// AllPoints lists the points of the outer cycle followed by the holes
func (f *Facet) AllPoints() []*Point {
	pts := append([]*Point(nil), f.Points...)
	for _, h := range f.Holes {
		pts = append(pts, h...)
	}
	return pts
}

func (f *Facet) Contains(p *Point) bool {
	for _, q := range f.AllPoints() {
		if q == p {
			return true
		}
	}
	return false
}

// Equals compares the point sets of two facets
func (f *Facet) Equals(o *Facet) bool {
	a, b := pointIDs(f.AllPoints()), pointIDs(o.AllPoints())
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func pointIDs(pts []*Point) []int {
	ids := make([]int, len(pts))
	for i, p := range pts {
		ids[i] = p.id
	}
	sort.Ints(ids)
	return ids
}

// Triangulate splits the facet into tri and quad cells oriented like the
// facet. The result is cached.
func (f *Facet) Triangulate(opts triangulate.Options) ([][]*Point, error) {
	if f.cells != nil {
		return f.cells, nil
	}
	holes := make([][]triangulate.Vertex, len(f.Holes))
	for i, h := range f.Holes {
		holes[i] = vertices(h)
	}
	tr, err := triangulate.New(opts, vertices(f.Points), holes...)
	if err != nil {
		return nil, fmt.Errorf("facet %d: %w", f.ID, err)
	}
	if err = tr.SplitFacet(); err != nil {
		return nil, fmt.Errorf("facet %d: %w", f.ID, err)
	}
	for _, c := range tr.Cells() {
		cell := make([]*Point, len(c))
		for i, v := range c {
			cell[i] = v.(*Point)
		}
		f.cells = append(f.cells, cell)
	}
	return f.cells, nil
}

// InteriorPoint is the centroid of the first triangulation cell, a point
// strictly inside the facet
func (f *Facet) InteriorPoint(opts triangulate.Options) (r3.Vec, error) {
	cells, err := f.Triangulate(opts)
	if err != nil {
		return r3.Vec{}, err
	}
	if len(cells) == 0 {
		return r3.Vec{}, fmt.Errorf("facet %d has no cells", f.ID)
	}
	return geometry.Average(coords(cells[0])), nil
}

func (f *Facet) resetCells() { f.cells = nil }

func (f *Facet) String() string {
	kind := "side"
	if f.IsCutFacet() {
		kind = "cut"
	}
	s := fmt.Sprintf("facet %d (%s", f.ID, kind)
	if f.OnCutSide {
		s += ", on cut side"
	}
	s += fmt.Sprintf(") %v", pointIDList(f.Points))
	for _, h := range f.Holes {
		s += fmt.Sprintf(" hole %v", pointIDList(h))
	}
	return s
}

func pointIDList(pts []*Point) []int {
	ids := make([]int, len(pts))
	for i, p := range pts {
		ids[i] = p.id
	}
	return ids
}
