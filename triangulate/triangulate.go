// Package triangulate splits planar facets, possibly concave and possibly
// with holes, into tri and quad cells suitable for Gauss point integration.
package triangulate

import (
	"errors"
	"fmt"

	"github.com/notargets/DGCut/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vertex is a facet corner with a stable identity
type Vertex interface {
	ID() int
	Coordinates() r3.Vec
}

// Convexity of a polygon corner seen along the facet normal
type Convexity int

const (
	Convex Convexity = iota
	Concave
	Inline
)

func (c Convexity) String() string {
	switch c {
	case Convex:
		return "convex"
	case Concave:
		return "concave"
	default:
		return "inline"
	}
}

type Options struct {
	TriOnly            bool // Never emit quad cells
	DeleteInlinePoints bool // Drop collinear corners before ear clipping
}

var ErrDegenerate = errors.New("degenerate facet")

// relative to the squared facet diameter
const orientTol = 1.e-10

// Triangulator holds one facet and its split cells. Vertices of the outer
// cycle and the holes are projected once into a frame whose normal is the
// outer cycle normal, so counter clockwise in 2D means facet orientation.
type Triangulator struct {
	opts  Options
	outer []int   // indices into verts
	holes [][]int // indices into verts
	verts []Vertex
	xy    []geometry.Vec2
	frame geometry.Frame
	tol   float64
	split [][]int
}

// New prepares a facet for splitting. Holes that repeat the outer cycle are
// discarded.
func New(opts Options, outer []Vertex, holes ...[]Vertex) (*Triangulator, error) {
	if len(outer) < 3 {
		return nil, fmt.Errorf("%w: %d corners", ErrDegenerate, len(outer))
	}
	normal := geometry.NewellNormal(coordinates(outer))
	if r3.Norm2(normal) == 0 {
		return nil, fmt.Errorf("%w: zero area outer cycle", ErrDegenerate)
	}
	tr := &Triangulator{
		opts:  opts,
		frame: geometry.NewFrame(outer[0].Coordinates(), normal),
	}
	tr.outer = tr.addRing(outer)
	if !hasEqualCycle(outer, holes) {
		for _, h := range holes {
			if len(h) < 3 {
				continue
			}
			tr.holes = append(tr.holes, tr.addRing(h))
		}
	}
	scale := geometry.Scale2D(tr.xy)
	tr.tol = orientTol * scale * scale
	return tr, nil
}

func (tr *Triangulator) addRing(ring []Vertex) []int {
	idx := make([]int, len(ring))
	for i, v := range ring {
		idx[i] = len(tr.verts)
		tr.verts = append(tr.verts, v)
		tr.xy = append(tr.xy, tr.frame.Project(v.Coordinates()))
	}
	return idx
}

func coordinates(vs []Vertex) []r3.Vec {
	pts := make([]r3.Vec, len(vs))
	for i, v := range vs {
		pts[i] = v.Coordinates()
	}
	return pts
}

func hasEqualCycle(outer []Vertex, holes [][]Vertex) bool {
	ids := make(map[int]struct{}, len(outer))
	for _, v := range outer {
		ids[v.ID()] = struct{}{}
	}
	for _, h := range holes {
		if len(h) != len(outer) {
			continue
		}
		same := true
		for _, v := range h {
			if _, ok := ids[v.ID()]; !ok {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

// Cells returns the split cells, each ordered like the facet
func (tr *Triangulator) Cells() [][]Vertex {
	cells := make([][]Vertex, len(tr.split))
	for i, c := range tr.split {
		cells[i] = make([]Vertex, len(c))
		for j, k := range c {
			cells[i][j] = tr.verts[k]
		}
	}
	return cells
}

// Normal is the unit normal of the outer cycle
func (tr *Triangulator) Normal() r3.Vec { return tr.frame.N }

func (tr *Triangulator) orient(a, b, c int) float64 {
	return geometry.Orient2D(tr.xy[a], tr.xy[b], tr.xy[c])
}

func (tr *Triangulator) marks(ring []int) []Convexity {
	n := len(ring)
	m := make([]Convexity, n)
	for i := range ring {
		o := tr.orient(ring[(i+n-1)%n], ring[i], ring[(i+1)%n])
		switch {
		case o > tr.tol:
			m[i] = Convex
		case o < -tr.tol:
			m[i] = Concave
		default:
			m[i] = Inline
		}
	}
	return m
}

// Concavity marks every corner of a planar polygon as convex, concave or
// inline relative to normal
func Concavity(pts []r3.Vec, normal r3.Vec) []Convexity {
	if len(pts) < 3 || r3.Norm2(normal) == 0 {
		return nil
	}
	tr := &Triangulator{frame: geometry.NewFrame(pts[0], normal)}
	ring := make([]int, len(pts))
	for i, p := range pts {
		ring[i] = i
		tr.xy = append(tr.xy, tr.frame.Project(p))
	}
	scale := geometry.Scale2D(tr.xy)
	tr.tol = orientTol * scale * scale
	return tr.marks(ring)
}

// SplitFacet chooses the cheapest decomposition for the facet shape:
// triangles stay, convex quads stay, convex polygons and polygons with a
// single concave corner are fanned into one tri and quads, everything else
// goes through ear clipping
func (tr *Triangulator) SplitFacet() error {
	tr.split = tr.split[:0]
	if len(tr.holes) > 0 {
		return tr.EarClippingWithHoles()
	}
	ring := tr.outer
	if len(ring) == 3 {
		if tr.orient(ring[0], ring[1], ring[2]) <= tr.tol {
			return fmt.Errorf("%w: collinear triangle", ErrDegenerate)
		}
		tr.split = append(tr.split, clone(ring))
		return nil
	}
	var (
		marks   = tr.marks(ring)
		concave []int
		inline  int
	)
	for i, m := range marks {
		switch m {
		case Concave:
			concave = append(concave, i)
		case Inline:
			inline++
		}
	}
	switch {
	case inline > 0:
		return tr.EarClipping(tr.opts.TriOnly, tr.opts.DeleteInlinePoints)
	case len(ring) == 4 && len(concave) == 0:
		if tr.opts.TriOnly {
			tr.split = append(tr.split, []int{ring[0], ring[1], ring[2]},
				[]int{ring[0], ring[2], ring[3]})
		} else {
			tr.split = append(tr.split, clone(ring))
		}
		return nil
	case len(ring) == 4 && len(concave) == 1:
		tr.split4NodeFacet(ring, concave[0])
		return nil
	case len(concave) <= 1:
		start := 0
		if len(concave) == 1 {
			start = concave[0]
		}
		tr.splitFan(ring, start)
		return nil
	case !hasTwoContinuousConcave(marks):
		return tr.EarClipping(tr.opts.TriOnly, false)
	default:
		return tr.EarClipping(true, false)
	}
}

func clone(ring []int) []int { return append([]int(nil), ring...) }

func hasTwoContinuousConcave(marks []Convexity) bool {
	n := len(marks)
	for i, m := range marks {
		if m == Concave && marks[(i+1)%n] == Concave {
			return true
		}
	}
	return false
}

// split4NodeFacet cuts a quad with one concave corner c along the diagonal
// from c
func (tr *Triangulator) split4NodeFacet(ring []int, c int) {
	at := func(k int) int { return ring[(c+k)%4] }
	tr.split = append(tr.split,
		[]int{at(0), at(1), at(2)},
		[]int{at(0), at(2), at(3)})
}

// splitFan fans the polygon from ring[start]. A polygon with at most one
// concave corner is star shaped from that corner, so every fan cell is
// valid; quads are used where they stay convex.
func (tr *Triangulator) splitFan(ring []int, start int) {
	var (
		n  = len(ring)
		at = func(k int) int { return ring[(start+k)%n] }
	)
	for k := 1; k < n-1; {
		if !tr.opts.TriOnly && k+2 <= n-1 {
			quad := []int{at(0), at(k), at(k + 1), at(k + 2)}
			if tr.convexQuad(quad) {
				tr.split = append(tr.split, quad)
				k += 2
				continue
			}
		}
		tr.split = append(tr.split, []int{at(0), at(k), at(k + 1)})
		k++
	}
}

func (tr *Triangulator) convexQuad(q []int) bool {
	for i := 0; i < 4; i++ {
		if tr.orient(q[(i+3)%4], q[i], q[(i+1)%4]) <= tr.tol {
			return false
		}
	}
	return true
}

// Area of a split cell
func Area(cell []Vertex) float64 {
	return geometry.Area(coordinates(cell))
}
