package cut

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/DGCut/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// Point is a unique location inside one element: an element node or a cut
// point. It implements triangulate.Vertex.
type Point struct {
	id       int
	X        r3.Vec
	NodeID   int // Global node id for element nodes, -1 otherwise
	Position Position
	cutSides map[int]struct{}
}

func (p *Point) ID() int             { return p.id }
func (p *Point) Coordinates() r3.Vec { return p.X }

// AddCutSide records a cut side the point lies on
func (p *Point) AddCutSide(id int) {
	if p.cutSides == nil {
		p.cutSides = make(map[int]struct{})
	}
	p.cutSides[id] = struct{}{}
}

// CutSides lists the ids of the cut sides through the point
func (p *Point) CutSides() []int {
	ids := make([]int, 0, len(p.cutSides))
	for id := range p.cutSides {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (p *Point) IsOnCutSide(id int) bool {
	_, ok := p.cutSides[id]
	return ok
}

func (p *Point) String() string {
	return fmt.Sprintf("point %d (%g, %g, %g) %v", p.id, p.X.X, p.X.Y, p.X.Z, p.Position)
}

type gridKey [3]int64

// PointPool hands out one Point per location. Locations closer than the
// pool tolerance map to the same point; a hashed grid with cells twice the
// tolerance keeps the lookup local to the 27 neighbouring cells.
type PointPool struct {
	tol    float64
	cell   float64
	grid   map[gridKey][]*Point
	points []*Point
}

func NewPointPool(tol float64) (*PointPool, error) {
	if !(tol > 0) || math.IsInf(tol, 0) {
		return nil, fmt.Errorf("invalid point pool tolerance %g", tol)
	}
	return &PointPool{tol: tol, cell: 2 * tol, grid: make(map[gridKey][]*Point)}, nil
}

func (pp *PointPool) Tolerance() float64 { return pp.tol }

func (pp *PointPool) key(x r3.Vec) gridKey {
	return gridKey{
		int64(math.Floor(x.X / pp.cell)),
		int64(math.Floor(x.Y / pp.cell)),
		int64(math.Floor(x.Z / pp.cell)),
	}
}

// Find returns the closest pooled point within tolerance of x, or nil
func (pp *PointPool) Find(x r3.Vec) *Point {
	var (
		k    = pp.key(x)
		best *Point
		dist = math.Inf(1)
	)
	for i := int64(-1); i <= 1; i++ {
		for j := int64(-1); j <= 1; j++ {
			for l := int64(-1); l <= 1; l++ {
				for _, p := range pp.grid[gridKey{k[0] + i, k[1] + j, k[2] + l}] {
					if d := geometry.Distance(p.X, x); d <= pp.tol && d < dist {
						best, dist = p, d
					}
				}
			}
		}
	}
	return best
}

// NewPoint returns the pooled point at x, creating it when none is close
func (pp *PointPool) NewPoint(x r3.Vec) *Point {
	if p := pp.Find(x); p != nil {
		return p
	}
	p := &Point{id: len(pp.points), X: x, NodeID: -1}
	pp.points = append(pp.points, p)
	k := pp.key(x)
	pp.grid[k] = append(pp.grid[k], p)
	return p
}

// Points in creation order
func (pp *PointPool) Points() []*Point { return pp.points }

func (pp *PointPool) Len() int { return len(pp.points) }
