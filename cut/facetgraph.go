package cut

import (
	"fmt"
	"io"
	"math"

	"github.com/notargets/DGCut/coloredgraph"
	"github.com/notargets/DGCut/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// FacetGraph turns the facets and lines of one element into volume cells
type FacetGraph struct {
	elem   *Element
	graph  *coloredgraph.Graph
	free   []int
	cycles coloredgraph.CycleList
}

// NewFacetGraph links every facet with its lines. Facet ids are the graph
// ids below the color split, line i gets id split+i.
func NewFacetGraph(e *Element) (*FacetGraph, error) {
	if len(e.facets) == 0 {
		return nil, fmt.Errorf("%w: no facets", ErrVolumeCellCreation)
	}
	var (
		split = len(e.facets)
		g     = coloredgraph.NewGraph(split)
	)
	for _, f := range e.facets {
		for _, s := range f.Segments() {
			l, ok := e.lineIndex[keyOf(s[0], s[1])]
			if !ok {
				return nil, fmt.Errorf("%w: facet %d segment %d-%d has no line",
					ErrVolumeCellCreation, f.ID, s[0].id, s[1].id)
			}
			if err := g.Add(f.ID, split+l); err != nil {
				return nil, err
			}
		}
	}
	return &FacetGraph{elem: e, graph: g}, nil
}

func (fg *FacetGraph) Graph() *coloredgraph.Graph { return fg.graph }

// FreeFacets lists facets dropped because they cannot close a volume
func (fg *FacetGraph) FreeFacets() []int { return fg.free }

func (fg *FacetGraph) Cycles() coloredgraph.CycleList { return fg.cycles }

func (fg *FacetGraph) boundary(id int) bool { return !fg.elem.facets[id].IsCutFacet() }

// side tells whether the boundary facet leaves the line towards the side the
// cut facet normal points to. Facet rings keep their interior on the left, so
// n×t points into the facet for a segment with direction t.
func (fg *FacetGraph) side(line, inner, bnd int) int {
	var (
		l   = fg.elem.lines[line-fg.graph.ColorSplit()]
		b   = fg.elem.facets[bnd]
		key = keyOf(l.P1, l.P2)
	)
	for _, s := range b.Segments() {
		if keyOf(s[0], s[1]) != key {
			continue
		}
		t := r3.Sub(s[1].X, s[0].X)
		d := r3.Dot(fg.elem.facets[inner].Normal(), r3.Cross(b.Normal(), t))
		switch {
		case d > sideTol*r3.Norm(t):
			return 1
		case d < -sideTol*r3.Norm(t):
			return -1
		}
		return 0
	}
	return 0
}

// CreateVolumeCells drops free facets, finds the facet cycles, attaches
// enclosed cycles to the cycle containing them and creates one volume cell
// per cycle
func (fg *FacetGraph) CreateVolumeCells() ([]*VolumeCell, error) {
	fg.free = fg.graph.FindFreeFacets()
	if len(fg.graph.Facets()) == 0 {
		return nil, fmt.Errorf("%w: every facet is free", ErrVolumeCellCreation)
	}
	cycles, err := fg.graph.FindCycles(fg.boundary, fg.side)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVolumeCellCreation, err)
	}
	if cycles, err = fg.attachEnclosed(cycles); err != nil {
		return nil, err
	}
	for i, c := range cycles {
		if !c.IsClosed(fg.graph) {
			return nil, fmt.Errorf("%w: cycle %d: %w", ErrVolumeCellCreation, i, coloredgraph.ErrNotClosed)
		}
	}
	if err = cycles.TestUsage(fg.graph, fg.boundary); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVolumeCellCreation, err)
	}
	fg.cycles = cycles

	cells := make([]*VolumeCell, 0, len(cycles))
	for i, c := range cycles {
		facets := make([]*Facet, len(c.Facets))
		for j, id := range c.Facets {
			facets[j] = fg.elem.facets[id]
		}
		vc, err := newVolumeCell(i, fg.elem, facets)
		if err != nil {
			return nil, fmt.Errorf("%w: cell %d: %w", ErrVolumeCellCreation, i, err)
		}
		cells = append(cells, vc)
	}
	return cells, nil
}

// attachEnclosed merges every enclosed cycle into the smallest other cycle
// containing it, where it bounds a cavity
func (fg *FacetGraph) attachEnclosed(cycles coloredgraph.CycleList) (coloredgraph.CycleList, error) {
	out := make(coloredgraph.CycleList, len(cycles))
	for i, c := range cycles {
		out[i] = coloredgraph.Cycle{Facets: append([]int(nil), c.Facets...), Enclosed: c.Enclosed}
	}
	for i, c := range cycles {
		if !c.Enclosed {
			continue
		}
		x := fg.elem.facets[c.Facets[0]].Points[0].X
		best, bestSize := -1, math.Inf(1)
		for j, o := range cycles {
			if j == i {
				continue
			}
			tris, bbox, err := fg.triangles(o)
			if err != nil {
				return nil, err
			}
			size := bboxVolume(bbox)
			if size >= bestSize || !bbox.Contains(x, fg.elem.tol) {
				continue
			}
			inside, err := insideClosedSurface(x, tris)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrVolumeCellCreation, err)
			}
			if inside {
				best, bestSize = j, size
			}
		}
		if best < 0 {
			return nil, fmt.Errorf("%w: enclosed cycle %d lies in no other cycle", ErrVolumeCellCreation, i)
		}
		out[best].Merge(c)
	}
	return out, nil
}

func (fg *FacetGraph) triangles(c coloredgraph.Cycle) ([][3]r3.Vec, geometry.BoundingBox, error) {
	var (
		tris [][3]r3.Vec
		bbox = geometry.NewBoundingBox()
		opts = fg.elem.opts.triangulation()
	)
	for _, id := range c.Facets {
		cells, err := fg.elem.facets[id].Triangulate(opts)
		if err != nil {
			return nil, bbox, err
		}
		for _, cell := range cells {
			for k := 1; k+1 < len(cell); k++ {
				tris = append(tris, [3]r3.Vec{cell[0].X, cell[k].X, cell[k+1].X})
			}
			for _, p := range cell {
				bbox.Add(p.X)
			}
		}
	}
	return tris, bbox, nil
}

// sideTol bounds the sine of the angle between a boundary facet and a cut
// facet below which the two count as coplanar
const sideTol = 1.e-8

func bboxVolume(bb geometry.BoundingBox) float64 {
	d := r3.Sub(bb.Max, bb.Min)
	return d.X * d.Y * d.Z
}

func (fg *FacetGraph) Print(w io.Writer) {
	fmt.Fprintf(w, "facet graph of element %d\n", fg.elem.ID)
	fg.graph.Print(w)
	if len(fg.free) > 0 {
		fmt.Fprintf(w, "  free facets: %v\n", fg.free)
	}
	fg.cycles.Print(w)
}
