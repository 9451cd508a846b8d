// Package coloredgraph holds the bipartite facet/line adjacency of a cut
// element and finds the closed facet cycles that bound volume cells.
//
// Node ids below the color split are facets (color 0), ids at or above it
// are lines (color 1). Edges only ever join a facet to a line.
package coloredgraph

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// Node colors
const (
	FacetColor = 0
	LineColor  = 1
)

var (
	// ErrNotClosed marks a cycle with a line not shared by exactly two facets
	ErrNotClosed = errors.New("facet cycle is not closed")

	// ErrUsage marks facets used by the wrong number of cycles
	ErrUsage = errors.New("facet usage mismatch")
)

// Graph is the undirected facet/line graph of one element
type Graph struct {
	colorSplit int
	g          *simple.UndirectedGraph
}

// NewGraph creates an empty graph. Ids below colorSplit are facets.
func NewGraph(colorSplit int) *Graph {
	return &Graph{colorSplit: colorSplit, g: simple.NewUndirectedGraph()}
}

// ColorSplit is the smallest line id
func (g *Graph) ColorSplit() int { return g.colorSplit }

// Color returns FacetColor or LineColor for a node id
func (g *Graph) Color(id int) int {
	if id < g.colorSplit {
		return FacetColor
	}
	return LineColor
}

func (g *Graph) ensure(id int) {
	if g.g.Node(int64(id)) == nil {
		g.g.AddNode(simple.Node(id))
	}
}

// Add connects a facet with one of its lines
func (g *Graph) Add(facet, line int) error {
	if facet < 0 || g.Color(facet) != FacetColor {
		return fmt.Errorf("node %d is not a facet (color split %d)", facet, g.colorSplit)
	}
	if g.Color(line) != LineColor {
		return fmt.Errorf("node %d is not a line (color split %d)", line, g.colorSplit)
	}
	g.ensure(facet)
	g.ensure(line)
	g.g.SetEdge(g.g.NewEdge(simple.Node(facet), simple.Node(line)))
	return nil
}

func (g *Graph) nodes(color int) []int {
	var ids []int
	it := g.g.Nodes()
	for it.Next() {
		if id := int(it.Node().ID()); g.Color(id) == color {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func (g *Graph) neighbours(id int) []int {
	if g.g.Node(int64(id)) == nil {
		return nil
	}
	var ids []int
	it := g.g.From(int64(id))
	for it.Next() {
		ids = append(ids, int(it.Node().ID()))
	}
	sort.Ints(ids)
	return ids
}

// Facets lists facet ids in ascending order
func (g *Graph) Facets() []int { return g.nodes(FacetColor) }

// Lines lists line ids in ascending order
func (g *Graph) Lines() []int { return g.nodes(LineColor) }

// LinesOf lists the lines bounding a facet
func (g *Graph) LinesOf(facet int) []int { return g.neighbours(facet) }

// FacetsOf lists the facets sharing a line
func (g *Graph) FacetsOf(line int) []int { return g.neighbours(line) }

// Contains reports whether a facet or line is still in the graph
func (g *Graph) Contains(id int) bool { return g.g.Node(int64(id)) != nil }

// RemoveFacet drops a facet and every line left without facets
func (g *Graph) RemoveFacet(facet int) {
	lines := g.LinesOf(facet)
	g.g.RemoveNode(int64(facet))
	for _, l := range lines {
		if g.g.From(int64(l)).Len() == 0 {
			g.g.RemoveNode(int64(l))
		}
	}
}

// FindFreeFacets repeatedly removes facets that own a line no other facet
// shares. Such facets are dangling surface pieces that cannot bound a
// volume. The removed facets are returned in ascending order.
func (g *Graph) FindFreeFacets() []int {
	var free []int
	for {
		var round []int
		for _, l := range g.Lines() {
			if fs := g.FacetsOf(l); len(fs) == 1 {
				round = append(round, fs[0])
			}
		}
		if len(round) == 0 {
			break
		}
		for _, f := range round {
			if g.Contains(f) {
				g.RemoveFacet(f)
				free = append(free, f)
			}
		}
	}
	sort.Ints(free)
	return free
}

func (g *Graph) Print(w io.Writer) {
	fmt.Fprintf(w, "facets: %d  lines: %d  color split: %d\n",
		len(g.Facets()), len(g.Lines()), g.colorSplit)
	for _, f := range g.Facets() {
		fmt.Fprintf(w, "  facet %4d:", f)
		for _, l := range g.LinesOf(f) {
			fmt.Fprintf(w, " %d", l)
		}
		fmt.Fprintln(w)
	}
}

// nodeIDs returns the sorted ids of a topo component
func nodeIDs(nodes []graph.Node) []int {
	ids := make([]int, len(nodes))
	for i, n := range nodes {
		ids[i] = int(n.ID())
	}
	sort.Ints(ids)
	return ids
}
