package coloredgraph

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Cycle is a set of facets that closes a volume. Enclosed cycles are inner
// surfaces not connected to any element side; the caller has to attach them
// geometrically to the cycle that contains them.
type Cycle struct {
	Facets   []int
	Enclosed bool
}

type CycleList []Cycle

// components links the selected facets across the lines accepted by link and
// returns the connected components
func (g *Graph) components(facets []int, link func(line int) bool) [][]int {
	sub := simple.NewUndirectedGraph()
	for _, f := range facets {
		sub.AddNode(simple.Node(f))
	}
	for _, l := range g.Lines() {
		if !link(l) {
			continue
		}
		fs := g.FacetsOf(l)
		for i := 1; i < len(fs); i++ {
			if sub.Node(int64(fs[0])) == nil || sub.Node(int64(fs[i])) == nil {
				continue
			}
			sub.SetEdge(sub.NewEdge(simple.Node(fs[0]), simple.Node(fs[i])))
		}
	}
	var comps [][]int
	for _, c := range topo.ConnectedComponents(sub) {
		comps = append(comps, nodeIDs(c))
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })
	return comps
}

func (g *Graph) split(boundary func(int) bool) (bnd, inner []int) {
	for _, f := range g.Facets() {
		if boundary(f) {
			bnd = append(bnd, f)
		} else {
			inner = append(inner, f)
		}
	}
	return
}

func (g *Graph) lineUsage(line int, boundary func(int) bool) (nb, ni int) {
	for _, f := range g.FacetsOf(line) {
		if boundary(f) {
			nb++
		} else {
			ni++
		}
	}
	return
}

// Regions are the connected pieces of the element boundary: boundary facets
// joined across lines that carry exactly two boundary facets and no inner
// facet. Any line touched by an inner facet separates regions.
func (g *Graph) Regions(boundary func(int) bool) [][]int {
	bnd, _ := g.split(boundary)
	return g.components(bnd, func(l int) bool {
		nb, ni := g.lineUsage(l, boundary)
		return nb == 2 && ni == 0
	})
}

// InnerComponents are the connected pieces of the cut surface: inner facets
// joined across lines that carry inner facets only
func (g *Graph) InnerComponents(boundary func(int) bool) [][]int {
	_, inner := g.split(boundary)
	return g.components(inner, func(l int) bool {
		nb, _ := g.lineUsage(l, boundary)
		return nb == 0
	})
}

// SideFunc tells on which side of the inner facet a boundary facet sharing
// the given line lies: +1 on the side the inner facet normal points to, -1
// on the other, 0 if it cannot be decided.
type SideFunc func(line, inner, boundary int) int

// disjoint is a union-find over dense ids
type disjoint []int

func newDisjoint(n int) disjoint {
	d := make(disjoint, n)
	for i := range d {
		d[i] = i
	}
	return d
}

func (d disjoint) find(i int) int {
	for d[i] != i {
		d[i] = d[d[i]]
		i = d[i]
	}
	return i
}

func (d disjoint) union(i, j int) {
	ri, rj := d.find(i), d.find(j)
	if ri < rj {
		d[rj] = ri
	} else if rj < ri {
		d[ri] = rj
	}
}

// FindCycles groups the boundary regions into volumes and returns one cycle
// per volume. Every cut surface component has two sides. Regions touching
// the same side of the same component belong to the same volume, so a tube
// through the element joins its two end caps. A cycle is its regions plus
// every component one of its sides faces. Components that touch no region
// are returned as enclosed cycles.
func (g *Graph) FindCycles(boundary func(int) bool, side SideFunc) (CycleList, error) {
	if len(g.Facets()) == 0 {
		return nil, fmt.Errorf("%w: graph has no facets", ErrNotClosed)
	}
	var (
		regions  = g.Regions(boundary)
		inner    = g.InnerComponents(boundary)
		regionOf = make(map[int]int)
		compOf   = make(map[int]int)
		sets     = newDisjoint(len(regions) + 2*len(inner))
		touched  = make([]bool, len(sets))
	)
	for i, r := range regions {
		for _, f := range r {
			regionOf[f] = i
		}
	}
	for k, comp := range inner {
		for _, f := range comp {
			compOf[f] = k
		}
	}
	sideNode := func(k, s int) int {
		if s > 0 {
			return len(regions) + 2*k
		}
		return len(regions) + 2*k + 1
	}
	for _, l := range g.Lines() {
		fs := g.FacetsOf(l)
		for _, c := range fs {
			k, ok := compOf[c]
			if !ok {
				continue
			}
			for _, b := range fs {
				r, ok := regionOf[b]
				if !ok {
					continue
				}
				s := side(l, c, b)
				if s == 0 {
					continue
				}
				n := sideNode(k, s)
				touched[n] = true
				sets.union(r, n)
			}
		}
	}

	var (
		cycles CycleList
		slot   = make(map[int]int)
	)
	for i, r := range regions {
		root := sets.find(i)
		j, ok := slot[root]
		if !ok {
			j = len(cycles)
			slot[root] = j
			cycles = append(cycles, Cycle{})
		}
		cycles[j].Facets = append(cycles[j].Facets, r...)
	}
	for k, comp := range inner {
		var added []int
		for _, s := range []int{1, -1} {
			n := sideNode(k, s)
			if !touched[n] {
				continue
			}
			j := slot[sets.find(n)]
			if len(added) == 1 && added[0] == j {
				continue
			}
			cycles[j].Facets = append(cycles[j].Facets, comp...)
			added = append(added, j)
		}
		if len(added) == 0 {
			cycles = append(cycles, Cycle{Facets: append([]int(nil), comp...), Enclosed: true})
		}
	}
	for i := range cycles {
		sort.Ints(cycles[i].Facets)
	}
	return cycles, nil
}

// IsClosed reports whether every line touched by the cycle is shared by
// exactly two of its facets
func (c Cycle) IsClosed(g *Graph) bool {
	count := make(map[int]int)
	for _, f := range c.Facets {
		for _, l := range g.LinesOf(f) {
			count[l]++
		}
	}
	for _, n := range count {
		if n != 2 {
			return false
		}
	}
	return len(count) > 0
}

// Merge adds the facets of o to c
func (c *Cycle) Merge(o Cycle) {
	c.Facets = append(c.Facets, o.Facets...)
	sort.Ints(c.Facets)
}

// TestUsage checks that boundary facets appear in exactly one cycle and
// inner facets in exactly two
func (cl CycleList) TestUsage(g *Graph, boundary func(int) bool) error {
	used := make(map[int]int)
	for _, c := range cl {
		for _, f := range c.Facets {
			used[f]++
		}
	}
	for _, f := range g.Facets() {
		want := 2
		if boundary(f) {
			want = 1
		}
		if used[f] != want {
			return fmt.Errorf("%w: facet %d used %d times, expected %d",
				ErrUsage, f, used[f], want)
		}
	}
	return nil
}

func (cl CycleList) Print(w io.Writer) {
	for i, c := range cl {
		kind := ""
		if c.Enclosed {
			kind = " (enclosed)"
		}
		fmt.Fprintf(w, "  cycle %d%s: %v\n", i, kind, c.Facets)
	}
}
