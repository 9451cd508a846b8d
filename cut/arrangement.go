package cut

import (
	"math"
	"sort"

	"github.com/notargets/DGCut/geometry"
)

// arrangement is the planar graph of segments on one element side. Faces
// are traced with the half-edge rule: arriving at v from u, leave along the
// edge that comes next clockwise from v→u. Bounded faces come out counter
// clockwise, the outer boundary of each connected component clockwise.
type arrangement struct {
	frame  geometry.Frame
	points map[int]*Point
	adj    map[int][]int
	xy     map[int]geometry.Vec2
	parent map[int]int
}

type face struct {
	points []*Point
	area   float64 // Absolute area
	comp   int     // Connected component
}

func newArrangement(frame geometry.Frame, edges map[lineKey][2]*Point) *arrangement {
	arr := &arrangement{
		frame:  frame,
		points: make(map[int]*Point),
		adj:    make(map[int][]int),
		xy:     make(map[int]geometry.Vec2),
	}
	for _, e := range edges {
		for _, p := range e {
			if _, ok := arr.points[p.id]; !ok {
				arr.points[p.id] = p
				arr.xy[p.id] = frame.Project(p.X)
			}
		}
		arr.adj[e[0].id] = append(arr.adj[e[0].id], e[1].id)
		arr.adj[e[1].id] = append(arr.adj[e[1].id], e[0].id)
	}
	return arr
}

func (arr *arrangement) ids() []int {
	ids := make([]int, 0, len(arr.adj))
	for id := range arr.adj {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (arr *arrangement) removeEdge(a, b int) {
	drop := func(from, to int) {
		nb := arr.adj[from]
		for i, n := range nb {
			if n == to {
				arr.adj[from] = append(nb[:i], nb[i+1:]...)
				break
			}
		}
		if len(arr.adj[from]) == 0 {
			delete(arr.adj, from)
		}
	}
	drop(a, b)
	drop(b, a)
}

// prune removes dangling segments, which bound no face
func (arr *arrangement) prune() {
	var queue []int
	for _, id := range arr.ids() {
		if len(arr.adj[id]) == 1 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if len(arr.adj[id]) != 1 {
			continue
		}
		other := arr.adj[id][0]
		arr.removeEdge(id, other)
		if len(arr.adj[other]) == 1 {
			queue = append(queue, other)
		}
	}
}

func (arr *arrangement) find(id int) int {
	for arr.parent[id] != id {
		arr.parent[id] = arr.parent[arr.parent[id]]
		id = arr.parent[id]
	}
	return id
}

func (arr *arrangement) components() {
	arr.parent = make(map[int]int, len(arr.adj))
	for id := range arr.adj {
		arr.parent[id] = id
	}
	for id, nb := range arr.adj {
		for _, n := range nb {
			if a, b := arr.find(id), arr.find(n); a != b {
				arr.parent[max(a, b)] = min(a, b)
			}
		}
	}
}

// component of point p, -1 when p is not part of the arrangement
func (arr *arrangement) component(p *Point) int {
	if _, ok := arr.parent[p.id]; !ok {
		return -1
	}
	return arr.find(p.id)
}

func (arr *arrangement) project(pts []*Point) []geometry.Vec2 {
	out := make([]geometry.Vec2, len(pts))
	for i, p := range pts {
		out[i] = arr.xy[p.id]
	}
	return out
}

// faces traces all faces. Faces with an area below areaTol are slivers of
// overlapping segments and are dropped.
func (arr *arrangement) faces(areaTol float64) (bounded, outer []face) {
	arr.components()
	for id, nb := range arr.adj {
		o := arr.xy[id]
		sort.Slice(nb, func(i, j int) bool {
			return geometry.Angle2D(sub2(arr.xy[nb[i]], o)) < geometry.Angle2D(sub2(arr.xy[nb[j]], o))
		})
	}
	type halfEdge struct{ from, to int }
	var (
		visited  = make(map[halfEdge]bool)
		numEdges int
	)
	for _, nb := range arr.adj {
		numEdges += len(nb)
	}
	for _, u := range arr.ids() {
		for _, v := range arr.adj[u] {
			if visited[halfEdge{u, v}] {
				continue
			}
			var ring []int
			for a, b, n := u, v, 0; n <= numEdges; n++ {
				visited[halfEdge{a, b}] = true
				ring = append(ring, a)
				nb := arr.adj[b]
				i := indexOf(nb, a)
				c := nb[(i-1+len(nb))%len(nb)]
				if a, b = b, c; a == u && b == v {
					break
				}
			}
			pts := make([]*Point, len(ring))
			for i, id := range ring {
				pts[i] = arr.points[id]
			}
			area := geometry.SignedArea2D(arr.project(pts))
			f := face{points: pts, area: math.Abs(area), comp: arr.find(u)}
			switch {
			case area > areaTol:
				bounded = append(bounded, f)
			case area < -areaTol:
				outer = append(outer, f)
			}
		}
	}
	return bounded, outer
}

func sub2(a, b geometry.Vec2) geometry.Vec2 {
	return geometry.Vec2{X: a.X - b.X, Y: a.Y - b.Y}
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
