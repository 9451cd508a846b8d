package triangulate

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/DGCut/geometry"
)

// EarClipping triangulates the outer cycle. Unless triOnly, neighbouring
// triangles that form a convex quad are merged. Inline corners are removed
// up front when deleteInlinePts is set; otherwise they stay as cell corners
// and never produce a zero area triangle.
func (tr *Triangulator) EarClipping(triOnly, deleteInlinePts bool) error {
	cells, err := tr.earClip(clone(tr.outer), triOnly, deleteInlinePts)
	if err != nil {
		return err
	}
	tr.split = append(tr.split[:0], cells...)
	return nil
}

// EarClippingWithHoles bridges every hole into the outer cycle and ear clips
// the resulting weakly simple polygon into triangles
func (tr *Triangulator) EarClippingWithHoles() error {
	ring := clone(tr.outer)
	if geometry.SignedArea2D(tr.ringXY(ring)) < 0 {
		reverse(ring)
	}
	holes := make([][]int, len(tr.holes))
	for i, h := range tr.holes {
		holes[i] = clone(h)
		if geometry.SignedArea2D(tr.ringXY(holes[i])) > 0 {
			reverse(holes[i])
		}
	}
	// Rightmost holes first so later bridges cannot cross earlier ones
	sort.SliceStable(holes, func(i, j int) bool {
		return tr.xy[holes[i][tr.rightmost(holes[i])]].X > tr.xy[holes[j][tr.rightmost(holes[j])]].X
	})
	var err error
	for _, h := range holes {
		if ring, err = tr.bridge(ring, h); err != nil {
			return err
		}
	}
	cells, err := tr.earClip(ring, true, false)
	if err != nil {
		return err
	}
	tr.split = append(tr.split[:0], cells...)
	return nil
}

func (tr *Triangulator) ringXY(ring []int) []geometry.Vec2 {
	pts := make([]geometry.Vec2, len(ring))
	for i, k := range ring {
		pts[i] = tr.xy[k]
	}
	return pts
}

func reverse(ring []int) {
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
}

func (tr *Triangulator) rightmost(ring []int) (best int) {
	for i, k := range ring {
		p, q := tr.xy[k], tr.xy[ring[best]]
		if p.X > q.X || (p.X == q.X && p.Y < q.Y) {
			best = i
		}
	}
	return
}

// bridge connects the hole to a mutually visible corner of ring, following
// Eberly's construction: cast a ray in +x from the rightmost hole corner M,
// take the closest edge hit I and the edge end P with larger x, then replace
// P by the reflex corner inside triangle (M,I,P) closest in angle to the ray
func (tr *Triangulator) bridge(ring, hole []int) ([]int, error) {
	var (
		m     = tr.rightmost(hole)
		M     = tr.xy[hole[m]]
		bestX = math.Inf(1)
		pos   = -1
		n     = len(ring)
		eps   = math.Sqrt(tr.tol)
	)
	for i := 0; i < n; i++ {
		a, b := tr.xy[ring[i]], tr.xy[ring[(i+1)%n]]
		if (a.Y-M.Y)*(b.Y-M.Y) > 0 {
			continue
		}
		var x float64
		var cand int
		switch {
		case a.Y == b.Y:
			if a.X < b.X {
				x, cand = a.X, i
			} else {
				x, cand = b.X, (i+1)%n
			}
		default:
			x = a.X + (M.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if a.X > b.X {
				cand = i
			} else {
				cand = (i + 1) % n
			}
		}
		if x < M.X-eps || x >= bestX {
			continue
		}
		bestX, pos = x, cand
		switch {
		case geometry.Same2D(geometry.Vec2{X: x, Y: M.Y}, a, eps):
			pos = i
		case geometry.Same2D(geometry.Vec2{X: x, Y: M.Y}, b, eps):
			pos = (i + 1) % n
		}
	}
	if pos < 0 {
		return nil, fmt.Errorf("%w: hole is not enclosed by the outer cycle", ErrDegenerate)
	}

	I := geometry.Vec2{X: bestX, Y: M.Y}
	P := tr.xy[ring[pos]]
	if !geometry.Same2D(I, P, eps) {
		a, b, c := M, I, P
		if geometry.Orient2D(a, b, c) < 0 {
			b, c = c, b
		}
		marks := tr.marks(ring)
		bestAngle, bestDist := math.Inf(1), math.Inf(1)
		for i, k := range ring {
			if i == pos || marks[i] != Concave {
				continue
			}
			q := tr.xy[k]
			if !geometry.PointInTriangle2D(q, a, b, c, tr.tol) {
				continue
			}
			d := geometry.Vec2{X: q.X - M.X, Y: q.Y - M.Y}
			dist := math.Hypot(d.X, d.Y)
			if dist == 0 {
				continue
			}
			angle := math.Abs(math.Atan2(d.Y, d.X))
			if angle < bestAngle-1.e-14 || (math.Abs(angle-bestAngle) <= 1.e-14 && dist < bestDist) {
				bestAngle, bestDist, pos = angle, dist, i
			}
		}
	}

	out := make([]int, 0, len(ring)+len(hole)+2)
	out = append(out, ring[:pos+1]...)
	for k := 0; k <= len(hole); k++ {
		out = append(out, hole[(m+k)%len(hole)])
	}
	out = append(out, ring[pos:]...)
	return out, nil
}

func (tr *Triangulator) removeInline(ring []int) []int {
	for len(ring) > 3 {
		marks := tr.marks(ring)
		removed := false
		for i := len(ring) - 1; i >= 0 && len(ring) > 3; i-- {
			if marks[i] == Inline {
				ring = append(ring[:i], ring[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			break
		}
	}
	return ring
}

// earClip is the O(n²) ear clipping loop over a ring of vertex indices. The
// ring may contain the duplicated bridge corners of merged holes.
func (tr *Triangulator) earClip(ring []int, triOnly, deleteInline bool) ([][]int, error) {
	if deleteInline {
		ring = tr.removeInline(ring)
	}
	var tris [][]int
	for len(ring) > 3 {
		if fan, ok := tr.splitTriangleWithPointsOnLine(ring); ok {
			tris = append(tris, fan...)
			ring = nil
			break
		}
		ear := tr.findEar(ring)
		if ear < 0 {
			ear = tr.findSecondBestEar(ring)
		}
		n := len(ring)
		a, b, c := ring[(ear+n-1)%n], ring[ear], ring[(ear+1)%n]
		if tr.orient(a, b, c) > tr.tol {
			tris = append(tris, []int{a, b, c})
		}
		ring = append(ring[:ear], ring[ear+1:]...)
	}
	if len(ring) == 3 && tr.orient(ring[0], ring[1], ring[2]) > tr.tol {
		tris = append(tris, clone(ring))
	}
	if len(tris) == 0 {
		return nil, fmt.Errorf("%w: no positive area cell", ErrDegenerate)
	}
	if triOnly {
		return tris, nil
	}
	return tr.mergeQuads(tris), nil
}

// isEar reports a strictly convex corner whose triangle contains no other
// corner of the ring. Corners sharing an index with the triangle (bridge
// duplicates) do not block it.
func (tr *Triangulator) isEar(ring []int, i int) (ear bool, blocked int) {
	n := len(ring)
	a, b, c := ring[(i+n-1)%n], ring[i], ring[(i+1)%n]
	if tr.orient(a, b, c) <= tr.tol {
		return false, -1
	}
	pa, pb, pc := tr.xy[a], tr.xy[b], tr.xy[c]
	for _, k := range ring {
		if k == a || k == b || k == c {
			continue
		}
		q := tr.xy[k]
		if geometry.Same2D(q, pa, 0) || geometry.Same2D(q, pb, 0) || geometry.Same2D(q, pc, 0) {
			continue
		}
		if geometry.PointInTriangle2D(q, pa, pb, pc, tr.tol) {
			blocked++
		}
	}
	return blocked == 0, blocked
}

func (tr *Triangulator) findEar(ring []int) int {
	for i := range ring {
		if ok, _ := tr.isEar(ring, i); ok {
			return i
		}
	}
	return -1
}

// findSecondBestEar is the fallback when round off leaves no strict ear:
// the convex corner whose triangle is blocked by the fewest corners, else
// the least reflex corner, so clipping always terminates
func (tr *Triangulator) findSecondBestEar(ring []int) int {
	var (
		best     = -1
		fewest   = math.MaxInt
		n        = len(ring)
		maxO     = math.Inf(-1)
		fallback = 0
	)
	for i := range ring {
		_, blocked := tr.isEar(ring, i)
		if blocked >= 0 && blocked < fewest {
			best, fewest = i, blocked
		}
		if o := tr.orient(ring[(i+n-1)%n], ring[i], ring[(i+1)%n]); o > maxO {
			maxO, fallback = o, i
		}
	}
	if best >= 0 {
		return best
	}
	return fallback
}

// splitTriangleWithPointsOnLine handles a ring that is a triangle with
// extra inline corners all on the edge opposite one corner: the ring is
// fanned from that corner into thin triangles
func (tr *Triangulator) splitTriangleWithPointsOnLine(ring []int) ([][]int, bool) {
	marks := tr.marks(ring)
	var corners []int
	for i, m := range marks {
		switch m {
		case Concave:
			return nil, false
		case Convex:
			corners = append(corners, i)
		}
	}
	if len(corners) != 3 {
		return nil, false
	}
	n := len(ring)
	for _, c := range corners {
		if marks[(c+1)%n] != Convex || marks[(c+n-1)%n] != Convex {
			continue
		}
		var fan [][]int
		for k := 1; k < n-1; k++ {
			fan = append(fan, []int{ring[c], ring[(c+k)%n], ring[(c+k+1)%n]})
		}
		return fan, true
	}
	return nil, false
}

// mergeQuads greedily joins triangle pairs sharing an edge into convex quads
func (tr *Triangulator) mergeQuads(tris [][]int) [][]int {
	used := make([]bool, len(tris))
	var cells [][]int
	for i := range tris {
		if used[i] {
			continue
		}
		used[i] = true
		merged := false
		for j := i + 1; j < len(tris) && !merged; j++ {
			if used[j] {
				continue
			}
			if quad, ok := tr.joinTriangles(tris[i], tris[j]); ok {
				cells = append(cells, quad)
				used[j] = true
				merged = true
			}
		}
		if !merged {
			cells = append(cells, tris[i])
		}
	}
	return cells
}

func (tr *Triangulator) joinTriangles(t1, t2 []int) ([]int, bool) {
	for r := 0; r < 3; r++ {
		// t1 as (p0,p1,p2) with shared edge p2->p0, t2 must traverse p0->p2
		p0, p1, p2 := t1[r], t1[(r+1)%3], t1[(r+2)%3]
		for s := 0; s < 3; s++ {
			if t2[s] == p0 && t2[(s+1)%3] == p2 {
				quad := []int{p0, p1, p2, t2[(s+2)%3]}
				if tr.convexQuad(quad) {
					return quad, true
				}
				return nil, false
			}
		}
	}
	return nil, false
}
