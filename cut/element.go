package cut

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/DGCut/element"
	"github.com/notargets/DGCut/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// Line is a facet edge. Lines are identified by their end points, so every
// facet using the same two points shares the line.
type Line struct {
	ID     int
	P1, P2 *Point // P1.ID() < P2.ID()
}

type lineKey struct{ a, b int }

func keyOf(p, q *Point) lineKey {
	if p.id < q.id {
		return lineKey{p.id, q.id}
	}
	return lineKey{q.id, p.id}
}

// touching is the part of a cut side lying in an element side plane
type touching struct {
	side   *CutSide
	points []*Point
}

// Element is a background element together with everything its cut
// produces: points, facets, lines and volume cells
type Element struct {
	ID    int
	Nodes []int // Global node ids
	Shape element.ElementGeometry
	Phys  *element.PhysicalElement

	opts      Options
	tol       float64 // Absolute point tolerance
	bbox      geometry.BoundingBox
	pool      *PointPool
	nodes     []*Point // Pooled element nodes, ordered like Nodes
	planes    []geometry.Plane
	cutSides  []*CutSide
	touch     [][]touching // Touching cut sides per element side
	facets    []*Facet
	lines     []*Line
	lineIndex map[lineKey]int
	graph     *FacetGraph
	cells     []*VolumeCell
}

// NewElement validates the element geometry. Only linear 3D elements with
// planar sides can be cut.
func NewElement(id int, nodes []int, x []r3.Vec, shape element.ElementGeometry, opts Options) (*Element, error) {
	pe, err := element.NewPhysicalElement(shape, x)
	if err != nil {
		return nil, fmt.Errorf("element %d: %w", id, err)
	}
	if pe.GetProperties().Dimensions != element.D3 {
		return nil, fmt.Errorf("element %d: %v is not a volume element", id, shape)
	}
	if len(nodes) != len(x) {
		return nil, fmt.Errorf("element %d: %d node ids for %d coordinates", id, len(nodes), len(x))
	}
	var (
		bbox = pe.BoundingBox()
		diag = bbox.Diagonal()
	)
	if err = pe.CheckPlanarSides(planarityTol * diag); err != nil {
		return nil, fmt.Errorf("element %d: %w", id, err)
	}
	if pe.Volume() <= 0 {
		return nil, fmt.Errorf("element %d: non positive volume %g", id, pe.Volume())
	}
	planes, err := pe.SidePlanes()
	if err != nil {
		return nil, fmt.Errorf("element %d: %w", id, err)
	}
	e := &Element{
		ID:        id,
		Nodes:     append([]int(nil), nodes...),
		Shape:     shape,
		Phys:      pe,
		opts:      opts,
		tol:       opts.PointTolerance * diag,
		bbox:      bbox,
		planes:    planes,
		touch:     make([][]touching, len(planes)),
		lineIndex: make(map[lineKey]int),
	}
	if e.pool, err = NewPointPool(e.tol); err != nil {
		return nil, fmt.Errorf("element %d: %w", id, err)
	}
	for i, xi := range x {
		p := e.pool.NewPoint(xi)
		if p.NodeID >= 0 || p.id != i {
			return nil, fmt.Errorf("element %d: nodes %d and %d coincide", id, p.NodeID, nodes[i])
		}
		p.NodeID = nodes[i]
		e.nodes = append(e.nodes, p)
	}
	return e, nil
}

func (e *Element) BoundingBox() geometry.BoundingBox { return e.bbox }

func (e *Element) Points() []*Point { return e.pool.Points() }

func (e *Element) Facets() []*Facet { return e.facets }

func (e *Element) Lines() []*Line { return e.lines }

func (e *Element) VolumeCells() []*VolumeCell { return e.cells }

func (e *Element) FacetGraph() *FacetGraph { return e.graph }

// CutSides lists the cut sides that produced cut facets
func (e *Element) CutSides() []*CutSide { return e.cutSides }

// IsCut reports whether the interface passes through or touches the element
func (e *Element) IsCut() bool {
	for _, vc := range e.cells {
		if vc.IsCut() {
			return true
		}
	}
	return false
}

// Process runs the complete cut of the element with the given candidates
func (e *Element) Process(sides []*CutSide) error {
	if err := e.Cut(sides); err != nil {
		return err
	}
	if err := e.MakeFacets(); err != nil {
		return err
	}
	return e.MakeVolumeCells()
}

// Cut clips every candidate cut side to the element. The clipped polygon
// holds all cut points of the side: its nodes inside the element, its edges
// crossing element sides and element edges crossing the side. Polygons in
// an element side plane touch the element, all others become cut facets.
func (e *Element) Cut(sides []*CutSide) error {
	for _, cs := range sides {
		if !cs.bbox.Overlaps(e.bbox, e.tol) {
			continue
		}
		pts := e.clip(cs)
		if len(pts) < 3 {
			e.touchNodes(cs)
			continue
		}
		for _, p := range pts {
			p.AddCutSide(cs.ID)
		}
		if f := e.touchedSide(pts); f >= 0 {
			e.touch[f] = append(e.touch[f], touching{side: cs, points: pts})
			continue
		}
		e.cutSides = append(e.cutSides, cs)
		e.facets = append(e.facets, &Facet{Points: pts, Side: -1, CutSide: cs})
	}
	return nil
}

// touchNodes tags the element nodes a cut side meets in a single node or
// along an edge, where clipping leaves no polygon
func (e *Element) touchNodes(cs *CutSide) {
	for _, p := range e.nodes {
		if cs.Contains(p.X, e.tol) {
			p.AddCutSide(cs.ID)
		}
	}
}

// clip runs Sutherland-Hodgman against the outward side planes and pools the
// remaining corners. Degenerate results are dropped.
func (e *Element) clip(cs *CutSide) []*Point {
	poly := append([]r3.Vec(nil), cs.X...)
	for _, pl := range e.planes {
		var out []r3.Vec
		for i, a := range poly {
			b := poly[(i+1)%len(poly)]
			da, db := pl.SignedDistance(a), pl.SignedDistance(b)
			if da <= e.tol {
				out = append(out, a)
			}
			if (da < -e.tol && db > e.tol) || (da > e.tol && db < -e.tol) {
				t := da / (da - db)
				out = append(out, r3.Add(a, r3.Scale(t, r3.Sub(b, a))))
			}
		}
		if poly = out; len(poly) < 3 {
			return nil
		}
	}
	var pts []*Point
	for _, x := range poly {
		p := e.pool.NewPoint(x)
		if len(pts) > 0 && pts[len(pts)-1] == p {
			continue
		}
		pts = append(pts, p)
	}
	for len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 || geometry.Area(coords(pts)) <= e.tol*e.bbox.Diagonal() {
		return nil
	}
	return pts
}

func (e *Element) touchedSide(pts []*Point) int {
	x := coords(pts)
	for f, pl := range e.planes {
		if pl.Coplanar(x, e.tol) {
			return f
		}
	}
	return -1
}

// MakeFacets splits the element sides along the traces of the cut facets,
// repairs T-junctions and enumerates the lines
func (e *Element) MakeFacets() error {
	if e.lines != nil {
		return fmt.Errorf("element %d: facets already made", e.ID)
	}
	var sideFacets []*Facet
	for f := range e.planes {
		facets, err := e.splitSide(f)
		if err != nil {
			return fmt.Errorf("element %d side %d: %w", e.ID, f, err)
		}
		sideFacets = append(sideFacets, facets...)
	}
	e.facets = append(e.facets, sideFacets...)
	for i, f := range e.facets {
		f.ID = i
	}
	e.insertTJunctions()
	if err := e.markOnCutSide(); err != nil {
		return fmt.Errorf("element %d: %w", e.ID, err)
	}
	e.lines = make([]*Line, 0)
	for _, f := range e.facets {
		for _, s := range f.Segments() {
			k := keyOf(s[0], s[1])
			if _, ok := e.lineIndex[k]; ok || s[0] == s[1] {
				continue
			}
			p1, p2 := s[0], s[1]
			if p2.id < p1.id {
				p1, p2 = p2, p1
			}
			e.lineIndex[k] = len(e.lines)
			e.lines = append(e.lines, &Line{ID: len(e.lines), P1: p1, P2: p2})
		}
	}
	return nil
}

// sideRing returns the pooled nodes of element side f in outward order
func (e *Element) sideRing(f int) []*Point {
	face := e.Phys.GetReferenceGeometry().Faces[f]
	ring := make([]*Point, len(face))
	for i, n := range face {
		ring[i] = e.nodes[n]
	}
	return ring
}

// splitSide builds the planar arrangement of side f: its boundary and the
// traces of cut facets and touching cut sides, every segment subdivided at
// the pooled points on it. Bounded faces of the arrangement are the side
// facets; the outer boundaries of islands become their holes.
func (e *Element) splitSide(f int) ([]*Facet, error) {
	var (
		pl      = e.planes[f]
		ring    = e.sideRing(f)
		onPlane []*Point
		edges   = make(map[lineKey][2]*Point)
	)
	for _, p := range e.pool.Points() {
		if math.Abs(pl.SignedDistance(p.X)) <= e.tol {
			onPlane = append(onPlane, p)
		}
	}
	isOn := func(p *Point) bool { return math.Abs(pl.SignedDistance(p.X)) <= e.tol }
	addSegment := func(a, b *Point) {
		for _, s := range e.subdivide(a, b, onPlane) {
			edges[keyOf(s[0], s[1])] = s
		}
	}
	for i := range ring {
		addSegment(ring[i], ring[(i+1)%len(ring)])
	}
	for _, cf := range e.facets {
		for _, s := range ringSegments(cf.Points) {
			if isOn(s[0]) && isOn(s[1]) {
				addSegment(s[0], s[1])
			}
		}
	}
	for _, t := range e.touch[f] {
		for _, s := range ringSegments(t.points) {
			addSegment(s[0], s[1])
		}
	}

	arr := newArrangement(geometry.NewFrame(ring[0].X, pl.Normal), edges)
	arr.prune()
	bounded, boundaries := arr.faces(e.tol * e.bbox.Diagonal())
	main := arr.component(ring[0])

	facets := make([]*Facet, 0, len(bounded))
	for _, fc := range bounded {
		facets = append(facets, &Facet{Points: fc.points, Side: f})
	}
	for _, hole := range boundaries {
		if hole.comp == main {
			continue
		}
		best, bestArea := -1, math.Inf(1)
		for i, fc := range bounded {
			if fc.comp == hole.comp || fc.area >= bestArea {
				continue
			}
			if geometry.PointInPolygon2D(arr.xy[hole.points[0].id], arr.project(fc.points)) {
				best, bestArea = i, fc.area
			}
		}
		if best < 0 {
			return nil, fmt.Errorf("island at point %d is not enclosed by any facet", hole.points[0].id)
		}
		facets[best].Holes = append(facets[best].Holes, hole.points)
	}
	if len(facets) == 0 {
		return nil, fmt.Errorf("no facets")
	}
	return facets, nil
}

// subdivide splits segment [a,b] at the candidate points lying on it
func (e *Element) subdivide(a, b *Point, candidates []*Point) [][2]*Point {
	if a == b {
		return nil
	}
	type hit struct {
		p *Point
		t float64
	}
	var hits []hit
	for _, p := range candidates {
		if p == a || p == b {
			continue
		}
		if on, t := geometry.PointOnSegment(p.X, a.X, b.X, e.tol); on && t > 0 && t < 1 {
			hits = append(hits, hit{p, t})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].t < hits[j].t })
	chain := []*Point{a}
	for _, h := range hits {
		chain = append(chain, h.p)
	}
	chain = append(chain, b)
	segs := make([][2]*Point, 0, len(chain)-1)
	for i := 1; i < len(chain); i++ {
		segs = append(segs, [2]*Point{chain[i-1], chain[i]})
	}
	return segs
}

// insertTJunctions adds facet corners lying on edges of other facets to
// those edges, so neighbouring facets share lines
func (e *Element) insertTJunctions() {
	used := make(map[*Point]struct{})
	for _, f := range e.facets {
		for _, p := range f.AllPoints() {
			used[p] = struct{}{}
		}
	}
	corners := make([]*Point, 0, len(used))
	for p := range used {
		corners = append(corners, p)
	}
	sort.Slice(corners, func(i, j int) bool { return corners[i].id < corners[j].id })

	fix := func(ring []*Point) []*Point {
		var out []*Point
		for _, s := range ringSegments(ring) {
			for _, seg := range e.subdivide(s[0], s[1], corners) {
				out = append(out, seg[0])
			}
		}
		return out
	}
	for _, f := range e.facets {
		f.Points = fix(f.Points)
		for i, h := range f.Holes {
			f.Holes[i] = fix(h)
		}
		f.resetCells()
	}
}

// markOnCutSide flags side facets covered by a touching cut side
func (e *Element) markOnCutSide() error {
	opts := e.opts.triangulation()
	for _, f := range e.facets {
		if f.IsCutFacet() || len(e.touch[f.Side]) == 0 {
			continue
		}
		ip, err := f.InteriorPoint(opts)
		if err != nil {
			return err
		}
		frame := geometry.NewFrame(e.nodes[0].X, e.planes[f.Side].Normal)
		for _, t := range e.touch[f.Side] {
			if geometry.PointInPolygon2D(frame.Project(ip), frame.ProjectAll(coords(t.points))) {
				f.OnCutSide = true
				f.CutSide = t.side
				break
			}
		}
	}
	return nil
}

// MakeVolumeCells builds the facet graph, creates the volume cells and
// decides the positions of cells, facets and points
func (e *Element) MakeVolumeCells() error {
	if e.lines == nil {
		return fmt.Errorf("element %d: facets not made", e.ID)
	}
	fg, err := NewFacetGraph(e)
	if err != nil {
		return fmt.Errorf("element %d: %w", e.ID, err)
	}
	e.graph = fg
	if e.cells, err = fg.CreateVolumeCells(); err != nil {
		return fmt.Errorf("element %d: %w", e.ID, err)
	}
	e.findPositions()
	if e.opts.CheckVolume {
		return e.CheckVolume()
	}
	return nil
}

func (e *Element) findPositions() {
	for _, vc := range e.cells {
		vc.findPosition()
	}
	for _, p := range e.pool.Points() {
		if len(p.cutSides) > 0 {
			p.Position = Oncutsurface
		}
	}
	for _, vc := range e.cells {
		for _, f := range vc.Facets {
			if f.OnInterface() {
				f.Position = Oncutsurface
				for _, p := range f.AllPoints() {
					p.Position = Oncutsurface
				}
			}
		}
	}
	for _, vc := range e.cells {
		vc.spreadPosition()
	}
}

// SetPosition decides an element the interface does not pass through
func (e *Element) SetPosition(pos Position) {
	for _, vc := range e.cells {
		if vc.Position == Undecided {
			vc.Position = pos
			vc.spreadPosition()
		}
	}
}

// NodePositions returns the positions of the element nodes, ordered like
// Nodes
func (e *Element) NodePositions() []Position {
	pos := make([]Position, len(e.nodes))
	for i, p := range e.nodes {
		pos[i] = p.Position
	}
	return pos
}

// CheckVolume compares the summed cell volumes with the element volume
func (e *Element) CheckVolume() error {
	var total float64
	for _, vc := range e.cells {
		if vc.Volume() <= 0 {
			return &ElementError{ElementID: e.ID,
				Err: fmt.Errorf("%w: volume cell %d has volume %g", ErrVolumeConservation, vc.ID, vc.Volume())}
		}
		total += vc.Volume()
	}
	ev := e.Phys.Volume()
	if rel := math.Abs(total-ev) / ev; rel > e.opts.VolumeTolerance {
		return &ElementError{ElementID: e.ID,
			Err: fmt.Errorf("%w: cells %g, element %g (relative error %g)", ErrVolumeConservation, total, ev, rel)}
	}
	return nil
}

func (e *Element) String() string {
	return fmt.Sprintf("element %d (%v): %d points, %d facets, %d lines, %d volume cells",
		e.ID, e.Shape, e.pool.Len(), len(e.facets), len(e.lines), len(e.cells))
}
