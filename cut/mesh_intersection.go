package cut

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/DGCut/element"
	"github.com/notargets/DGCut/partitions"
	"github.com/notargets/DGCut/utils"
)

// MeshIntersection cuts a background mesh with an interface made of cut
// sides. Elements are cut concurrently, one goroutine per partition.
type MeshIntersection struct {
	opts Options
	log  *zap.Logger

	elements  []*Element
	elemIndex map[int]int // Element id → index
	sides     []*CutSide
	sideIDs   map[int]struct{}
	nextSide  int

	candidates [][]*CutSide // Per element, cut sides with overlapping boxes
	failed     []error
	failedIdx  map[int]bool
	nodePos    map[int]Position
	elemPos    []Position
	layout     *partitions.PartitionLayout
	done       bool
}

// New validates the options. A nil logger disables logging.
func New(opts Options, logger *zap.Logger) (*MeshIntersection, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cut options: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeshIntersection{
		opts:      opts,
		log:       logger,
		elemIndex: make(map[int]int),
		sideIDs:   make(map[int]struct{}),
	}, nil
}

func (mi *MeshIntersection) Options() Options { return mi.opts }

// AddElement adds a background element with its global node ids
func (mi *MeshIntersection) AddElement(id int, nodeIDs []int, x []r3.Vec, shape element.ElementGeometry) error {
	if mi.done {
		return fmt.Errorf("element %d added after the cut", id)
	}
	if _, ok := mi.elemIndex[id]; ok {
		return fmt.Errorf("duplicate element id %d", id)
	}
	e, err := NewElement(id, nodeIDs, x, shape, mi.opts)
	if err != nil {
		return err
	}
	mi.elemIndex[id] = len(mi.elements)
	mi.elements = append(mi.elements, e)
	return nil
}

// AddCutSide adds an interface side. With SplitCutSides a quad4 is replaced
// by two tri3 numbered after the largest id seen so far.
func (mi *MeshIntersection) AddCutSide(id int, nodeIDs []int, x []r3.Vec, shape element.ElementGeometry) error {
	if mi.done {
		return fmt.Errorf("cut side %d added after the cut", id)
	}
	if _, ok := mi.sideIDs[id]; ok {
		return fmt.Errorf("%w: duplicate id %d", ErrInvalidCutSide, id)
	}
	cs, err := NewCutSide(id, nodeIDs, x, shape)
	if err != nil {
		return err
	}
	mi.reserve(id)
	if !mi.opts.SplitCutSides || shape != element.Rectangle {
		mi.sides = append(mi.sides, cs)
		return nil
	}
	tris, err := cs.Split(func() int {
		mi.nextSide++
		for {
			if _, ok := mi.sideIDs[mi.nextSide]; !ok {
				break
			}
			mi.nextSide++
		}
		mi.reserve(mi.nextSide)
		return mi.nextSide
	})
	if err != nil {
		return err
	}
	mi.sides = append(mi.sides, tris...)
	return nil
}

func (mi *MeshIntersection) reserve(id int) {
	mi.sideIDs[id] = struct{}{}
	if id > mi.nextSide {
		mi.nextSide = id
	}
}

func (mi *MeshIntersection) CutSides() []*CutSide { return mi.sides }

// Cut runs the intersection. Per element failures are collected and logged
// unless FailFast is set, in which case the first failure is returned.
func (mi *MeshIntersection) Cut(ctx context.Context) error {
	if mi.done {
		return fmt.Errorf("cut already performed")
	}
	mi.done = true
	mi.log.Info("cut started",
		zap.Int("elements", len(mi.elements)),
		zap.Int("cut_sides", len(mi.sides)))

	cands := mi.findCandidates()
	if len(cands) > 0 {
		if err := mi.cutCandidates(ctx, cands); err != nil {
			return err
		}
	} else {
		mi.nodePos = make(map[int]Position)
	}
	if mi.opts.FindPositions {
		mi.propagatePositions()
	}
	stats := mi.Statistics()
	mi.log.Info("cut finished",
		zap.Int("cut_elements", stats.CutElements),
		zap.Int("volume_cells", stats.VolumeCells),
		zap.Int("failed", stats.FailedElements),
		zap.Float64("inside_volume", stats.InsideVolume),
		zap.Float64("outside_volume", stats.OutsideVolume))
	return nil
}

// findCandidates pairs elements with the cut sides whose bounding boxes
// overlap theirs
func (mi *MeshIntersection) findCandidates() []int {
	mi.candidates = make([][]*CutSide, len(mi.elements))
	var cands []int
	for k, e := range mi.elements {
		for _, cs := range mi.sides {
			if cs.bbox.Overlaps(e.bbox, e.tol) {
				mi.candidates[k] = append(mi.candidates[k], cs)
			}
		}
		if len(mi.candidates[k]) > 0 {
			cands = append(cands, k)
		}
	}
	mi.log.Debug("candidate elements", zap.Int("count", len(cands)))
	return cands
}

func (mi *MeshIntersection) cutCandidates(ctx context.Context, cands []int) error {
	mesh := &partitions.MeshConnectivity{NumElements: len(cands)}
	for _, k := range cands {
		e := mi.elements[k]
		mesh.EToV = append(mesh.EToV, e.Nodes)
		mesh.ElementTypes = append(mesh.ElementTypes, e.Shape)
		mesh.NodesPerElem = append(mesh.NodesPerElem, len(e.Nodes))
	}
	strategy, err := partitions.ParseStrategy(mi.opts.Strategy)
	if err != nil {
		return err
	}
	pb, err := partitions.NewPartitionBuilder(mesh, mi.opts.Workers, strategy)
	if err != nil {
		return err
	}
	if mi.layout, err = pb.BuildPartitions(); err != nil {
		return err
	}
	mi.log.Debug("partitions", zap.Stringer("layout", mi.layout.PartitionStatistics()))

	nc, err := utils.NewNodeConnector(mesh.EToV, mi.layout.EToP)
	if err != nil {
		return err
	}
	if err = nc.Verify(); err != nil {
		return err
	}

	var (
		local  = utils.NewLocalBuffers[Position](nc)
		mu     sync.Mutex
		failed []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for p := range mi.layout.Partitions {
		part := mi.layout.Partitions[p]
		g.Go(func() error {
			for _, c := range part.Elements {
				if err := gctx.Err(); err != nil {
					return err
				}
				var (
					k    = cands[c]
					e    = mi.elements[k]
					slot = nc.LocalSlot(c, 0)
				)
				if err := e.Process(mi.candidates[k]); err != nil {
					err = asElementError(e.ID, err)
					if mi.opts.FailFast {
						return err
					}
					mi.log.Warn("element cut failed", zap.Int("element", e.ID), zap.Error(err))
					mu.Lock()
					failed = append(failed, err)
					mu.Unlock()
					continue
				}
				copy(local[part.ID][slot:], e.NodePositions())
				mi.log.Debug("element cut",
					zap.Int("element", e.ID),
					zap.Int("partition", part.ID),
					zap.Int("volume_cells", len(e.cells)),
					zap.Int("facets", len(e.facets)))
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}
	sort.Slice(failed, func(i, j int) bool {
		var a, b *ElementError
		errors.As(failed[i], &a)
		errors.As(failed[j], &b)
		return a.ElementID < b.ElementID
	})
	mi.failed = failed
	mi.failedIdx = make(map[int]bool, len(failed))
	for _, err := range failed {
		var ee *ElementError
		if errors.As(err, &ee) {
			mi.failedIdx[mi.elemIndex[ee.ElementID]] = true
		}
	}

	if mi.nodePos, err = utils.MergeNodeValues(nc, local, mergePosition); err != nil {
		return err
	}
	return nil
}

func asElementError(id int, err error) error {
	var ee *ElementError
	if errors.As(err, &ee) {
		return err
	}
	return &ElementError{ElementID: id, Err: err}
}

// processed reports whether element k went through the cut successfully
func (mi *MeshIntersection) processed(k int) bool {
	return mi.elements[k].cells != nil && !mi.failedIdx[k]
}

// propagatePositions decides elements the interface does not pass through.
// Positions spread across shared nodes; an element without decided nodes
// asks a ray.
func (mi *MeshIntersection) propagatePositions() {
	var (
		byNode = make(map[int][]int)
		queue  []int
	)
	mi.elemPos = make([]Position, len(mi.elements))
	for k, e := range mi.elements {
		for _, n := range e.Nodes {
			byNode[n] = append(byNode[n], k)
		}
		if mi.processed(k) && e.IsCut() {
			mi.elemPos[k] = Oncutsurface
			queue = append(queue, k)
		}
	}
	decide := func(k int, pos Position) {
		mi.elemPos[k] = pos
		e := mi.elements[k]
		if mi.processed(k) {
			e.SetPosition(pos)
		}
		for _, n := range e.Nodes {
			if mi.nodePos[n] == Undecided {
				mi.nodePos[n] = pos
			}
		}
		queue = append(queue, k)
	}
	spread := func() {
		for len(queue) > 0 {
			k := queue[0]
			queue = queue[1:]
			for _, n := range mi.elements[k].Nodes {
				pos := mi.nodePos[n]
				if !pos.Decided() {
					continue
				}
				for _, o := range byNode[n] {
					if mi.elemPos[o] == Undecided && !mi.failedElement(o) {
						decide(o, pos)
					}
				}
			}
		}
	}
	spread()

	var tris []sideTriangle
	for _, cs := range mi.sides {
		for _, t := range cs.Triangles() {
			tris = append(tris, sideTriangle{tri: t, normal: cs.Plane.Normal})
		}
	}
	for k, e := range mi.elements {
		if mi.elemPos[k] != Undecided || mi.failedElement(k) {
			continue
		}
		pos := positionByRay(e.Phys.Centroid(), tris)
		if pos == Undecided {
			continue
		}
		mi.log.Debug("element position from ray", zap.Int("element", e.ID), zap.Stringer("position", pos))
		decide(k, pos)
		spread()
	}
}

func (mi *MeshIntersection) failedElement(k int) bool { return mi.failedIdx[k] }

// NodePosition of a global node after the cut
func (mi *MeshIntersection) NodePosition(node int) Position { return mi.nodePos[node] }

// NodePositions returns a copy of all decided or undecided node positions
func (mi *MeshIntersection) NodePositions() map[int]Position {
	out := make(map[int]Position, len(mi.nodePos))
	for n, p := range mi.nodePos {
		out[n] = p
	}
	return out
}

// Element returns the element with the given id
func (mi *MeshIntersection) Element(id int) (*Element, bool) {
	k, ok := mi.elemIndex[id]
	if !ok {
		return nil, false
	}
	return mi.elements[k], true
}

// ElementPosition is Oncutsurface for elements the interface passes through
// or touches, the side of the interface otherwise
func (mi *MeshIntersection) ElementPosition(id int) Position {
	k, ok := mi.elemIndex[id]
	if !ok || mi.elemPos == nil {
		return Undecided
	}
	return mi.elemPos[k]
}

// CutElements lists the elements the interface passes through or touches
func (mi *MeshIntersection) CutElements() []*Element {
	var out []*Element
	for k, e := range mi.elements {
		if mi.processed(k) && e.IsCut() {
			out = append(out, e)
		}
	}
	return out
}

// Failures returns the per element errors of the last cut
func (mi *MeshIntersection) Failures() []error { return mi.failed }

func (mi *MeshIntersection) String() string {
	var b strings.Builder
	stats := mi.Statistics()
	b.WriteString("=== Cut Summary ===\n")
	b.WriteString(stats.String())
	if mi.layout != nil {
		fmt.Fprintf(&b, "Partitions: %v\n", mi.layout.PartitionStatistics())
	}
	for _, err := range mi.failed {
		fmt.Fprintf(&b, "  failed: %v\n", err)
	}
	return b.String()
}
