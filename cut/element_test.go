package cut

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/DGCut/element"
)

// box returns the hex8 nodes of [x0,x1]x[y0,y1]x[z0,z1]
func box(x0, y0, z0, x1, y1, z1 float64) []r3.Vec {
	return []r3.Vec{
		{X: x0, Y: y0, Z: z0}, {X: x1, Y: y0, Z: z0}, {X: x1, Y: y1, Z: z0}, {X: x0, Y: y1, Z: z0},
		{X: x0, Y: y0, Z: z1}, {X: x1, Y: y0, Z: z1}, {X: x1, Y: y1, Z: z1}, {X: x0, Y: y1, Z: z1},
	}
}

func seq(start, n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = start + i
	}
	return ids
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Workers = 2
	return opts
}

func newHex(t *testing.T, id int, x []r3.Vec) *Element {
	t.Helper()
	e, err := NewElement(id, seq(8*id, 8), x, element.Hex, testOptions())
	require.NoError(t, err)
	return e
}

func newSide(t *testing.T, id int, x ...r3.Vec) *CutSide {
	t.Helper()
	shape := element.Tri
	if len(x) == 4 {
		shape = element.Rectangle
	}
	cs, err := NewCutSide(id, seq(100+10*id, len(x)), x, shape)
	require.NoError(t, err)
	return cs
}

// horizontal is a quad in the plane z with normal +z covering [-1,2]^2
func horizontal(t *testing.T, id int, z float64) *CutSide {
	return newSide(t, id,
		r3.Vec{X: -1, Y: -1, Z: z}, r3.Vec{X: 2, Y: -1, Z: z},
		r3.Vec{X: 2, Y: 2, Z: z}, r3.Vec{X: -1, Y: 2, Z: z})
}

func cellVolumes(e *Element) (inside, outside float64) {
	for _, vc := range e.VolumeCells() {
		switch vc.Position {
		case Inside:
			inside += vc.Volume()
		case Outside:
			outside += vc.Volume()
		}
	}
	return
}

// TestElement_PlaneCut cuts the unit hex halfway: the cell below the
// upward interface normal is inside
func TestElement_PlaneCut(t *testing.T) {
	e := newHex(t, 0, box(0, 0, 0, 1, 1, 1))
	require.NoError(t, e.Process([]*CutSide{horizontal(t, 1, 0.5)}))

	assert.Len(t, e.Facets(), 11)
	assert.Len(t, e.Lines(), 20)
	assert.Len(t, e.Points(), 12)
	require.Len(t, e.VolumeCells(), 2)
	assert.Empty(t, e.FacetGraph().FreeFacets())
	assert.True(t, e.IsCut())

	inside, outside := cellVolumes(e)
	assert.InDelta(t, 0.5, inside, 1.e-12)
	assert.InDelta(t, 0.5, outside, 1.e-12)
	for _, vc := range e.VolumeCells() {
		c := vc.Centroid()
		if vc.Position == Inside {
			assert.InDelta(t, 0.25, c.Z, 1.e-12)
		} else {
			assert.InDelta(t, 0.75, c.Z, 1.e-12)
		}
		assert.InDelta(t, 0.5, c.X, 1.e-12)
	}
	assert.Equal(t,
		[]Position{Inside, Inside, Inside, Inside, Outside, Outside, Outside, Outside},
		e.NodePositions())
	for _, p := range e.Points()[8:] {
		assert.Equal(t, Oncutsurface, p.Position)
		assert.Equal(t, []int{1}, p.CutSides())
	}
}

// TestElement_SplitCutSides uses the two triangles of the same plane; the
// shared diagonal joins both cut facets into one cut surface
func TestElement_SplitCutSides(t *testing.T) {
	quad := horizontal(t, 1, 0.5)
	next := 1
	tris, err := quad.Split(func() int { next++; return next })
	require.NoError(t, err)
	require.Len(t, tris, 2)
	assert.Equal(t, 1, tris[0].ParentID)
	assert.Equal(t, 3, tris[1].ID)

	e := newHex(t, 0, box(0, 0, 0, 1, 1, 1))
	require.NoError(t, e.Process(tris))
	assert.Len(t, e.Facets(), 12)
	require.Len(t, e.VolumeCells(), 2)
	inside, outside := cellVolumes(e)
	assert.InDelta(t, 0.5, inside, 1.e-12)
	assert.InDelta(t, 0.5, outside, 1.e-12)
}

// TestElement_CutThroughNodes puts the interface through two vertical edges
func TestElement_CutThroughNodes(t *testing.T) {
	e := newHex(t, 0, box(0, 0, 0, 1, 1, 1))
	cs := newSide(t, 1,
		r3.Vec{X: 1.5, Y: -0.5, Z: -0.5}, r3.Vec{X: -0.5, Y: 1.5, Z: -0.5},
		r3.Vec{X: -0.5, Y: 1.5, Z: 1.5}, r3.Vec{X: 1.5, Y: -0.5, Z: 1.5})
	require.NoError(t, e.Process([]*CutSide{cs}))

	assert.Equal(t, 8, len(e.Points()), "cut points must merge with the nodes")
	require.Len(t, e.VolumeCells(), 2)
	inside, outside := cellVolumes(e)
	assert.InDelta(t, 0.5, inside, 1.e-12)
	assert.InDelta(t, 0.5, outside, 1.e-12)
	assert.Equal(t,
		[]Position{Inside, Oncutsurface, Outside, Oncutsurface, Inside, Oncutsurface, Outside, Oncutsurface},
		e.NodePositions())
}

// TestElement_TetCorner cuts the tip off a tetrahedron
func TestElement_TetCorner(t *testing.T) {
	x := []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}}
	e, err := NewElement(0, []int{0, 1, 2, 3}, x, element.Tet, testOptions())
	require.NoError(t, err)
	require.NoError(t, e.Process([]*CutSide{horizontal(t, 1, 0.5)}))

	require.Len(t, e.VolumeCells(), 2)
	inside, outside := cellVolumes(e)
	assert.InDelta(t, 7./48., inside, 1.e-12)
	assert.InDelta(t, 1./48., outside, 1.e-12)
	assert.Equal(t, Outside, e.NodePositions()[3])
}

// TestElement_Shapes cuts every volume shape with the plane z=0.3
func TestElement_Shapes(t *testing.T) {
	tests := []struct {
		name            string
		shape           element.ElementGeometry
		x               []r3.Vec
		inside, outside float64
	}{
		{"hex8", element.Hex, box(0, 0, 0, 1, 1, 1), 0.3, 0.7},
		{"tet4", element.Tet, []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}},
			1./6. - 0.343/6., 0.343 / 6.},
		{"wedge6", element.Prism,
			[]r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}, {X: 1, Z: 1}, {Y: 1, Z: 1}},
			0.15, 0.35},
		{"pyramid5", element.Pyramid,
			[]r3.Vec{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}, {X: 0.5, Y: 0.5, Z: 1}},
			(1 - 0.343) / 3., 0.343 / 3.},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewElement(0, seq(0, len(tt.x)), tt.x, tt.shape, testOptions())
			require.NoError(t, err)
			require.NoError(t, e.Process([]*CutSide{horizontal(t, 1, 0.3)}))

			require.Len(t, e.VolumeCells(), 2)
			inside, outside := cellVolumes(e)
			assert.InDelta(t, tt.inside, inside, 1.e-12)
			assert.InDelta(t, tt.outside, outside, 1.e-12)
			for i, p := range e.NodePositions() {
				want := Inside
				if tt.x[i].Z > 0.3 {
					want = Outside
				}
				assert.Equal(t, want, p, "node %d", i)
			}
		})
	}
}

// TestElement_Tube runs a triangular tube through the top and bottom sides.
// Both end caps bound the same cell inside the tube.
func TestElement_Tube(t *testing.T) {
	corner := func(x, y, z float64) r3.Vec { return r3.Vec{X: x, Y: y, Z: z} }
	wall := func(id int, x0, y0, x1, y1 float64) *CutSide {
		return newSide(t, id,
			corner(x0, y0, -0.5), corner(x1, y1, -0.5),
			corner(x1, y1, 1.5), corner(x0, y0, 1.5))
	}
	// wall normals point away from the tube axis
	sides := []*CutSide{
		wall(1, 0.3, 0.3, 0.7, 0.3),
		wall(2, 0.3, 0.7, 0.3, 0.3),
		wall(3, 0.7, 0.3, 0.3, 0.7),
	}
	e := newHex(t, 0, box(0, 0, 0, 1, 1, 1))
	require.NoError(t, e.Process(sides))

	assert.Len(t, e.Facets(), 11)
	cycles := e.FacetGraph().Cycles()
	require.Len(t, cycles, 2)
	for _, c := range cycles {
		assert.False(t, c.Enclosed)
		assert.True(t, c.IsClosed(e.FacetGraph().Graph()))
	}
	require.Len(t, e.VolumeCells(), 2)
	inside, outside := cellVolumes(e)
	assert.InDelta(t, 0.08, inside, 1.e-12)
	assert.InDelta(t, 0.92, outside, 1.e-12)
	for _, p := range e.NodePositions() {
		assert.Equal(t, Outside, p)
	}
}

// TestElement_TouchAtNode lets the interface meet a tetrahedron in its apex
// only. The element is not cut but the apex lies on the interface.
func TestElement_TouchAtNode(t *testing.T) {
	x := []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}}
	e, err := NewElement(0, []int{0, 1, 2, 3}, x, element.Tet, testOptions())
	require.NoError(t, err)
	require.NoError(t, e.Process([]*CutSide{horizontal(t, 1, 1)}))

	assert.False(t, e.IsCut())
	require.Len(t, e.VolumeCells(), 1)
	assert.Equal(t, []Position{Undecided, Undecided, Undecided, Oncutsurface}, e.NodePositions())
	assert.Equal(t, []int{1}, e.Points()[3].CutSides())

	e.SetPosition(Inside)
	assert.Equal(t, []Position{Inside, Inside, Inside, Oncutsurface}, e.NodePositions())
}

func TestCutSide_Contains(t *testing.T) {
	cs := newSide(t, 1, r3.Vec{}, r3.Vec{X: 1}, r3.Vec{Y: 1})
	assert.True(t, cs.Contains(r3.Vec{X: 0.2, Y: 0.2}, 1.e-10))
	assert.True(t, cs.Contains(r3.Vec{X: 0.5, Y: 0.5}, 1.e-10), "on the hypotenuse")
	assert.False(t, cs.Contains(r3.Vec{X: 0.6, Y: 0.6}, 1.e-10))
	assert.False(t, cs.Contains(r3.Vec{X: 0.2, Y: 0.2, Z: 0.1}, 1.e-10))
}

// TestElement_EnclosedBubble has a closed tetrahedral interface floating
// inside the element; it becomes a cavity of the outer cell
func TestElement_EnclosedBubble(t *testing.T) {
	var (
		a = r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
		b = r3.Vec{X: 1.5, Y: 0.5, Z: 0.5}
		c = r3.Vec{X: 0.5, Y: 1.5, Z: 0.5}
		d = r3.Vec{X: 0.5, Y: 0.5, Z: 1.5}
	)
	sides := []*CutSide{
		newSide(t, 1, a, c, b),
		newSide(t, 2, a, b, d),
		newSide(t, 3, b, c, d),
		newSide(t, 4, c, a, d),
	}
	e := newHex(t, 0, box(0, 0, 0, 2, 2, 2))
	require.NoError(t, e.Process(sides))

	cycles := e.FacetGraph().Cycles()
	require.Len(t, cycles, 2)
	assert.True(t, cycles[1].Enclosed)
	require.Len(t, e.VolumeCells(), 2)
	inside, outside := cellVolumes(e)
	assert.InDelta(t, 1./6., inside, 1.e-12)
	assert.InDelta(t, 8-1./6., outside, 1.e-12)
	for _, p := range e.NodePositions() {
		assert.Equal(t, Outside, p)
	}

	var buf bytes.Buffer
	e.FacetGraph().Print(&buf)
	assert.Contains(t, buf.String(), "(enclosed)")
}

// TestElement_TouchingSide lays the interface onto the top side
func TestElement_TouchingSide(t *testing.T) {
	e := newHex(t, 0, box(0, 0, 0, 1, 1, 1))
	require.NoError(t, e.Process([]*CutSide{horizontal(t, 1, 1)}))

	require.Len(t, e.VolumeCells(), 1)
	vc := e.VolumeCells()[0]
	assert.Equal(t, Inside, vc.Position)
	assert.True(t, e.IsCut())
	assert.Empty(t, e.CutSides())

	var onCut int
	for _, f := range e.Facets() {
		if f.OnCutSide {
			onCut++
			assert.Equal(t, 1, f.Side)
		}
	}
	assert.Equal(t, 1, onCut)
	assert.Equal(t,
		[]Position{Inside, Inside, Inside, Inside, Oncutsurface, Oncutsurface, Oncutsurface, Oncutsurface},
		e.NodePositions())

	bcs, err := vc.BoundaryCells()
	require.NoError(t, err)
	require.Len(t, bcs, 1)
	assert.InDelta(t, 1, bcs[0].Area, 1.e-12)
	assert.InDelta(t, 1, bcs[0].Normal.Z, 1.e-12)
}

// TestElement_PartialTouch covers part of the top side only, which splits
// the side into a covered facet and a facet with a hole
func TestElement_PartialTouch(t *testing.T) {
	e := newHex(t, 0, box(0, 0, 0, 1, 1, 1))
	cs := newSide(t, 1,
		r3.Vec{X: 0.25, Y: 0.25, Z: 1}, r3.Vec{X: 0.75, Y: 0.25, Z: 1},
		r3.Vec{X: 0.75, Y: 0.75, Z: 1}, r3.Vec{X: 0.25, Y: 0.75, Z: 1})
	require.NoError(t, e.Process([]*CutSide{cs}))

	var top []*Facet
	for _, f := range e.Facets() {
		if f.Side == 1 {
			top = append(top, f)
		}
	}
	require.Len(t, top, 2)
	var holed, covered *Facet
	for _, f := range top {
		if f.OnCutSide {
			covered = f
		} else {
			holed = f
		}
	}
	require.NotNil(t, covered)
	require.NotNil(t, holed)
	assert.Len(t, holed.Holes, 1)
	assert.InDelta(t, 0.75, holed.Area(), 1.e-12)
	assert.InDelta(t, 0.25, covered.Area(), 1.e-12)

	require.Len(t, e.VolumeCells(), 1)
	assert.InDelta(t, 1, e.VolumeCells()[0].Volume(), 1.e-12)
	assert.Equal(t, Inside, e.VolumeCells()[0].Position)
}

// TestElement_FreeFacet ends the interface inside the element, its facet
// bounds nothing and the element stays whole
func TestElement_FreeFacet(t *testing.T) {
	e := newHex(t, 0, box(0, 0, 0, 1, 1, 1))
	cs := newSide(t, 1,
		r3.Vec{X: 0.2, Y: 0.2, Z: 0.5}, r3.Vec{X: 0.6, Y: 0.2, Z: 0.5}, r3.Vec{X: 0.2, Y: 0.6, Z: 0.5})
	require.NoError(t, e.Process([]*CutSide{cs}))

	assert.Equal(t, []int{0}, e.FacetGraph().FreeFacets())
	require.Len(t, e.VolumeCells(), 1)
	assert.False(t, e.IsCut())
	assert.Equal(t, Undecided, e.VolumeCells()[0].Position)
	assert.InDelta(t, 1, e.VolumeCells()[0].Volume(), 1.e-12)

	e.SetPosition(Outside)
	for _, p := range e.NodePositions() {
		assert.Equal(t, Outside, p)
	}
}

// TestElement_Miss keeps far away cut sides out of the element
func TestElement_Miss(t *testing.T) {
	e := newHex(t, 0, box(0, 0, 0, 1, 1, 1))
	require.NoError(t, e.Process([]*CutSide{horizontal(t, 1, 3)}))
	assert.Len(t, e.Facets(), 6)
	assert.Len(t, e.Lines(), 12)
	require.Len(t, e.VolumeCells(), 1)
	assert.False(t, e.IsCut())
}

func TestElement_Errors(t *testing.T) {
	_, err := NewElement(0, seq(0, 4), box(0, 0, 0, 1, 1, 1)[:4], element.Rectangle, testOptions())
	assert.Error(t, err, "2D shapes cannot be cut")

	warped := box(0, 0, 0, 1, 1, 1)
	warped[6].Z = 1.3
	_, err = NewElement(0, seq(0, 8), warped, element.Hex, testOptions())
	assert.Error(t, err)

	inverted := box(0, 0, 0, 1, 1, 1)
	inverted[0], inverted[4] = inverted[4], inverted[0]
	inverted[1], inverted[5] = inverted[5], inverted[1]
	inverted[2], inverted[6] = inverted[6], inverted[2]
	inverted[3], inverted[7] = inverted[7], inverted[3]
	_, err = NewElement(0, seq(0, 8), inverted, element.Hex, testOptions())
	assert.Error(t, err)

	e := newHex(t, 0, box(0, 0, 0, 1, 1, 1))
	assert.Error(t, e.MakeVolumeCells(), "volume cells need facets")
}

func TestCutSide_Validation(t *testing.T) {
	_, err := NewCutSide(1, []int{0, 1, 2, 3},
		[]r3.Vec{{}, {X: 1}, {X: 1, Y: 1, Z: 0.5}, {Y: 1}}, element.Rectangle)
	assert.ErrorIs(t, err, ErrInvalidCutSide)

	_, err = NewCutSide(1, []int{0, 1, 2}, []r3.Vec{{}, {X: 1}, {X: 2}}, element.Tri)
	assert.ErrorIs(t, err, ErrInvalidCutSide)

	_, err = NewCutSide(1, []int{0, 1}, []r3.Vec{{}, {X: 1}}, element.Line)
	assert.ErrorIs(t, err, ErrInvalidCutSide)
}

func TestPointPool_Merge(t *testing.T) {
	pp, err := NewPointPool(1.e-8)
	require.NoError(t, err)
	a := pp.NewPoint(r3.Vec{X: 1, Y: 1, Z: 1})
	b := pp.NewPoint(r3.Vec{X: 1 + 5.e-9, Y: 1, Z: 1 - 5.e-9})
	c := pp.NewPoint(r3.Vec{X: 1 + 3.e-8, Y: 1, Z: 1})
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, pp.Len())
	assert.Nil(t, pp.Find(r3.Vec{X: 2}))

	_, err = NewPointPool(0)
	assert.Error(t, err)
}

func TestMergePosition(t *testing.T) {
	pos, err := mergePosition(3, Undecided, Inside)
	require.NoError(t, err)
	assert.Equal(t, Inside, pos)

	pos, err = mergePosition(3, Outside, Oncutsurface)
	require.NoError(t, err)
	assert.Equal(t, Oncutsurface, pos)

	_, err = mergePosition(3, Inside, Outside)
	assert.ErrorIs(t, err, ErrConflictingPosition)
}

func TestPosition_Text(t *testing.T) {
	text, err := Outside.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "outside", string(text))

	var p Position
	require.NoError(t, p.UnmarshalText([]byte("oncutsurface")))
	assert.Equal(t, Oncutsurface, p)
	assert.Error(t, p.UnmarshalText([]byte("above")))
}
