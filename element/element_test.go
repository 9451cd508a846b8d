package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func referenceNodes(el Element) []r3.Vec {
	rg := el.GetReferenceGeometry()
	x := make([]r3.Vec, len(rg.R))
	for i := range rg.R {
		x[i].X = rg.R[i]
		if rg.S != nil {
			x[i].Y = rg.S[i]
		}
		if rg.T != nil {
			x[i].Z = rg.T[i]
		}
	}
	return x
}

// TestLinearElements_PartitionOfUnity checks Σ N_i = 1, Σ dN_i = 0 and the
// Kronecker property at the vertices for every shape
func TestLinearElements_PartitionOfUnity(t *testing.T) {
	for g := range geometryNames {
		el, err := Lookup(g)
		require.NoError(t, err)
		props := el.GetProperties()
		rst := el.GetReferenceGeometry().Centroid()
		rst[0] += 0.01
		n := el.ShapeFunctions(rst)
		require.Len(t, n, props.NumNodes, g.String())
		var sum float64
		for _, v := range n {
			sum += v
		}
		assert.InDelta(t, 1., sum, 1.e-14, g.String())

		d := el.Derivatives(rst)
		rows, cols := d.Dims()
		require.Equal(t, int(props.Dimensions), rows)
		require.Equal(t, props.NumNodes, cols)
		for j := 0; j < rows; j++ {
			var ds float64
			for i := 0; i < cols; i++ {
				ds += d.At(j, i)
			}
			assert.InDelta(t, 0., ds, 1.e-14, g.String())
		}

		for i, x := range referenceNodes(el) {
			if g == Pyramid && i == 4 {
				continue
			}
			ni := el.ShapeFunctions([3]float64{x.X, x.Y, x.Z})
			for j := range ni {
				expect := 0.
				if i == j {
					expect = 1.
				}
				assert.InDelta(t, expect, ni[j], 1.e-12, "%v N_%d at node %d", g, j, i)
			}
		}
	}
}

// TestReferenceFaces_Outward verifies face orderings produce a positive
// enclosed volume equal to the reference volume
func TestReferenceFaces_Outward(t *testing.T) {
	volumes := map[ElementGeometry]float64{
		Hex: 8, Tet: 1. / 6., Prism: 1, Pyramid: 4. / 3.,
	}
	for g, v := range volumes {
		el, err := Lookup(g)
		require.NoError(t, err)
		pe, err := NewPhysicalElement(g, referenceNodes(el))
		require.NoError(t, err)
		assert.InDelta(t, v, pe.Volume(), 1.e-14, g.String())
		require.NoError(t, pe.CheckPlanarSides(1.e-12))
	}
}

func TestPhysicalElement_LocalCoordinates(t *testing.T) {
	x := []r3.Vec{
		{X: 0, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}, {X: 2.2, Y: 1.5, Z: 0}, {X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1}, {X: 2, Y: 0, Z: 1.2}, {X: 2.2, Y: 1.5, Z: 1.1}, {X: 0, Y: 1, Z: 1},
	}
	pe, err := NewPhysicalElement(Hex, x)
	require.NoError(t, err)
	for _, rst := range [][3]float64{{0, 0, 0}, {0.3, -0.7, 0.2}, {-1, 1, 1}} {
		p := pe.MapToPhysical(rst)
		got, converged, err := pe.LocalCoordinates(p)
		require.NoError(t, err)
		require.True(t, converged)
		for k := 0; k < 3; k++ {
			assert.InDelta(t, rst[k], got[k], 1.e-10)
		}
		assert.True(t, pe.InsideReference(got, 1.e-10))
	}

	tet, err := NewPhysicalElement(Tet, []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 2}})
	require.NoError(t, err)
	assert.InDelta(t, 2., tet.DetJ([3]float64{.1, .1, .1}), 1.e-14)
	assert.True(t, tet.PointInside(r3.Vec{X: .2, Y: .2, Z: .2}, 1.e-12))
	assert.False(t, tet.PointInside(r3.Vec{X: .6, Y: .6, Z: .2}, 1.e-12))
	rst, ok, err := tet.LocalCoordinates(r3.Vec{X: .6, Y: .6, Z: .2})
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, tet.InsideReference(rst, 1.e-12))
}

func TestNewPhysicalElement_Errors(t *testing.T) {
	_, err := NewPhysicalElement(Hex, []r3.Vec{{}})
	assert.Error(t, err)
	_, err = NewPhysicalElement(ElementGeometry(99), nil)
	assert.ErrorIs(t, err, ErrUnknownShape)
	_, err = ParseGeometry("nurbs27")
	assert.ErrorIs(t, err, ErrUnknownShape)
	g, err := ParseGeometry(" HEX8 ")
	require.NoError(t, err)
	assert.Equal(t, Hex, g)
}

func TestCheckPlanarSides_Warped(t *testing.T) {
	x := []r3.Vec{
		{}, {X: 1}, {X: 1, Y: 1}, {Y: 1},
		{Z: 1}, {X: 1, Z: 1}, {X: 1, Y: 1, Z: 1.3}, {Y: 1, Z: 1},
	}
	pe, err := NewPhysicalElement(Hex, x)
	require.NoError(t, err)
	assert.Error(t, pe.CheckPlanarSides(1.e-10))
}
