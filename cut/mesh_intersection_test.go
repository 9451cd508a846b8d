package cut

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/DGCut/element"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// addGrid adds an nx by ny by 1 block of unit hexes with shared node ids
func addGrid(t *testing.T, mi *MeshIntersection, nx, ny int) {
	t.Helper()
	node := func(i, j, k int) int { return i + (nx+1)*(j+(ny+1)*k) }
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			var (
				x  = box(float64(i), float64(j), 0, float64(i+1), float64(j+1), 1)
				id = i + nx*j
			)
			nodes := []int{
				node(i, j, 0), node(i+1, j, 0), node(i+1, j+1, 0), node(i, j+1, 0),
				node(i, j, 1), node(i+1, j, 1), node(i+1, j+1, 1), node(i, j+1, 1),
			}
			require.NoError(t, mi.AddElement(id, nodes, x, element.Hex))
		}
	}
}

// TestMeshIntersection_Strip cuts the middle hex of a strip; the positions
// travel to both neighbours through shared nodes and a detached hex is
// decided by a ray
func TestMeshIntersection_Strip(t *testing.T) {
	mi, err := New(testOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)
	addGrid(t, mi, 3, 1)
	require.NoError(t, mi.AddElement(10, seq(100, 8), box(5, 0, 0, 6, 1, 1), element.Hex))
	require.NoError(t, mi.AddCutSide(1, []int{1000, 1001, 1002, 1003}, []r3.Vec{
		{X: 1.5, Y: -1, Z: -1}, {X: 1.5, Y: 2, Z: -1}, {X: 1.5, Y: 2, Z: 2}, {X: 1.5, Y: -1, Z: 2},
	}, element.Rectangle))
	require.Len(t, mi.CutSides(), 2)
	assert.Equal(t, []int{2, 3}, []int{mi.CutSides()[0].ID, mi.CutSides()[1].ID})

	require.NoError(t, mi.Cut(context.Background()))
	assert.Empty(t, mi.Failures())

	assert.Equal(t, Inside, mi.ElementPosition(0))
	assert.Equal(t, Oncutsurface, mi.ElementPosition(1))
	assert.Equal(t, Outside, mi.ElementPosition(2))
	assert.Equal(t, Outside, mi.ElementPosition(10))
	assert.Equal(t, Undecided, mi.ElementPosition(99))
	require.Len(t, mi.CutElements(), 1)
	assert.Equal(t, 1, mi.CutElements()[0].ID)

	assert.Equal(t, Inside, mi.NodePosition(0))
	assert.Equal(t, Inside, mi.NodePosition(1))
	assert.Equal(t, Outside, mi.NodePosition(2))
	assert.Equal(t, Outside, mi.NodePosition(3))
	assert.Equal(t, Outside, mi.NodePosition(104))

	stats := mi.Statistics()
	assert.Equal(t, 4, stats.Elements)
	assert.Equal(t, 2, stats.CutSides)
	assert.Equal(t, 1, stats.CutElements)
	assert.Equal(t, 2, stats.VolumeCells)
	assert.Equal(t, 2, stats.CutFacets)
	assert.InDelta(t, 1.5, stats.InsideVolume, 1.e-12)
	assert.InDelta(t, 2.5, stats.OutsideVolume, 1.e-12)
	assert.InDelta(t, 0, stats.UndecidedVolume, 1.e-12)
	assert.InDelta(t, 1, stats.InterfaceArea, 1.e-12)
	assert.Equal(t, 8, stats.NodesInside)
	assert.Equal(t, 16, stats.NodesOutside)
	assert.Equal(t, 0, stats.NodesUndecided)
	assert.Contains(t, mi.String(), "=== Cut Summary ===")

	assert.Error(t, mi.Cut(context.Background()), "a mesh is cut once")
	assert.Error(t, mi.AddElement(11, seq(200, 8), box(7, 0, 0, 8, 1, 1), element.Hex))
}

// TestMeshIntersection_Slab cuts every element of a slab with each
// partition strategy; all workers must agree on the shared nodes
func TestMeshIntersection_Slab(t *testing.T) {
	for _, strategy := range []string{"block", "roundrobin", "graph"} {
		t.Run(strategy, func(t *testing.T) {
			opts := testOptions()
			opts.Strategy = strategy
			opts.Workers = 3
			mi, err := New(opts, nil)
			require.NoError(t, err)
			addGrid(t, mi, 3, 3)
			require.NoError(t, mi.AddCutSide(7, []int{0, 1, 2, 3}, []r3.Vec{
				{X: -1, Y: -1, Z: 0.5}, {X: 4, Y: -1, Z: 0.5}, {X: 4, Y: 4, Z: 0.5}, {X: -1, Y: 4, Z: 0.5},
			}, element.Rectangle))
			require.NoError(t, mi.Cut(context.Background()))

			stats := mi.Statistics()
			assert.Equal(t, 9, stats.CutElements)
			assert.Equal(t, 18, stats.VolumeCells)
			assert.InDelta(t, 4.5, stats.InsideVolume, 1.e-10)
			assert.InDelta(t, 4.5, stats.OutsideVolume, 1.e-10)
			assert.InDelta(t, 9, stats.InterfaceArea, 1.e-10)
			for n, pos := range mi.NodePositions() {
				if n < 16 {
					assert.Equal(t, Inside, pos, "node %d", n)
				} else {
					assert.Equal(t, Outside, pos, "node %d", n)
				}
			}

			e, ok := mi.Element(4)
			require.True(t, ok)
			for _, vc := range e.VolumeCells() {
				gps, err := vc.BoundaryGaussPoints(opts.GaussDegree)
				require.NoError(t, err)
				var w float64
				for _, gp := range gps {
					w += gp.Weight
					assert.InDelta(t, 0.5, gp.X.Z, 1.e-12)
				}
				assert.InDelta(t, 1, w, 1.e-12)

				div, err := vc.IntegrateDivergence(func(x r3.Vec) r3.Vec { return x }, 2)
				require.NoError(t, err)
				assert.InDelta(t, 3*vc.Volume(), div, 1.e-10)
			}
		})
	}
}

func TestMeshIntersection_NoCandidates(t *testing.T) {
	mi, err := New(testOptions(), nil)
	require.NoError(t, err)
	addGrid(t, mi, 2, 1)
	require.NoError(t, mi.AddCutSide(1, []int{0, 1, 2}, []r3.Vec{
		{X: 10, Y: 0, Z: 0}, {X: 11, Y: 0, Z: 0}, {X: 10, Y: 1, Z: 0},
	}, element.Tri))
	require.NoError(t, mi.Cut(context.Background()))
	assert.Empty(t, mi.CutElements())
	assert.Equal(t, Undecided, mi.ElementPosition(0))
	assert.InDelta(t, 2, mi.Statistics().UndecidedVolume, 1.e-12)
}

func TestMeshIntersection_Input(t *testing.T) {
	opts := testOptions()
	opts.Strategy = "metis"
	_, err := New(opts, nil)
	assert.Error(t, err)

	mi, err := New(testOptions(), nil)
	require.NoError(t, err)
	tri := []r3.Vec{{}, {X: 1}, {Y: 1}}
	require.NoError(t, mi.AddCutSide(1, []int{0, 1, 2}, tri, element.Tri))
	assert.ErrorIs(t, mi.AddCutSide(1, []int{0, 1, 2}, tri, element.Tri), ErrInvalidCutSide)

	require.NoError(t, mi.AddElement(0, seq(0, 8), box(0, 0, 0, 1, 1, 1), element.Hex))
	assert.Error(t, mi.AddElement(0, seq(0, 8), box(0, 0, 0, 1, 1, 1), element.Hex))
}

func TestMeshIntersection_Canceled(t *testing.T) {
	mi, err := New(testOptions(), nil)
	require.NoError(t, err)
	addGrid(t, mi, 2, 2)
	require.NoError(t, mi.AddCutSide(1, []int{0, 1, 2, 3}, []r3.Vec{
		{X: -1, Y: -1, Z: 0.5}, {X: 3, Y: -1, Z: 0.5}, {X: 3, Y: 3, Z: 0.5}, {X: -1, Y: 3, Z: 0.5},
	}, element.Rectangle))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, mi.Cut(ctx), context.Canceled)
}
