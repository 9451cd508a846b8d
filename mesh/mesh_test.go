package mesh

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/DGCut/cut"
	"github.com/notargets/DGCut/element"
)

func runCutTest(t *testing.T, path string) (*CutTest, *cut.MeshIntersection) {
	t.Helper()
	ct, err := LoadCutTest(path)
	require.NoError(t, err)
	mi, err := cut.New(cut.DefaultOptions(), nil)
	require.NoError(t, err)
	require.NoError(t, ct.Populate(mi))
	require.NoError(t, mi.Cut(context.Background()))
	return ct, mi
}

func TestCutTest_Files(t *testing.T) {
	for _, name := range []string{"hex_plane", "tet_corner"} {
		t.Run(name, func(t *testing.T) {
			ct, mi := runCutTest(t, "testdata/"+name+".yaml")
			require.NotNil(t, ct.Expect)
			assert.NoError(t, ct.Expect.Check(mi))
		})
	}
}

func TestCutTest_Decode(t *testing.T) {
	ct, err := LoadCutTest("testdata/hex_plane.yaml")
	require.NoError(t, err)
	assert.Equal(t, "unit hex cut halfway", ct.Name)
	assert.Len(t, ct.Nodes, 8)
	assert.Equal(t, r3.Vec{X: 1, Y: 1, Z: 1}, ct.Nodes[6].Vec())
	want := []Cell{{ID: 1, Shape: "quad4", Nodes: []int{10, 11, 12, 13}}}
	if diff := cmp.Diff(want, ct.CutSides); diff != "" {
		t.Errorf("cut sides mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, map[int]cut.Position{0: cut.Inside, 2: cut.Inside, 4: cut.Outside, 6: cut.Outside},
		ct.Expect.NodePositions)
}

func TestCutTest_Mismatch(t *testing.T) {
	ct, mi := runCutTest(t, "testdata/hex_plane.yaml")
	cells, inside := 3, 0.25
	ct.Expect.VolumeCells = &cells
	ct.Expect.InsideVolume = &inside
	ct.Expect.NodePositions[7] = cut.Inside

	err := ct.Expect.Check(mi)
	require.Error(t, err)
	for _, want := range []string{"volume cells: got 2, want 3", "inside volume", "node 7: got outside, want inside"} {
		assert.Contains(t, err.Error(), want)
	}
	var none *Expectation
	assert.NoError(t, none.Check(mi))
}

func TestCutTest_Invalid(t *testing.T) {
	_, err := LoadCutTest("testdata/bad_node.yaml")
	assert.ErrorContains(t, err, "unknown node 1")

	_, err = LoadCutTest("testdata/missing.yaml")
	assert.Error(t, err)

	_, err = ParseCutTest(strings.NewReader("name: x\nelemnts: []\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = ParseCutTest(strings.NewReader(`
nodes: [{id: 0, x: [0, 0, 0]}, {id: 0, x: [1, 0, 0]}]
elements: [{id: 0, shape: tet4, nodes: [0, 0, 0, 0]}]
`))
	assert.ErrorContains(t, err, "duplicate node id 0")

	_, err = ParseCutTest(strings.NewReader(`
nodes: [{id: 0, x: [0, 0, 0]}]
elements: [{id: 0, shape: hex27, nodes: [0]}]
`))
	assert.ErrorIs(t, err, element.ErrUnknownShape)
}

func TestBackground_Build(t *testing.T) {
	verts := []r3.Vec{
		{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}, {Z: 1}, {X: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {Y: 1, Z: 1},
		{X: 0.5, Y: 0.5, Z: 2}, {X: 0.5, Y: 0.5, Z: 1.5},
	}
	bg, err := buildBackground(verts,
		[]string{"Hex", "Tet10", "Tri"},
		[]int{3, 3, 2},
		[][]int{{0, 1, 2, 3, 4, 5, 6, 7}, {4, 5, 7, 8, 9, 9, 9, 9, 9, 9}, {0, 1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []element.ElementGeometry{element.Hex, element.Tet}, bg.Shapes)
	assert.Equal(t, []int{4, 5, 7, 8}, bg.EToV[1])
	assert.Equal(t, 1, bg.Skipped)
	assert.Equal(t, "background mesh: 10 vertices, 2 volume elements, 1 tet4, 1 hex8 (1 lower dimensional skipped)",
		bg.String())

	mi, err := cut.New(cut.DefaultOptions(), nil)
	require.NoError(t, err)
	require.NoError(t, bg.Populate(mi))
	e, ok := mi.Element(1)
	require.True(t, ok)
	assert.InDelta(t, 1./6., e.Phys.Volume(), 1.e-12)

	_, err = buildBackground(verts, []string{"Polyhedron"}, []int{3}, [][]int{{0, 1, 2, 3}})
	assert.Error(t, err)
	_, err = buildBackground(verts, []string{"Tet"}, []int{3}, [][]int{{0, 1, 2}})
	assert.Error(t, err)
	_, err = buildBackground(verts, []string{"Tet"}, []int{3}, [][]int{{0, 1, 2, 42}})
	assert.Error(t, err)
	_, err = buildBackground(verts, []string{"Tri"}, []int{2}, [][]int{{0, 1, 2}})
	assert.Error(t, err, "surface meshes have nothing to cut")

	_, err = ReadBackground("testdata/missing.msh")
	assert.Error(t, err)
}

func TestInterface_Load(t *testing.T) {
	in, err := LoadInterface("testdata/plane_interface.yaml")
	require.NoError(t, err)
	require.Len(t, in.CutSides, 1)

	mi, err := cut.New(cut.DefaultOptions(), nil)
	require.NoError(t, err)
	require.NoError(t, mi.AddElement(0, []int{0, 1, 2, 3}, []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}}, element.Tet))
	require.NoError(t, in.Populate(mi))
	assert.Len(t, mi.CutSides(), 2, "quad4 sides are split")

	_, err = LoadInterface("testdata/hex_plane.yaml")
	assert.Error(t, err, "cut test files carry more than an interface")
}
