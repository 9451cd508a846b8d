package mesh

import (
	"fmt"
	"strings"

	"github.com/notargets/gocfd/DG3D/mesh/readers"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/DGCut/cut"
	"github.com/notargets/DGCut/element"
)

// Background is a volume mesh to be cut. Element i has id i, node ids are
// vertex indices.
type Background struct {
	Vertices []r3.Vec
	EToV     [][]int // Corner nodes only
	Shapes   []element.ElementGeometry
	Skipped  int // Surface and line elements of the mesh file
}

// ReadBackground reads any mesh format the gocfd readers support and keeps
// the volume elements
func ReadBackground(path string) (*Background, error) {
	m, err := readers.ReadMeshFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mesh %s: %w", path, err)
	}
	verts := make([]r3.Vec, len(m.Vertices))
	for i, v := range m.Vertices {
		verts[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}
	types := make([]string, m.NumElements)
	dims := make([]int, m.NumElements)
	for i := 0; i < m.NumElements; i++ {
		types[i] = fmt.Sprint(m.ElementTypes[i])
		dims[i] = int(m.ElementTypes[i].GetDimension())
	}
	return buildBackground(verts, types, dims, m.EtoV[:m.NumElements])
}

// volumeShape maps mesh file type names to linear volume shapes. Higher
// order variants (tet10, hex27, ...) fall back to their corners.
func volumeShape(name string) (element.ElementGeometry, bool) {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "tet"):
		return element.Tet, true
	case strings.HasPrefix(name, "hex"):
		return element.Hex, true
	case strings.HasPrefix(name, "prism"), strings.HasPrefix(name, "wedge"):
		return element.Prism, true
	case strings.HasPrefix(name, "pyr"):
		return element.Pyramid, true
	}
	return 0, false
}

func buildBackground(verts []r3.Vec, types []string, dims []int, etov [][]int) (*Background, error) {
	bg := &Background{Vertices: verts}
	for i, name := range types {
		if dims[i] != 3 {
			bg.Skipped++
			continue
		}
		shape, ok := volumeShape(name)
		if !ok {
			return nil, fmt.Errorf("element %d: unsupported volume type %s", i, name)
		}
		ref, err := element.Lookup(shape)
		if err != nil {
			return nil, err
		}
		nv := ref.GetProperties().NumNodes
		if len(etov[i]) < nv {
			return nil, fmt.Errorf("element %d: %s needs %d nodes, has %d", i, name, nv, len(etov[i]))
		}
		for _, n := range etov[i][:nv] {
			if n < 0 || n >= len(verts) {
				return nil, fmt.Errorf("element %d: vertex %d out of range", i, n)
			}
		}
		bg.EToV = append(bg.EToV, append([]int(nil), etov[i][:nv]...))
		bg.Shapes = append(bg.Shapes, shape)
	}
	if len(bg.EToV) == 0 {
		return nil, fmt.Errorf("mesh has no volume elements")
	}
	return bg, nil
}

// Populate adds every background element to the cut
func (bg *Background) Populate(mi *cut.MeshIntersection) error {
	for k, nodes := range bg.EToV {
		x := make([]r3.Vec, len(nodes))
		for i, n := range nodes {
			x[i] = bg.Vertices[n]
		}
		if err := mi.AddElement(k, nodes, x, bg.Shapes[k]); err != nil {
			return err
		}
	}
	return nil
}

func (bg *Background) String() string {
	counts := make(map[element.ElementGeometry]int)
	for _, s := range bg.Shapes {
		counts[s]++
	}
	var b strings.Builder
	fmt.Fprintf(&b, "background mesh: %d vertices, %d volume elements", len(bg.Vertices), len(bg.EToV))
	for _, s := range []element.ElementGeometry{element.Tet, element.Hex, element.Prism, element.Pyramid} {
		if counts[s] > 0 {
			fmt.Fprintf(&b, ", %d %v", counts[s], s)
		}
	}
	if bg.Skipped > 0 {
		fmt.Fprintf(&b, " (%d lower dimensional skipped)", bg.Skipped)
	}
	return b.String()
}
