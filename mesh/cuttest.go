package mesh

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/notargets/DGCut/cut"
	"github.com/notargets/DGCut/element"
)

// Node is a numbered point of the background mesh or of the interface
type Node struct {
	ID int        `yaml:"id"`
	X  [3]float64 `yaml:"x"`
}

func (n Node) Vec() r3.Vec { return r3.Vec{X: n.X[0], Y: n.X[1], Z: n.X[2]} }

// Cell is an element or a cut side given by shape name and node ids
type Cell struct {
	ID    int    `yaml:"id"`
	Shape string `yaml:"shape"` // hex8, tet4, wedge6, pyramid5, tri3, quad4
	Nodes []int  `yaml:"nodes"`
}

// Expectation holds the optional results a cut test is checked against.
// Unset fields are not checked.
type Expectation struct {
	CutElements   *int                 `yaml:"cut_elements"`
	VolumeCells   *int                 `yaml:"volume_cells"`
	InsideVolume  *float64             `yaml:"inside_volume"`
	OutsideVolume *float64             `yaml:"outside_volume"`
	InterfaceArea *float64             `yaml:"interface_area"`
	NodePositions map[int]cut.Position `yaml:"node_positions"`
	Tolerance     float64              `yaml:"tolerance"` // Absolute, 1e-8 if unset
}

// Interface is the cut surface: numbered cut nodes and the tri3 or quad4
// sides built from them
type Interface struct {
	CutNodes []Node `yaml:"cut_nodes"`
	CutSides []Cell `yaml:"cut_sides"`
}

// CutTest is a self contained cut problem: a background mesh, an interface
// and the expected outcome
type CutTest struct {
	Interface `yaml:",inline"`

	Name     string       `yaml:"name"`
	Nodes    []Node       `yaml:"nodes"`
	Elements []Cell       `yaml:"elements"`
	Expect   *Expectation `yaml:"expect,omitempty"`
}

func LoadCutTest(path string) (*CutTest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ct, err := ParseCutTest(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ct, nil
}

// ParseCutTest decodes and validates a cut test. Unknown keys are errors.
func ParseCutTest(r io.Reader) (*CutTest, error) {
	var ct CutTest
	if err := decodeStrict(r, &ct); err != nil {
		return nil, fmt.Errorf("decoding cut test: %w", err)
	}
	if err := ct.Validate(); err != nil {
		return nil, err
	}
	return &ct, nil
}

// LoadInterface reads an interface file holding cut_nodes and cut_sides
func LoadInterface(path string) (*Interface, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var in Interface
	if err = decodeStrict(f, &in); err != nil {
		return nil, fmt.Errorf("%s: decoding interface: %w", path, err)
	}
	if err = in.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &in, nil
}

func decodeStrict(r io.Reader, out any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	return dec.Decode(out)
}

func nodeIndex(nodes []Node, what string) (map[int]r3.Vec, error) {
	index := make(map[int]r3.Vec, len(nodes))
	for _, n := range nodes {
		if _, ok := index[n.ID]; ok {
			return nil, fmt.Errorf("duplicate %s id %d", what, n.ID)
		}
		index[n.ID] = n.Vec()
	}
	return index, nil
}

// Validate checks ids and node references
func (ct *CutTest) Validate() error {
	if len(ct.Elements) == 0 {
		return fmt.Errorf("cut test %q has no elements", ct.Name)
	}
	nodes, err := nodeIndex(ct.Nodes, "node")
	if err != nil {
		return err
	}
	if err = checkCells(ct.Elements, nodes, "element"); err != nil {
		return err
	}
	return ct.Interface.Validate()
}

func (in *Interface) Validate() error {
	cutNodes, err := nodeIndex(in.CutNodes, "cut node")
	if err != nil {
		return err
	}
	return checkCells(in.CutSides, cutNodes, "cut side")
}

func checkCells(cells []Cell, index map[int]r3.Vec, what string) error {
	seen := make(map[int]struct{}, len(cells))
	for _, c := range cells {
		if _, ok := seen[c.ID]; ok {
			return fmt.Errorf("duplicate %s id %d", what, c.ID)
		}
		seen[c.ID] = struct{}{}
		if _, err := element.ParseGeometry(c.Shape); err != nil {
			return fmt.Errorf("%s %d: %w", what, c.ID, err)
		}
		for _, n := range c.Nodes {
			if _, ok := index[n]; !ok {
				return fmt.Errorf("%s %d: unknown node %d", what, c.ID, n)
			}
		}
	}
	return nil
}

func coordinates(ids []int, index map[int]r3.Vec) []r3.Vec {
	x := make([]r3.Vec, len(ids))
	for i, id := range ids {
		x[i] = index[id]
	}
	return x
}

// Populate adds the elements and cut sides of the test
func (ct *CutTest) Populate(mi *cut.MeshIntersection) error {
	nodes, err := nodeIndex(ct.Nodes, "node")
	if err != nil {
		return err
	}
	for _, c := range ct.Elements {
		shape, err := element.ParseGeometry(c.Shape)
		if err != nil {
			return err
		}
		if err = mi.AddElement(c.ID, c.Nodes, coordinates(c.Nodes, nodes), shape); err != nil {
			return err
		}
	}
	return ct.Interface.Populate(mi)
}

// Populate adds the cut sides
func (in *Interface) Populate(mi *cut.MeshIntersection) error {
	cutNodes, err := nodeIndex(in.CutNodes, "cut node")
	if err != nil {
		return err
	}
	for _, c := range in.CutSides {
		shape, err := element.ParseGeometry(c.Shape)
		if err != nil {
			return err
		}
		if err = mi.AddCutSide(c.ID, c.Nodes, coordinates(c.Nodes, cutNodes), shape); err != nil {
			return err
		}
	}
	return nil
}

// Check compares a finished cut with the expectation and reports every
// mismatch
func (e *Expectation) Check(mi *cut.MeshIntersection) error {
	if e == nil {
		return nil
	}
	tol := e.Tolerance
	if tol == 0 {
		tol = 1.e-8
	}
	var (
		stats = mi.Statistics()
		errs  []error
	)
	checkInt := func(name string, want *int, got int) {
		if want != nil && *want != got {
			errs = append(errs, fmt.Errorf("%s: got %d, want %d", name, got, *want))
		}
	}
	checkFloat := func(name string, want *float64, got float64) {
		if want != nil && math.Abs(*want-got) > tol {
			errs = append(errs, fmt.Errorf("%s: got %g, want %g", name, got, *want))
		}
	}
	checkInt("cut elements", e.CutElements, stats.CutElements)
	checkInt("volume cells", e.VolumeCells, stats.VolumeCells)
	checkFloat("inside volume", e.InsideVolume, stats.InsideVolume)
	checkFloat("outside volume", e.OutsideVolume, stats.OutsideVolume)
	checkFloat("interface area", e.InterfaceArea, stats.InterfaceArea)

	ids := make([]int, 0, len(e.NodePositions))
	for id := range e.NodePositions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if got := mi.NodePosition(id); got != e.NodePositions[id] {
			errs = append(errs, fmt.Errorf("node %d: got %v, want %v", id, got, e.NodePositions[id]))
		}
	}
	return errors.Join(errs...)
}
