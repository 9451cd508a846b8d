package cut

import (
	"fmt"
	"strings"
)

// Statistics summarizes a cut. Volumes of elements without volume cells are
// booked under their element position.
type Statistics struct {
	Elements       int `yaml:"elements"`
	CutSides       int `yaml:"cut_sides"`
	CutElements    int `yaml:"cut_elements"`
	FailedElements int `yaml:"failed_elements"`
	VolumeCells    int `yaml:"volume_cells"`
	Facets         int `yaml:"facets"`
	CutFacets      int `yaml:"cut_facets"`
	BoundaryCells  int `yaml:"boundary_cells"`

	InsideVolume    float64 `yaml:"inside_volume"`
	OutsideVolume   float64 `yaml:"outside_volume"`
	UndecidedVolume float64 `yaml:"undecided_volume"`
	InterfaceArea   float64 `yaml:"interface_area"` // Counted on outside cells

	NodesInside    int `yaml:"nodes_inside"`
	NodesOutside   int `yaml:"nodes_outside"`
	NodesOnSurface int `yaml:"nodes_on_surface"`
	NodesUndecided int `yaml:"nodes_undecided"`
}

func (mi *MeshIntersection) Statistics() Statistics {
	stats := Statistics{
		Elements:       len(mi.elements),
		CutSides:       len(mi.sides),
		FailedElements: len(mi.failed),
	}
	book := func(pos Position, vol float64) {
		switch pos {
		case Inside:
			stats.InsideVolume += vol
		case Outside:
			stats.OutsideVolume += vol
		default:
			stats.UndecidedVolume += vol
		}
	}
	for k, e := range mi.elements {
		if !mi.processed(k) {
			pos := Undecided
			if mi.elemPos != nil {
				pos = mi.elemPos[k]
			}
			book(pos, e.Phys.Volume())
			continue
		}
		if e.IsCut() {
			stats.CutElements++
		}
		stats.Facets += len(e.facets)
		for _, f := range e.facets {
			if f.IsCutFacet() {
				stats.CutFacets++
			}
		}
		for _, vc := range e.cells {
			stats.VolumeCells++
			book(vc.Position, vc.Volume())
			if vc.Position != Outside {
				continue
			}
			bcs, err := vc.BoundaryCells()
			if err != nil {
				continue
			}
			stats.BoundaryCells += len(bcs)
			for _, bc := range bcs {
				stats.InterfaceArea += bc.Area
			}
		}
	}
	seen := make(map[int]struct{})
	for _, e := range mi.elements {
		for _, n := range e.Nodes {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			switch mi.nodePos[n] {
			case Inside:
				stats.NodesInside++
			case Outside:
				stats.NodesOutside++
			case Oncutsurface:
				stats.NodesOnSurface++
			default:
				stats.NodesUndecided++
			}
		}
	}
	return stats
}

func (s Statistics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Elements: %d (%d cut, %d failed), cut sides: %d\n",
		s.Elements, s.CutElements, s.FailedElements, s.CutSides)
	fmt.Fprintf(&b, "Volume cells: %d, facets: %d (%d cut), boundary cells: %d\n",
		s.VolumeCells, s.Facets, s.CutFacets, s.BoundaryCells)
	fmt.Fprintf(&b, "Volume inside/outside/undecided: %.6g / %.6g / %.6g\n",
		s.InsideVolume, s.OutsideVolume, s.UndecidedVolume)
	fmt.Fprintf(&b, "Interface area: %.6g\n", s.InterfaceArea)
	fmt.Fprintf(&b, "Nodes inside/outside/on surface/undecided: %d / %d / %d / %d\n",
		s.NodesInside, s.NodesOutside, s.NodesOnSurface, s.NodesUndecided)
	return b.String()
}
