package partitions

import (
	"testing"

	"github.com/notargets/DGCut/element"
)

// stripMesh is a row of n hexahedra sharing faces, numbered so that element
// k touches k-1 and k+1
func stripMesh(n int) *MeshConnectivity {
	mc := &MeshConnectivity{NumElements: n}
	for k := 0; k < n; k++ {
		base := 4 * k
		mc.EToV = append(mc.EToV, []int{base, base + 1, base + 2, base + 3,
			base + 4, base + 5, base + 6, base + 7})
		mc.ElementTypes = append(mc.ElementTypes, element.Hex)
		mc.NodesPerElem = append(mc.NodesPerElem, 8)
	}
	return mc
}

// TestBuildPartitions_Strategies checks every strategy yields a valid
// layout covering all elements once
func TestBuildPartitions_Strategies(t *testing.T) {
	for _, strategy := range []PartitionStrategy{BlockPartition, RoundRobin, GraphPartition} {
		pb, err := NewPartitionBuilder(stripMesh(10), 3, strategy)
		if err != nil {
			t.Fatalf("%v: %v", strategy, err)
		}
		layout, err := pb.BuildPartitions()
		if err != nil {
			t.Fatalf("%v: failed to build partitions: %v", strategy, err)
		}
		if layout.NumPartitions != 3 {
			t.Errorf("%v: expected 3 partitions, got %d", strategy, layout.NumPartitions)
		}
		if layout.KpartMax != 4 {
			t.Errorf("%v: expected KpartMax 4, got %d", strategy, layout.KpartMax)
		}
		if err := layout.ValidateLayout(); err != nil {
			t.Errorf("%v: %v", strategy, err)
		}
		stats := layout.PartitionStatistics()
		if stats.MinElements != 2 && stats.MinElements != 3 {
			t.Errorf("%v: unexpected min partition size %d", strategy, stats.MinElements)
		}
	}
}

// TestGraphPartition_KeepsNeighboursTogether shuffles element numbering so
// block partitioning scatters neighbours while the breadth first ordering
// keeps each partition a contiguous run of the strip
func TestGraphPartition_KeepsNeighboursTogether(t *testing.T) {
	strip := stripMesh(6)
	perm := []int{3, 0, 5, 1, 4, 2} // element k sits at strip position perm[k]
	mc := &MeshConnectivity{NumElements: 6}
	for k := 0; k < 6; k++ {
		mc.EToV = append(mc.EToV, strip.EToV[perm[k]])
	}
	pb, err := NewPartitionBuilder(mc, 2, GraphPartition)
	if err != nil {
		t.Fatal(err)
	}
	layout, err := pb.BuildPartitions()
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range layout.Partitions {
		lo, hi := 6, -1
		for _, k := range p.Elements {
			lo, hi = min(lo, perm[k]), max(hi, perm[k])
		}
		if hi-lo+1 != p.NumElements {
			t.Errorf("partition %d covers strip positions %d..%d with %d elements",
				p.ID, lo, hi, p.NumElements)
		}
	}
}

func TestPartitionLayout_ValidateLayoutErrors(t *testing.T) {
	layout := &PartitionLayout{
		Partitions: []Partition{
			{ID: 0, Elements: []int{0, 1}, NumElements: 2, MaxElements: 2},
			{ID: 1, Elements: []int{1}, NumElements: 1, MaxElements: 2},
		},
		KpartMax:      2,
		TotalElements: 3,
		NumPartitions: 2,
		EToP:          []int{0, 0, 1},
	}
	if err := layout.ValidateLayout(); err == nil {
		t.Error("expected duplicate element assignment to fail validation")
	}
	if layout.GetPartition(2) != 1 || layout.GetPartition(7) != -1 {
		t.Error("GetPartition returned wrong partition")
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy(" Graph ")
	if err != nil || s != GraphPartition {
		t.Errorf("expected graph strategy, got %v (%v)", s, err)
	}
	if _, err := ParseStrategy("metis"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestElementGroups_MixedTypes(t *testing.T) {
	mc := stripMesh(4)
	mc.ElementTypes[1] = element.Tet
	mc.NodesPerElem[1] = 4
	pb, err := NewPartitionBuilder(mc, 1, BlockPartition)
	if err != nil {
		t.Fatal(err)
	}
	layout, err := pb.BuildPartitions()
	if err != nil {
		t.Fatal(err)
	}
	groups := layout.Partitions[0].TypeGroups
	if len(groups) != 2 {
		t.Fatalf("expected 2 type groups, got %d", len(groups))
	}
	if groups[0].ElementType != element.Tet || groups[0].Count != 1 || groups[0].NumNodes != 4 {
		t.Errorf("unexpected tet group %+v", groups[0])
	}
	if groups[1].Count != 3 || groups[1].StartIndex != 1 {
		t.Errorf("unexpected hex group %+v", groups[1])
	}
}
