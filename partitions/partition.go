package partitions

import (
	"fmt"
	"math"

	"github.com/notargets/DGCut/element"
)

// Partition represents a collection of elements that are cut together by one
// worker goroutine
type Partition struct {
	// Unique identifier for this partition
	ID int

	// Element membership
	Elements    []int // Element indices in this partition
	NumElements int   // Actual number of active elements
	MaxElements int   // Largest partition size in the layout

	// Mixed element support
	ElementTypes []element.ElementGeometry // Type of each element (for heterogeneous meshes)
	TypeGroups   []ElementGroup            // Grouped by element type
}

// ElementGroup represents elements of the same type within a partition
type ElementGroup struct {
	ElementType element.ElementGeometry
	StartIndex  int   // Starting position in partition's element array
	Count       int   // Number of elements of this type
	NumNodes    int   // Nodes per element for this type
	LocalIDs    []int // Indices within the partition
}

// PartitionLayout manages the complete decomposition of the cut elements
type PartitionLayout struct {
	// All partitions in the mesh
	Partitions []Partition

	// Global sizing information
	KpartMax      int // max(NumElements) across all partitions
	TotalElements int // Sum of all actual elements across partitions
	NumPartitions int // Total number of partitions

	// Element to partition mapping
	EToP []int // Length TotalElements: element k belongs to partition EToP[k]
}

// GetPartition returns the partition containing element k
func (pl *PartitionLayout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[elementID]
}

// ValidateLayout checks partition consistency
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("layout has %d partitions, NumPartitions is %d",
			len(pl.Partitions), pl.NumPartitions)
	}
	// Verify KpartMax
	actualMax, total := 0, 0
	for _, p := range pl.Partitions {
		if p.NumElements > actualMax {
			actualMax = p.NumElements
		}
		if p.MaxElements != pl.KpartMax {
			return fmt.Errorf("partition %d: MaxElements %d != KpartMax %d",
				p.ID, p.MaxElements, pl.KpartMax)
		}
		if len(p.Elements) != p.NumElements {
			return fmt.Errorf("partition %d: %d elements listed, NumElements %d",
				p.ID, len(p.Elements), p.NumElements)
		}
		total += p.NumElements
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	if total != pl.TotalElements || len(pl.EToP) != pl.TotalElements {
		return fmt.Errorf("element count mismatch: partitions hold %d, EToP %d, total %d",
			total, len(pl.EToP), pl.TotalElements)
	}
	// Every element appears exactly once, in the partition EToP names
	seen := make([]bool, pl.TotalElements)
	for _, p := range pl.Partitions {
		for _, k := range p.Elements {
			if k < 0 || k >= pl.TotalElements {
				return fmt.Errorf("partition %d: element %d out of range", p.ID, k)
			}
			if seen[k] {
				return fmt.Errorf("element %d assigned twice", k)
			}
			seen[k] = true
			if pl.EToP[k] != p.ID {
				return fmt.Errorf("element %d: EToP says %d, found in %d", k, pl.EToP[k], p.ID)
			}
		}
	}
	return nil
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinElements:   math.MaxInt32,
	}
	if pl.NumPartitions == 0 {
		stats.MinElements = 0
		return stats
	}
	stats.AvgElements = float64(pl.TotalElements) / float64(pl.NumPartitions)
	for _, p := range pl.Partitions {
		if p.NumElements < stats.MinElements {
			stats.MinElements = p.NumElements
		}
		if p.NumElements > stats.MaxElements {
			stats.MaxElements = p.NumElements
		}
	}
	if stats.AvgElements > 0 {
		stats.Imbalance = float64(stats.MaxElements) / stats.AvgElements
	}
	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinElements   int
	MaxElements   int
	AvgElements   float64
	Imbalance     float64 // MaxElements / AvgElements
}

func (ps PartitionStats) String() string {
	return fmt.Sprintf("%d partitions, elements min/avg/max %d/%.1f/%d, imbalance %.2f",
		ps.NumPartitions, ps.MinElements, ps.AvgElements, ps.MaxElements, ps.Imbalance)
}
