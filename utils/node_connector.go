package utils

import (
	"fmt"
	"sort"
)

// NodeConnector manages pick and place indices that gather per element node
// results computed inside partitions into one global node map. Elements may
// have different node counts, so every partition stores its element nodes
// in consecutive local slots.
type NodeConnector struct {
	NumPartitions int
	K             int // Total elements

	// Input connectivity
	EToV [][]int // Element → global node ids
	EToP []int   // Element → partition mapping

	// Partition mappings
	ElemsPerPartition []int         // Elements per partition
	GlobalToLocalElem []map[int]int // [partition][globalElem] → localElem
	LocalToGlobalElem [][]int       // [partition][localElem] → globalElem
	SlotOffsets       [][]int       // [partition][localElem] → first local slot
	SlotsPerPartition []int         // Local node slots per partition

	// Pick/Place indices per partition
	PickIndices  [][]int // [partition] local slots to read
	PlaceIndices [][]int // [partition] global node ids to write
}

// NewNodeConnector creates a node connector from element connectivity
func NewNodeConnector(EToV [][]int, EToP []int) (*NodeConnector, error) {
	K := len(EToV)
	if len(EToP) != K {
		return nil, fmt.Errorf("EToP length %d does not match K=%d", len(EToP), K)
	}

	numPartitions := 0
	for k, p := range EToP {
		if p < 0 {
			return nil, fmt.Errorf("element %d has negative partition %d", k, p)
		}
		if p+1 > numPartitions {
			numPartitions = p + 1
		}
	}

	nc := &NodeConnector{
		NumPartitions: numPartitions,
		K:             K,
		EToV:          EToV,
		EToP:          EToP,
	}
	nc.buildPartitionMappings()
	nc.BuildIndices()

	return nc, nil
}

// buildPartitionMappings creates bidirectional mappings between global and
// local element numbering and the local slot layout
func (nc *NodeConnector) buildPartitionMappings() {
	nc.ElemsPerPartition = make([]int, nc.NumPartitions)
	for _, p := range nc.EToP {
		nc.ElemsPerPartition[p]++
	}

	nc.GlobalToLocalElem = make([]map[int]int, nc.NumPartitions)
	nc.LocalToGlobalElem = make([][]int, nc.NumPartitions)
	nc.SlotOffsets = make([][]int, nc.NumPartitions)
	nc.SlotsPerPartition = make([]int, nc.NumPartitions)
	for p := 0; p < nc.NumPartitions; p++ {
		nc.GlobalToLocalElem[p] = make(map[int]int)
		nc.LocalToGlobalElem[p] = make([]int, 0, nc.ElemsPerPartition[p])
		nc.SlotOffsets[p] = make([]int, 0, nc.ElemsPerPartition[p])
	}

	for globalElem := 0; globalElem < nc.K; globalElem++ {
		partition := nc.EToP[globalElem]
		localElem := len(nc.LocalToGlobalElem[partition])

		nc.GlobalToLocalElem[partition][globalElem] = localElem
		nc.LocalToGlobalElem[partition] = append(nc.LocalToGlobalElem[partition], globalElem)
		nc.SlotOffsets[partition] = append(nc.SlotOffsets[partition], nc.SlotsPerPartition[partition])
		nc.SlotsPerPartition[partition] += len(nc.EToV[globalElem])
	}
}

// BuildIndices constructs pick and place indices for all partitions
func (nc *NodeConnector) BuildIndices() {
	nc.PickIndices = make([][]int, nc.NumPartitions)
	nc.PlaceIndices = make([][]int, nc.NumPartitions)
	for p := 0; p < nc.NumPartitions; p++ {
		for localElem, globalElem := range nc.LocalToGlobalElem[p] {
			offset := nc.SlotOffsets[p][localElem]
			for i, node := range nc.EToV[globalElem] {
				nc.PickIndices[p] = append(nc.PickIndices[p], offset+i)
				nc.PlaceIndices[p] = append(nc.PlaceIndices[p], node)
			}
		}
	}
}

// LocalSlot returns the slot of the i-th node of a global element inside its
// partition, or -1
func (nc *NodeConnector) LocalSlot(globalElem, i int) int {
	if globalElem < 0 || globalElem >= nc.K || i < 0 || i >= len(nc.EToV[globalElem]) {
		return -1
	}
	p := nc.EToP[globalElem]
	return nc.SlotOffsets[p][nc.GlobalToLocalElem[p][globalElem]] + i
}

// Verify checks index validity and conservation properties
func (nc *NodeConnector) Verify() error {
	// Local validity: all pick indices are within bounds
	for p := 0; p < nc.NumPartitions; p++ {
		for _, idx := range nc.PickIndices[p] {
			if idx < 0 || idx >= nc.SlotsPerPartition[p] {
				return fmt.Errorf("invalid pick index %d for partition %d (max %d)",
					idx, p, nc.SlotsPerPartition[p]-1)
			}
		}
	}

	// Correspondence: pick and place arrays have same length
	for p := 0; p < nc.NumPartitions; p++ {
		if len(nc.PickIndices[p]) != len(nc.PlaceIndices[p]) {
			return fmt.Errorf("length mismatch: pick[%d]=%d, place[%d]=%d",
				p, len(nc.PickIndices[p]), p, len(nc.PlaceIndices[p]))
		}
	}

	// Conservation: total picks equal total element nodes
	totalPicks, totalNodes := 0, 0
	for p := 0; p < nc.NumPartitions; p++ {
		totalPicks += len(nc.PickIndices[p])
	}
	for _, nodes := range nc.EToV {
		totalNodes += len(nodes)
	}
	if totalPicks != totalNodes {
		return fmt.Errorf("conservation error: total picks %d != total element nodes %d",
			totalPicks, totalNodes)
	}

	return nil
}

// NewLocalBuffers allocates one slot slice per partition
func NewLocalBuffers[T any](nc *NodeConnector) [][]T {
	buf := make([][]T, nc.NumPartitions)
	for p := range buf {
		buf[p] = make([]T, nc.SlotsPerPartition[p])
	}
	return buf
}

// MergeNodeValues gathers local slot values into a global node map.
// resolve is called when a node already holds a value; it returns the value
// to keep or an error for irreconcilable values. Partitions are merged in
// order so the result does not depend on scheduling.
func MergeNodeValues[T any](nc *NodeConnector, local [][]T,
	resolve func(node int, have, next T) (T, error)) (map[int]T, error) {
	if len(local) != nc.NumPartitions {
		return nil, fmt.Errorf("got %d local buffers for %d partitions", len(local), nc.NumPartitions)
	}
	global := make(map[int]T)
	for p := 0; p < nc.NumPartitions; p++ {
		if len(local[p]) != nc.SlotsPerPartition[p] {
			return nil, fmt.Errorf("partition %d buffer has %d slots, expected %d",
				p, len(local[p]), nc.SlotsPerPartition[p])
		}
		for i, slot := range nc.PickIndices[p] {
			node := nc.PlaceIndices[p][i]
			next := local[p][slot]
			have, ok := global[node]
			if !ok {
				global[node] = next
				continue
			}
			merged, err := resolve(node, have, next)
			if err != nil {
				return nil, err
			}
			global[node] = merged
		}
	}
	return global, nil
}

// SharedNodes lists global nodes referenced from more than one partition
func (nc *NodeConnector) SharedNodes() []int {
	owners := make(map[int]map[int]struct{})
	for p := 0; p < nc.NumPartitions; p++ {
		for _, node := range nc.PlaceIndices[p] {
			if owners[node] == nil {
				owners[node] = make(map[int]struct{})
			}
			owners[node][p] = struct{}{}
		}
	}
	var shared []int
	for node, parts := range owners {
		if len(parts) > 1 {
			shared = append(shared, node)
		}
	}
	sort.Ints(shared)
	return shared
}
