package partitions

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/notargets/DGCut/element"
)

// PartitionBuilder constructs partitions from mesh connectivity
type PartitionBuilder struct {
	// Mesh connectivity
	Mesh *MeshConnectivity

	// Partitioning parameters
	TargetPartitionSize int // Desired elements per partition
	Strategy            PartitionStrategy
}

// MeshConnectivity provides the mesh topology needed for partitioning
type MeshConnectivity struct {
	NumElements  int
	ElementTypes []element.ElementGeometry
	NodesPerElem []int // Vertex count for each element

	// Element to global node ids, used to find neighbours
	EToV [][]int
}

// PartitionStrategy defines how elements are grouped
type PartitionStrategy int

const (
	// Simple strategies
	BlockPartition PartitionStrategy = iota // Consecutive elements
	RoundRobin                              // Distribute cyclically

	// Graph-based strategy: breadth first ordering over shared nodes so
	// neighbouring elements land in the same partition
	GraphPartition
)

var strategyNames = map[PartitionStrategy]string{
	BlockPartition: "block",
	RoundRobin:     "roundrobin",
	GraphPartition: "graph",
}

func (s PartitionStrategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// ParseStrategy maps a configuration name to a strategy
func ParseStrategy(name string) (PartitionStrategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown partition strategy %q", name)
}

// NewPartitionBuilder sizes partitions so that numWorkers partitions cover
// the mesh
func NewPartitionBuilder(mesh *MeshConnectivity, numWorkers int, strategy PartitionStrategy) (*PartitionBuilder, error) {
	if mesh == nil {
		return nil, fmt.Errorf("nil mesh connectivity")
	}
	if numWorkers < 1 {
		return nil, fmt.Errorf("invalid worker count %d", numWorkers)
	}
	if mesh.EToV != nil && len(mesh.EToV) != mesh.NumElements {
		return nil, fmt.Errorf("EToV length %d does not match NumElements=%d",
			len(mesh.EToV), mesh.NumElements)
	}
	size := int(math.Ceil(float64(mesh.NumElements) / float64(numWorkers)))
	if size < 1 {
		size = 1
	}
	return &PartitionBuilder{Mesh: mesh, TargetPartitionSize: size, Strategy: strategy}, nil
}

// BuildPartitions creates a partition layout from mesh connectivity
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.TargetPartitionSize < 1 {
		return nil, fmt.Errorf("invalid target partition size %d", pb.TargetPartitionSize)
	}
	// Determine number of partitions needed
	numPartitions := pb.calculateNumPartitions()

	// Partition the elements
	eToP := pb.partitionElements(numPartitions)

	// Create partition structures
	partitions := pb.createPartitions(eToP, numPartitions)

	kpartMax := pb.calculateKpartMax(partitions)
	for i := range partitions {
		partitions[i].MaxElements = kpartMax
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalElements: pb.Mesh.NumElements,
		NumPartitions: numPartitions,
		EToP:          eToP,
	}

	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	return layout, nil
}

// calculateNumPartitions determines optimal partition count
func (pb *PartitionBuilder) calculateNumPartitions() int {
	numPartitions := int(math.Ceil(float64(pb.Mesh.NumElements) / float64(pb.TargetPartitionSize)))
	if numPartitions < 1 {
		numPartitions = 1
	}
	return numPartitions
}

// partitionElements assigns elements to partitions
func (pb *PartitionBuilder) partitionElements(numPartitions int) []int {
	eToP := make([]int, pb.Mesh.NumElements)

	switch pb.Strategy {
	case RoundRobin:
		for i := 0; i < pb.Mesh.NumElements; i++ {
			eToP[i] = i % numPartitions
		}

	case GraphPartition:
		if pb.Mesh.EToV == nil {
			return pb.blocks(identity(pb.Mesh.NumElements), numPartitions)
		}
		return pb.blocks(pb.breadthFirstOrder(), numPartitions)

	default:
		return pb.blocks(identity(pb.Mesh.NumElements), numPartitions)
	}

	return eToP
}

func identity(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// blocks cuts an element ordering into consecutive runs
func (pb *PartitionBuilder) blocks(order []int, numPartitions int) []int {
	eToP := make([]int, pb.Mesh.NumElements)
	elementsPerPartition := int(math.Ceil(float64(pb.Mesh.NumElements) / float64(numPartitions)))
	if elementsPerPartition < 1 {
		elementsPerPartition = 1
	}
	for i, k := range order {
		p := i / elementsPerPartition
		if p >= numPartitions {
			p = numPartitions - 1
		}
		eToP[k] = p
	}
	return eToP
}

// ElementGraph links elements that share at least one node
func (mc *MeshConnectivity) ElementGraph() *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	for k := 0; k < mc.NumElements; k++ {
		g.AddNode(simple.Node(k))
	}
	byNode := make(map[int][]int)
	for k, nodes := range mc.EToV {
		for _, n := range nodes {
			byNode[n] = append(byNode[n], k)
		}
	}
	for _, elems := range byNode {
		for i := 0; i < len(elems); i++ {
			for j := i + 1; j < len(elems); j++ {
				if elems[i] != elems[j] {
					g.SetEdge(g.NewEdge(simple.Node(elems[i]), simple.Node(elems[j])))
				}
			}
		}
	}
	return g
}

// breadthFirstOrder walks every connected component of the element graph.
// Walks start from the least connected elements (Cuthill-McKee style), which
// keeps the partitions of elongated meshes contiguous.
func (pb *PartitionBuilder) breadthFirstOrder() []int {
	var (
		g      = pb.Mesh.ElementGraph()
		order  = make([]int, 0, pb.Mesh.NumElements)
		bf     = traverse.BreadthFirst{
			Visit: func(n graph.Node) { order = append(order, int(n.ID())) },
		}
		starts = identity(pb.Mesh.NumElements)
		degree = make([]int, pb.Mesh.NumElements)
	)
	for k := range degree {
		degree[k] = g.From(int64(k)).Len()
	}
	sort.SliceStable(starts, func(i, j int) bool {
		return degree[starts[i]] < degree[starts[j]]
	})
	for _, k := range starts {
		node := g.Node(int64(k))
		if bf.Visited(node) {
			continue
		}
		bf.Walk(g, node, nil)
	}
	return order
}

// createPartitions builds partition structures from element assignments
func (pb *PartitionBuilder) createPartitions(eToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{
			ID:           i,
			Elements:     make([]int, 0),
			ElementTypes: make([]element.ElementGeometry, 0),
		}
	}

	for elem, part := range eToP {
		partitions[part].Elements = append(partitions[part].Elements, elem)
		if pb.Mesh.ElementTypes != nil {
			partitions[part].ElementTypes = append(partitions[part].ElementTypes,
				pb.Mesh.ElementTypes[elem])
		}
		partitions[part].NumElements++
	}

	for i := range partitions {
		partitions[i].TypeGroups = pb.createElementGroups(&partitions[i])
	}

	return partitions
}

// createElementGroups organizes elements by type within a partition
func (pb *PartitionBuilder) createElementGroups(p *Partition) []ElementGroup {
	if len(p.ElementTypes) == 0 {
		return nil
	}

	typeCounts := make(map[element.ElementGeometry][]int)
	for i, elemType := range p.ElementTypes {
		typeCounts[elemType] = append(typeCounts[elemType], i)
	}
	types := make([]element.ElementGeometry, 0, len(typeCounts))
	for t := range typeCounts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	groups := make([]ElementGroup, 0, len(typeCounts))
	currentIndex := 0
	for _, elemType := range types {
		indices := typeCounts[elemType]
		group := ElementGroup{
			ElementType: elemType,
			StartIndex:  currentIndex,
			Count:       len(indices),
			LocalIDs:    indices,
		}
		if pb.Mesh.NodesPerElem != nil {
			group.NumNodes = pb.Mesh.NodesPerElem[p.Elements[indices[0]]]
		}
		groups = append(groups, group)
		currentIndex += len(indices)
	}

	return groups
}

// calculateKpartMax finds maximum elements across all partitions
func (pb *PartitionBuilder) calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		if p.NumElements > kpartMax {
			kpartMax = p.NumElements
		}
	}
	return kpartMax
}
