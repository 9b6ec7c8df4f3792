package partitions

import (
	"fmt"
	"math"
)

// PartitionBuilder splits the rows of a level into partitions
type PartitionBuilder struct {
	NumRows int

	// Partitioning parameters
	TargetPartitionSize int // Desired rows per partition
	Strategy            PartitionStrategy
}

// PartitionStrategy defines how rows are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive rows
	RoundRobin                              // Distribute cyclically
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round_robin"
	default:
		return fmt.Sprintf("PartitionStrategy(%d)", int(s))
	}
}

// ParseStrategy returns the strategy whose String is name
func ParseStrategy(name string) (PartitionStrategy, error) {
	for _, s := range []PartitionStrategy{BlockPartition, RoundRobin} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown partition strategy %q", name)
}

// BuildRowLayout partitions numRows rows into partitions of about
// partitionSize rows using strategy
func BuildRowLayout(numRows, partitionSize int, strategy PartitionStrategy) (*PartitionLayout, error) {
	pb := &PartitionBuilder{
		NumRows:             numRows,
		TargetPartitionSize: partitionSize,
		Strategy:            strategy,
	}
	return pb.BuildPartitions()
}

// BuildPartitions creates a partition layout
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumRows < 1 {
		return nil, fmt.Errorf("cannot partition %d rows", pb.NumRows)
	}
	if pb.TargetPartitionSize < 1 {
		return nil, fmt.Errorf("invalid target partition size %d", pb.TargetPartitionSize)
	}
	numPartitions := pb.calculateNumPartitions()

	rToP, err := pb.partitionRows(numPartitions)
	if err != nil {
		return nil, err
	}

	partitions := pb.createPartitions(rToP, numPartitions)

	kpartMax := calculateKpartMax(partitions)
	for i := range partitions {
		partitions[i].MaxRows = kpartMax
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalRows:     pb.NumRows,
		NumPartitions: numPartitions,
		RToP:          rToP,
	}

	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	return layout, nil
}

func (pb *PartitionBuilder) calculateNumPartitions() int {
	numPartitions := int(math.Ceil(float64(pb.NumRows) / float64(pb.TargetPartitionSize)))
	if numPartitions < 1 {
		numPartitions = 1
	}
	return numPartitions
}

// partitionRows assigns rows to partitions
func (pb *PartitionBuilder) partitionRows(numPartitions int) ([]int, error) {
	rToP := make([]int, pb.NumRows)

	switch pb.Strategy {
	case BlockPartition:
		rowsPerPartition := int(math.Ceil(float64(pb.NumRows) / float64(numPartitions)))
		for i := 0; i < pb.NumRows; i++ {
			rToP[i] = i / rowsPerPartition
			if rToP[i] >= numPartitions {
				rToP[i] = numPartitions - 1
			}
		}

	case RoundRobin:
		for i := 0; i < pb.NumRows; i++ {
			rToP[i] = i % numPartitions
		}

	default:
		return nil, fmt.Errorf("unknown partition strategy %v", pb.Strategy)
	}

	return rToP, nil
}

// createPartitions builds partition structures from row assignments
func (pb *PartitionBuilder) createPartitions(rToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{ID: i, Rows: make([]int, 0, pb.TargetPartitionSize)}
	}
	for row, part := range rToP {
		partitions[part].Rows = append(partitions[part].Rows, row)
		partitions[part].NumRows++
	}
	return partitions
}

func calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		if p.NumRows > kpartMax {
			kpartMax = p.NumRows
		}
	}
	return kpartMax
}

// PartitionStatistics computes load balance metrics
func (layout *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: layout.NumPartitions,
		MinRows:       math.MaxInt32,
		MaxRows:       0,
		AvgRows:       float64(layout.TotalRows) / float64(layout.NumPartitions),
	}

	for _, p := range layout.Partitions {
		if p.NumRows < stats.MinRows {
			stats.MinRows = p.NumRows
		}
		if p.NumRows > stats.MaxRows {
			stats.MaxRows = p.NumRows
		}
	}

	stats.Imbalance = float64(stats.MaxRows) / stats.AvgRows

	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinRows       int
	MaxRows       int
	AvgRows       float64
	Imbalance     float64 // MaxRows / AvgRows
}
