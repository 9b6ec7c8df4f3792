package partitions

import (
	"fmt"
)

// Partition is a set of matrix rows (degrees of freedom) processed together
// by one worker
type Partition struct {
	// Unique identifier for this partition
	ID int

	// Row membership
	Rows    []int // Global row indices in this partition, ascending
	NumRows int   // Actual number of rows
	MaxRows int   // Largest partition in the layout, for sizing scratch space
}

// PartitionLayout is the complete decomposition of the rows of one level
type PartitionLayout struct {
	// All partitions in the layout
	Partitions []Partition

	// Global sizing information
	KpartMax      int // max(NumRows) across all partitions
	TotalRows     int // Sum of all rows across partitions
	NumPartitions int // Total number of partitions

	// Row to partition mapping
	RToP []int // Length TotalRows: row i belongs to partition RToP[i]
}

// ValidateLayout checks partition consistency: every row belongs to exactly
// one partition and KpartMax matches the largest partition
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("layout has %d partitions, NumPartitions is %d",
			len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.RToP) != pl.TotalRows {
		return fmt.Errorf("RToP length %d != TotalRows %d", len(pl.RToP), pl.TotalRows)
	}
	actualMax := 0
	seen := make([]bool, pl.TotalRows)
	for _, p := range pl.Partitions {
		if p.NumRows != len(p.Rows) {
			return fmt.Errorf("partition %d: NumRows %d != len(Rows) %d",
				p.ID, p.NumRows, len(p.Rows))
		}
		if p.NumRows > actualMax {
			actualMax = p.NumRows
		}
		if p.MaxRows != pl.KpartMax {
			return fmt.Errorf("partition %d: MaxRows %d != KpartMax %d",
				p.ID, p.MaxRows, pl.KpartMax)
		}
		for _, r := range p.Rows {
			if r < 0 || r >= pl.TotalRows {
				return fmt.Errorf("partition %d: row %d out of range", p.ID, r)
			}
			if seen[r] {
				return fmt.Errorf("row %d assigned more than once", r)
			}
			if pl.RToP[r] != p.ID {
				return fmt.Errorf("row %d: RToP %d != partition %d", r, pl.RToP[r], p.ID)
			}
			seen[r] = true
		}
	}
	for r, ok := range seen {
		if !ok {
			return fmt.Errorf("row %d not assigned to any partition", r)
		}
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	return nil
}
