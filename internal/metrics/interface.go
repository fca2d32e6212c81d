package metrics

import (
	"context"
	"time"
)

// Collector records state snapshots for later inspection.
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Repository defines the interface for snapshot storage
type Repository interface {
	Record(snapshot *Snapshot) error
	Recent(chip string, limit int) ([]Snapshot, error)
	Flush() error
	Close() error
}

// Snapshot is one monitoring cycle of one chip.
type Snapshot struct {
	Timestamp        time.Time
	Chip             string
	Voltage          float64
	Temperature      float64
	Current          float64
	Status           int
	ErrorCount       int
	ValidRegisters   int
	HealthScore      int
	DegradationLevel int
	Active           bool
	// RecoveryAttempted is set when the cycle ran a recovery; Recovered
	// reports its outcome.
	RecoveryAttempted bool
	Recovered         bool
}
