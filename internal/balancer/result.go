package balancer

import "github.com/google/uuid"

// Pass names, used as metric labels and in log lines.
const (
	PassPool      = "pool"
	PassDatastore = "datastore"
)

// ExitReason names the condition that terminated a balancing pass. Every pass
// ends with exactly one reason; none of them is an error.
type ExitReason string

const (
	// ExitMoveCap: the configured move cap was reached.
	ExitMoveCap ExitReason = "move_cap_reached"
	// ExitFreedEnough: enough space was freed from the most used aggregate.
	ExitFreedEnough ExitReason = "freed_enough"
	// ExitSourceDrained: the source datastore fell far enough below the fleet
	// average, allowing for dedup/compression skew between the two layers.
	ExitSourceDrained ExitReason = "source_drained"
	// ExitNoCandidates: no shadow vm within the size bounds remains.
	ExitNoCandidates ExitReason = "no_candidates"
	// ExitWithinCorridor: usage is inside the allowed corridor, nothing to do.
	ExitWithinCorridor ExitReason = "within_corridor"
	// ExitLowTargetSpace: the move target is below the free space floor.
	ExitLowTargetSpace ExitReason = "low_target_space"
	// ExitNoDatastores: no datastore is eligible for balancing.
	ExitNoDatastores ExitReason = "no_datastores"
	// ExitNoPools: no storage controller reported any aggregate.
	ExitNoPools ExitReason = "no_pools"
)

// Result is the structured outcome of one balancing pass.
type Result struct {
	Pass                 string
	Cycle                uuid.UUID
	Moves                []MoveRecord
	PoolsConsidered      int
	DatastoresConsidered int
	Reason               ExitReason
}
