package cycle

import (
	"context"
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
)

// Checkpoint marks per-(region, season) cycle progress. Version is a plain
// optimistic-locking counter: updates carry the expected version and fail
// when another scheduler got there first.
type Checkpoint struct {
	Region      ladder.Region
	Season      int
	LastCycleAt time.Time
	Version     int64
}

type Repository interface {
	Get(ctx context.Context, region ladder.Region, season int) (Checkpoint, bool, error)
	Insert(ctx context.Context, checkpoint Checkpoint) error
	// CompareAndSwap updates the checkpoint only when the stored version
	// still equals expectedVersion, bumping it by one. Returns false on a
	// version conflict.
	CompareAndSwap(ctx context.Context, checkpoint Checkpoint, expectedVersion int64) (bool, error)
}
