package scan

import (
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
)

// Record is the measured duration of one full ladder scan for a partition.
// The resolver uses the maximum observed duration around a match's date to
// reject technically-in-window but operationally-stale candidate states.
type Record struct {
	Region          ladder.Region
	QueueType       ladder.QueueType
	LeagueType      ladder.LeagueType
	StartedAt       time.Time
	DurationSeconds int64
}
