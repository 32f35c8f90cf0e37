package scan

import (
	"context"
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
)

type Repository interface {
	Insert(ctx context.Context, records []Record) error
	// MaxDurationWithin returns the longest scan of the partition that
	// started inside [from, to]; zero when none was recorded.
	MaxDurationWithin(ctx context.Context, region ladder.Region, queue ladder.QueueType, league ladder.LeagueType, from, to time.Time) (time.Duration, error)
}
