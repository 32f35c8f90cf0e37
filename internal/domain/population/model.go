package population

import (
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
)

// Snapshot aggregates team counts for one league partition at a point in
// time. Refreshed each cycle; rank computation picks the most recent row
// per partition for percentile classification.
type Snapshot struct {
	ID              int64
	Season          int
	Region          ladder.Region
	QueueType       ladder.QueueType
	TeamType        ladder.TeamType
	LeagueType      ladder.LeagueType
	GlobalTeamCount int
	RegionTeamCount int
	LeagueTeamCount int
	Created         time.Time
}

// LeagueKey is the partition a snapshot classifies.
type LeagueKey struct {
	Season     int
	Region     ladder.Region
	QueueType  ladder.QueueType
	TeamType   ladder.TeamType
	LeagueType ladder.LeagueType
}

func (s Snapshot) LeagueKey() LeagueKey {
	return LeagueKey{
		Season:     s.Season,
		Region:     s.Region,
		QueueType:  s.QueueType,
		TeamType:   s.TeamType,
		LeagueType: s.LeagueType,
	}
}
