package teamstate

import "time"

// State is one appended time-series row per team per poll cycle.
// Timestamps are strictly increasing per team.
type State struct {
	TeamID     int64
	Timestamp  time.Time
	Rating     int
	Games      int
	Wins       int
	GlobalRank *int
	RegionRank *int
	LeagueRank *int
	// Secondary marks history taken from a non-primary queue so cross-queue
	// rank series never mix.
	Secondary bool
	// Archived rows are rating extrema or window boundary points exempt
	// from TTL deletion.
	Archived bool
}
