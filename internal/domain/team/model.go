package team

import (
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
)

// Key is the natural identity of a team. No two stored teams ever share it;
// rows are never deleted, the team table is a permanent historical record.
type Key struct {
	QueueType ladder.QueueType
	TeamType  ladder.TeamType
	Region    ladder.Region
	LegacyID  string
	Season    int
}

// Team is one reconciled ladder team.
type Team struct {
	ID                 int64
	QueueType          ladder.QueueType
	TeamType           ladder.TeamType
	Region             ladder.Region
	LegacyID           string
	Season             int
	DivisionID         int64
	LeagueType         ladder.LeagueType
	TierType           ladder.TierType
	Rating             int
	Wins               int
	Losses             int
	Ties               int
	Points             int
	LastPlayed         *time.Time
	Joined             *time.Time
	PrimaryDataUpdated time.Time
	GlobalRank         *int
	RegionRank         *int
	LeagueRank         *int

	PopulationSnapshotID *int64
}

func (t Team) Key() Key {
	return Key{
		QueueType: t.QueueType,
		TeamType:  t.TeamType,
		Region:    t.Region,
		LegacyID:  t.LegacyID,
		Season:    t.Season,
	}
}

func (t Team) TotalGames() int {
	return t.Wins + t.Losses + t.Ties
}

// Member is one character on a team, with per-race game counts used to
// reconstruct the team's legacy composite identity during match resolution.
type Member struct {
	TeamID       int64
	CharacterID  int64
	Realm        int16
	TerranGames  int
	ProtossGames int
	ZergGames    int
	RandomGames  int
}

// Snapshot is one polled observation of a team, already parsed by the
// upstream API client. The merge pipeline consumes these; it does not know
// the wire format they arrived in.
type Snapshot struct {
	QueueType          ladder.QueueType `validate:"required"`
	TeamType           ladder.TeamType
	Region             ladder.Region `validate:"required"`
	LegacyID           string        `validate:"required"`
	Season             int           `validate:"required,gt=0"`
	DivisionID         int64         `validate:"required,gt=0"`
	LeagueType         ladder.LeagueType
	TierType           ladder.TierType
	Rating             int
	Wins               int `validate:"gte=0"`
	Losses             int `validate:"gte=0"`
	Ties               int `validate:"gte=0"`
	Points             int
	LastPlayed         *time.Time
	Joined             *time.Time
	PrimaryDataUpdated time.Time `validate:"required"`
	Members            []MemberSnapshot
}

func (s Snapshot) TotalGames() int {
	return s.Wins + s.Losses + s.Ties
}

func (s Snapshot) Key() Key {
	return Key{
		QueueType: s.QueueType,
		TeamType:  s.TeamType,
		Region:    s.Region,
		LegacyID:  s.LegacyID,
		Season:    s.Season,
	}
}

type MemberSnapshot struct {
	CharacterID  int64 `validate:"required,gt=0"`
	Realm        int16 `validate:"required,gt=0"`
	TerranGames  int
	ProtossGames int
	ZergGames    int
	RandomGames  int
}
