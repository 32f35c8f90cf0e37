package postgres

import (
	"database/sql"
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/team"
)

type teamTableModel struct {
	ID                   int64         `db:"id"`
	QueueType            int16         `db:"queue_type"`
	TeamType             int16         `db:"team_type"`
	Region               int16         `db:"region"`
	LegacyID             string        `db:"legacy_id"`
	Season               int           `db:"season"`
	DivisionID           int64         `db:"division_id"`
	LeagueType           int16         `db:"league_type"`
	TierType             int16         `db:"tier_type"`
	Rating               int           `db:"rating"`
	Wins                 int           `db:"wins"`
	Losses               int           `db:"losses"`
	Ties                 int           `db:"ties"`
	Points               int           `db:"points"`
	LastPlayed           sql.NullTime  `db:"last_played"`
	Joined               sql.NullTime  `db:"joined"`
	PrimaryDataUpdated   time.Time     `db:"primary_data_updated"`
	GlobalRank           sql.NullInt64 `db:"global_rank"`
	RegionRank           sql.NullInt64 `db:"region_rank"`
	LeagueRank           sql.NullInt64 `db:"league_rank"`
	PopulationSnapshotID sql.NullInt64 `db:"population_snapshot_id"`
}

func teamFromModel(row teamTableModel) team.Team {
	return team.Team{
		ID:                   row.ID,
		QueueType:            ladder.QueueType(row.QueueType),
		TeamType:             ladder.TeamType(row.TeamType),
		Region:               ladder.Region(row.Region),
		LegacyID:             row.LegacyID,
		Season:               row.Season,
		DivisionID:           row.DivisionID,
		LeagueType:           ladder.LeagueType(row.LeagueType),
		TierType:             ladder.TierType(row.TierType),
		Rating:               row.Rating,
		Wins:                 row.Wins,
		Losses:               row.Losses,
		Ties:                 row.Ties,
		Points:               row.Points,
		LastPlayed:           nullTimeToTimePtr(row.LastPlayed),
		Joined:               nullTimeToTimePtr(row.Joined),
		PrimaryDataUpdated:   row.PrimaryDataUpdated,
		GlobalRank:           nullInt64ToIntPtr(row.GlobalRank),
		RegionRank:           nullInt64ToIntPtr(row.RegionRank),
		LeagueRank:           nullInt64ToIntPtr(row.LeagueRank),
		PopulationSnapshotID: nullInt64ToInt64Ptr(row.PopulationSnapshotID),
	}
}

type teamMemberTableModel struct {
	TeamID       int64 `db:"team_id"`
	CharacterID  int64 `db:"character_id"`
	Realm        int16 `db:"realm"`
	TerranGames  int   `db:"terran_games"`
	ProtossGames int   `db:"protoss_games"`
	ZergGames    int   `db:"zerg_games"`
	RandomGames  int   `db:"random_games"`
}

func memberFromModel(row teamMemberTableModel) team.Member {
	return team.Member{
		TeamID:       row.TeamID,
		CharacterID:  row.CharacterID,
		Realm:        row.Realm,
		TerranGames:  row.TerranGames,
		ProtossGames: row.ProtossGames,
		ZergGames:    row.ZergGames,
		RandomGames:  row.RandomGames,
	}
}
