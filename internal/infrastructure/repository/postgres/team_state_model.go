package postgres

import (
	"database/sql"
	"time"

	"github.com/openladder/laddercore/internal/domain/teamstate"
)

type teamStateTableModel struct {
	TeamID     int64         `db:"team_id"`
	Timestamp  time.Time     `db:"timestamp"`
	Rating     int           `db:"rating"`
	Games      int           `db:"games"`
	Wins       int           `db:"wins"`
	GlobalRank sql.NullInt64 `db:"global_rank"`
	RegionRank sql.NullInt64 `db:"region_rank"`
	LeagueRank sql.NullInt64 `db:"league_rank"`
	Secondary  bool          `db:"secondary"`
	Archived   bool          `db:"archived"`
}

func stateFromModel(row teamStateTableModel) teamstate.State {
	return teamstate.State{
		TeamID:     row.TeamID,
		Timestamp:  row.Timestamp,
		Rating:     row.Rating,
		Games:      row.Games,
		Wins:       row.Wins,
		GlobalRank: nullInt64ToIntPtr(row.GlobalRank),
		RegionRank: nullInt64ToIntPtr(row.RegionRank),
		LeagueRank: nullInt64ToIntPtr(row.LeagueRank),
		Secondary:  row.Secondary,
		Archived:   row.Archived,
	}
}
