package postgres

import (
	"database/sql"
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/match"
)

type matchTableModel struct {
	ID     int64     `db:"id"`
	Date   time.Time `db:"date"`
	Type   int16     `db:"type"`
	MapID  int64     `db:"map_id"`
	Region int16     `db:"region"`
}

func matchFromModel(row matchTableModel) match.Match {
	return match.Match{
		ID:     row.ID,
		Date:   row.Date,
		Type:   match.Type(row.Type),
		MapID:  row.MapID,
		Region: ladder.Region(row.Region),
	}
}

type matchParticipantTableModel struct {
	MatchID            int64         `db:"match_id"`
	CharacterID        int64         `db:"character_id"`
	Realm              int16         `db:"realm"`
	Decision           int16         `db:"decision"`
	TeamID             sql.NullInt64 `db:"team_id"`
	TeamStateTimestamp sql.NullTime  `db:"team_state_timestamp"`
	RatingChange       sql.NullInt64 `db:"rating_change"`
}

func participantFromModel(row matchParticipantTableModel) match.Participant {
	return match.Participant{
		MatchID:            row.MatchID,
		CharacterID:        row.CharacterID,
		Realm:              row.Realm,
		Decision:           ladder.Decision(row.Decision),
		TeamID:             nullInt64ToInt64Ptr(row.TeamID),
		TeamStateTimestamp: nullTimeToTimePtr(row.TeamStateTimestamp),
		RatingChange:       nullInt64ToIntPtr(row.RatingChange),
	}
}
