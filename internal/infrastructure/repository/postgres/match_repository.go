package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openladder/laddercore/internal/domain/match"
	qb "github.com/openladder/laddercore/internal/platform/querybuilder"
)

type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) UpsertMatch(ctx context.Context, m match.Match) (match.Match, error) {
	query, args, err := qb.InsertInto("match").
		Columns("date", "type", "map_id", "region").
		Values(m.Date.UTC(), int16(m.Type), m.MapID, int16(m.Region)).
		Suffix("ON CONFLICT (date, type, map_id, region) DO NOTHING").
		ToSQL()
	if err != nil {
		return match.Match{}, fmt.Errorf("build upsert match query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return match.Match{}, fmt.Errorf("upsert match: %w", err)
	}

	query, args, err = qb.Select("*").From("match").
		Where(
			qb.Eq("date", m.Date.UTC()),
			qb.Eq("type", int16(m.Type)),
			qb.Eq("map_id", m.MapID),
			qb.Eq("region", int16(m.Region)),
		).
		ToSQL()
	if err != nil {
		return match.Match{}, fmt.Errorf("build get match query: %w", err)
	}

	var row matchTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return match.Match{}, fmt.Errorf("get match after upsert: %w", err)
	}
	return matchFromModel(row), nil
}

func (r *MatchRepository) UpsertParticipants(ctx context.Context, participants []match.Participant) error {
	if len(participants) == 0 {
		return nil
	}

	builder := qb.InsertInto("match_participant").
		Columns("match_id", "character_id", "realm", "decision")
	for _, p := range participants {
		builder.Values(p.MatchID, p.CharacterID, p.Realm, int16(p.Decision))
	}
	query, args, err := builder.
		Suffix("ON CONFLICT (match_id, character_id) DO NOTHING").
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert match participants query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert match participants: %w", markForeignKey(err))
	}
	return nil
}

func (r *MatchRepository) ListUnresolved(ctx context.Context, from, to time.Time) ([]match.ParticipantRow, error) {
	query := `
SELECT
	m.id AS match_id, m.date, m.type, m.map_id, m.region,
	p.character_id, p.realm, p.decision
FROM match_participant p
JOIN match m ON m.id = p.match_id
WHERE p.team_id IS NULL
  AND m.date >= $1 AND m.date <= $2
ORDER BY m.id, p.character_id`

	var rows []struct {
		MatchID     int64     `db:"match_id"`
		Date        time.Time `db:"date"`
		Type        int16     `db:"type"`
		MapID       int64     `db:"map_id"`
		Region      int16     `db:"region"`
		CharacterID int64     `db:"character_id"`
		Realm       int16     `db:"realm"`
		Decision    int16     `db:"decision"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("list unresolved participants: %w", err)
	}

	out := make([]match.ParticipantRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, match.ParticipantRow{
			Match: matchFromModel(matchTableModel{
				ID: row.MatchID, Date: row.Date, Type: row.Type, MapID: row.MapID, Region: row.Region,
			}),
			Participant: participantFromModel(matchParticipantTableModel{
				MatchID: row.MatchID, CharacterID: row.CharacterID, Realm: row.Realm, Decision: row.Decision,
			}),
		})
	}
	return out, nil
}

func (r *MatchRepository) ListParticipants(ctx context.Context, matchID int64) ([]match.Participant, error) {
	query, args, err := qb.Select("*").From("match_participant").
		Where(qb.Eq("match_id", matchID)).
		OrderBy("character_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list match participants query: %w", err)
	}

	var rows []matchParticipantTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list match participants: %w", err)
	}

	out := make([]match.Participant, 0, len(rows))
	for _, row := range rows {
		out = append(out, participantFromModel(row))
	}
	return out, nil
}

// Resolve writes attribution only where team_id is still null, so a
// concurrent resolver can never flip an already-resolved row.
func (r *MatchRepository) Resolve(ctx context.Context, resolved []match.Participant) (int64, error) {
	if len(resolved) == 0 {
		return 0, nil
	}

	var values strings.Builder
	args := make([]any, 0, len(resolved)*5)
	idx := 1
	next := func() string {
		s := "$" + strconv.Itoa(idx)
		idx++
		return s
	}
	for i, p := range resolved {
		if i > 0 {
			values.WriteString(", ")
		}
		values.WriteString("(" +
			next() + "::bigint, " +
			next() + "::bigint, " +
			next() + "::bigint, " +
			next() + "::timestamptz, " +
			next() + "::int)")
		args = append(args,
			p.MatchID, p.CharacterID,
			int64PtrToNullInt64(p.TeamID),
			timePtrToNullTime(p.TeamStateTimestamp),
			intPtrToNullInt64(p.RatingChange),
		)
	}

	query := `
UPDATE match_participant AS p SET
	team_id = v.team_id,
	team_state_timestamp = v.team_state_timestamp,
	rating_change = v.rating_change
FROM (VALUES ` + values.String() + `) AS v(match_id, character_id, team_id, team_state_timestamp, rating_change)
WHERE p.match_id = v.match_id
  AND p.character_id = v.character_id
  AND p.team_id IS NULL`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("resolve match participants: %w", err)
	}
	written, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resolve match participants rows affected: %w", err)
	}
	return written, nil
}
