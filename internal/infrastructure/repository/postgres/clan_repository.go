package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openladder/laddercore/internal/domain/clan"
	qb "github.com/openladder/laddercore/internal/platform/querybuilder"
)

type clanEventTableModel struct {
	CharacterID          int64         `db:"character_id"`
	Created              time.Time     `db:"created"`
	ClanID               sql.NullInt64 `db:"clan_id"`
	Type                 int16         `db:"type"`
	SecondsSincePrevious sql.NullInt64 `db:"seconds_since_previous"`
}

func clanEventFromModel(row clanEventTableModel) clan.Event {
	return clan.Event{
		CharacterID:          row.CharacterID,
		Created:              row.Created,
		ClanID:               nullInt64ToInt64Ptr(row.ClanID),
		Type:                 clan.EventType(row.Type),
		SecondsSincePrevious: nullInt64ToInt64Ptr(row.SecondsSincePrevious),
	}
}

type ClanRepository struct {
	db *sqlx.DB
}

func NewClanRepository(db *sqlx.DB) *ClanRepository {
	return &ClanRepository{db: db}
}

func (r *ClanRepository) LastEvents(ctx context.Context, characterIDs []int64) (map[int64]clan.Event, error) {
	out := make(map[int64]clan.Event, len(characterIDs))
	if len(characterIDs) == 0 {
		return out, nil
	}

	query, args, err := qb.Select("DISTINCT ON (character_id) *").From("clan_member_event").
		Where(qb.Int64In("character_id", characterIDs)).
		OrderBy("character_id", "created DESC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build last clan events query: %w", err)
	}

	var rows []clanEventTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("last clan events: %w", err)
	}

	for _, row := range rows {
		out[row.CharacterID] = clanEventFromModel(row)
	}
	return out, nil
}

func (r *ClanRepository) Append(ctx context.Context, events []clan.Event) error {
	if len(events) == 0 {
		return nil
	}

	builder := qb.InsertInto("clan_member_event").
		Columns("character_id", "created", "clan_id", "type", "seconds_since_previous")
	for _, event := range events {
		builder.Values(
			event.CharacterID, event.Created.UTC(),
			int64PtrToNullInt64(event.ClanID),
			int16(event.Type),
			int64PtrToNullInt64(event.SecondsSincePrevious),
		)
	}
	query, args, err := builder.
		Suffix("ON CONFLICT (character_id, created) DO NOTHING").
		ToSQL()
	if err != nil {
		return fmt.Errorf("build append clan events query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append clan events: %w", err)
	}
	return nil
}

func (r *ClanRepository) ListByCharacterAfter(ctx context.Context, characterID int64, after time.Time, limit int) ([]clan.Event, error) {
	query, args, err := qb.Select("*").From("clan_member_event").
		Where(
			qb.Eq("character_id", characterID),
			qb.Gt("created", after.UTC()),
		).
		OrderBy("created").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list clan events query: %w", err)
	}

	var rows []clanEventTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list clan events: %w", err)
	}

	out := make([]clan.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, clanEventFromModel(row))
	}
	return out, nil
}
