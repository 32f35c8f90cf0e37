package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/openladder/laddercore/internal/domain/cheater"
	qb "github.com/openladder/laddercore/internal/platform/querybuilder"
)

type cheaterReportTableModel struct {
	CharacterID  int64 `db:"character_id"`
	Status       bool  `db:"status"`
	Restrictions bool  `db:"restrictions"`
}

type CheaterRepository struct {
	db *sqlx.DB
}

func NewCheaterRepository(db *sqlx.DB) *CheaterRepository {
	return &CheaterRepository{db: db}
}

func (r *CheaterRepository) ListRestricted(ctx context.Context) ([]cheater.Report, error) {
	query, args, err := qb.Select("character_id", "status", "restrictions").
		From("cheater_report").
		Where(
			qb.Eq("status", true),
			qb.Eq("restrictions", true),
		).
		OrderBy("character_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list restricted reports query: %w", err)
	}

	var rows []cheaterReportTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list restricted reports: %w", err)
	}

	out := make([]cheater.Report, 0, len(rows))
	for _, row := range rows {
		out = append(out, cheater.Report{
			CharacterID:  row.CharacterID,
			Status:       row.Status,
			Restrictions: row.Restrictions,
		})
	}
	return out, nil
}
