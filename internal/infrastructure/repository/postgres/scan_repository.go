package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/scan"
	qb "github.com/openladder/laddercore/internal/platform/querybuilder"
)

type ScanRepository struct {
	db *sqlx.DB
}

func NewScanRepository(db *sqlx.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

func (r *ScanRepository) Insert(ctx context.Context, records []scan.Record) error {
	if len(records) == 0 {
		return nil
	}

	builder := qb.InsertInto("scan").
		Columns("region", "queue_type", "league_type", "started_at", "duration_seconds")
	for _, record := range records {
		builder.Values(
			int16(record.Region), int16(record.QueueType), int16(record.LeagueType),
			record.StartedAt.UTC(), record.DurationSeconds,
		)
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return fmt.Errorf("build insert scans query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert scans: %w", err)
	}
	return nil
}

func (r *ScanRepository) MaxDurationWithin(
	ctx context.Context,
	region ladder.Region,
	queue ladder.QueueType,
	league ladder.LeagueType,
	from, to time.Time,
) (time.Duration, error) {
	query, args, err := qb.Select("MAX(duration_seconds) AS max_duration").From("scan").
		Where(
			qb.Eq("region", int16(region)),
			qb.Eq("queue_type", int16(queue)),
			qb.Eq("league_type", int16(league)),
			qb.Gte("started_at", from.UTC()),
			qb.Lte("started_at", to.UTC()),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build max scan duration query: %w", err)
	}

	var row struct {
		MaxDuration sql.NullInt64 `db:"max_duration"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return 0, fmt.Errorf("max scan duration: %w", err)
	}
	if !row.MaxDuration.Valid {
		return 0, nil
	}
	return time.Duration(row.MaxDuration.Int64) * time.Second, nil
}
