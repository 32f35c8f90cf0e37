package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openladder/laddercore/internal/domain/cycle"
	"github.com/openladder/laddercore/internal/domain/ladder"
	qb "github.com/openladder/laddercore/internal/platform/querybuilder"
)

type cycleCheckpointTableModel struct {
	Region      int16     `db:"region"`
	Season      int       `db:"season"`
	LastCycleAt time.Time `db:"last_cycle_at"`
	Version     int64     `db:"version"`
}

type CycleRepository struct {
	db *sqlx.DB
}

func NewCycleRepository(db *sqlx.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

func (r *CycleRepository) Get(ctx context.Context, region ladder.Region, season int) (cycle.Checkpoint, bool, error) {
	query, args, err := qb.Select("*").From("cycle_checkpoint").
		Where(
			qb.Eq("region", int16(region)),
			qb.Eq("season", season),
		).
		ToSQL()
	if err != nil {
		return cycle.Checkpoint{}, false, fmt.Errorf("build get cycle checkpoint query: %w", err)
	}

	var row cycleCheckpointTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return cycle.Checkpoint{}, false, nil
		}
		return cycle.Checkpoint{}, false, fmt.Errorf("get cycle checkpoint: %w", err)
	}

	return cycle.Checkpoint{
		Region:      ladder.Region(row.Region),
		Season:      row.Season,
		LastCycleAt: row.LastCycleAt,
		Version:     row.Version,
	}, true, nil
}

func (r *CycleRepository) Insert(ctx context.Context, checkpoint cycle.Checkpoint) error {
	query, args, err := qb.InsertInto("cycle_checkpoint").
		Columns("region", "season", "last_cycle_at", "version").
		Values(int16(checkpoint.Region), checkpoint.Season, checkpoint.LastCycleAt.UTC(), checkpoint.Version).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert cycle checkpoint query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert cycle checkpoint: %w", err)
	}
	return nil
}

// CompareAndSwap is the generic optimistic-locking update: the write lands
// only when the stored version still matches, and the version advances by
// one so concurrent claimants see exactly one winner.
func (r *CycleRepository) CompareAndSwap(ctx context.Context, checkpoint cycle.Checkpoint, expectedVersion int64) (bool, error) {
	query, args, err := qb.Update("cycle_checkpoint").
		Set("last_cycle_at", checkpoint.LastCycleAt.UTC()).
		SetExpr("version", "version + 1").
		Where(
			qb.Eq("region", int16(checkpoint.Region)),
			qb.Eq("season", checkpoint.Season),
			qb.Eq("version", expectedVersion),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build cas cycle checkpoint query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("cas cycle checkpoint: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cas cycle checkpoint rows affected: %w", err)
	}
	return affected == 1, nil
}
