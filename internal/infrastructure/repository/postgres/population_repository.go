package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/population"
	qb "github.com/openladder/laddercore/internal/platform/querybuilder"
)

type populationSnapshotTableModel struct {
	ID              int64     `db:"id"`
	Season          int       `db:"season"`
	Region          int16     `db:"region"`
	QueueType       int16     `db:"queue_type"`
	TeamType        int16     `db:"team_type"`
	LeagueType      int16     `db:"league_type"`
	GlobalTeamCount int       `db:"global_team_count"`
	RegionTeamCount int       `db:"region_team_count"`
	LeagueTeamCount int       `db:"league_team_count"`
	Created         time.Time `db:"created"`
}

func populationFromModel(row populationSnapshotTableModel) population.Snapshot {
	return population.Snapshot{
		ID:              row.ID,
		Season:          row.Season,
		Region:          ladder.Region(row.Region),
		QueueType:       ladder.QueueType(row.QueueType),
		TeamType:        ladder.TeamType(row.TeamType),
		LeagueType:      ladder.LeagueType(row.LeagueType),
		GlobalTeamCount: row.GlobalTeamCount,
		RegionTeamCount: row.RegionTeamCount,
		LeagueTeamCount: row.LeagueTeamCount,
		Created:         row.Created,
	}
}

type PopulationRepository struct {
	db *sqlx.DB
}

func NewPopulationRepository(db *sqlx.DB) *PopulationRepository {
	return &PopulationRepository{db: db}
}

func (r *PopulationRepository) Insert(ctx context.Context, snapshots []population.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	builder := qb.InsertInto("population_snapshot").Columns(
		"season", "region", "queue_type", "team_type", "league_type",
		"global_team_count", "region_team_count", "league_team_count", "created",
	)
	for _, snapshot := range snapshots {
		builder.Values(
			snapshot.Season, int16(snapshot.Region), int16(snapshot.QueueType),
			int16(snapshot.TeamType), int16(snapshot.LeagueType),
			snapshot.GlobalTeamCount, snapshot.RegionTeamCount, snapshot.LeagueTeamCount,
			snapshot.Created.UTC(),
		)
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return fmt.Errorf("build insert population snapshots query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert population snapshots: %w", err)
	}
	return nil
}

func (r *PopulationRepository) LatestBySeason(ctx context.Context, season int) (map[population.LeagueKey]population.Snapshot, error) {
	query, args, err := qb.Select("DISTINCT ON (region, queue_type, team_type, league_type) *").
		From("population_snapshot").
		Where(qb.Eq("season", season)).
		OrderBy("region", "queue_type", "team_type", "league_type", "created DESC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build latest population snapshots query: %w", err)
	}

	var rows []populationSnapshotTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("latest population snapshots: %w", err)
	}

	out := make(map[population.LeagueKey]population.Snapshot, len(rows))
	for _, row := range rows {
		snapshot := populationFromModel(row)
		out[snapshot.LeagueKey()] = snapshot
	}
	return out, nil
}
