package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openladder/laddercore/internal/domain/teamstate"
	qb "github.com/openladder/laddercore/internal/platform/querybuilder"
)

type TeamStateRepository struct {
	db *sqlx.DB
}

func NewTeamStateRepository(db *sqlx.DB) *TeamStateRepository {
	return &TeamStateRepository{db: db}
}

func (r *TeamStateRepository) AppendBatch(ctx context.Context, states []teamstate.State) error {
	if len(states) == 0 {
		return nil
	}

	builder := qb.InsertInto("team_state").Columns(
		"team_id", "timestamp", "rating", "games", "wins",
		"global_rank", "region_rank", "league_rank", "secondary", "archived",
	)
	for _, state := range states {
		builder.Values(
			state.TeamID, state.Timestamp.UTC(), state.Rating, state.Games, state.Wins,
			intPtrToNullInt64(state.GlobalRank),
			intPtrToNullInt64(state.RegionRank),
			intPtrToNullInt64(state.LeagueRank),
			state.Secondary, state.Archived,
		)
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return fmt.Errorf("build append team states query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append team states: %w", markForeignKey(err))
	}
	return nil
}

func (r *TeamStateRepository) LatestByTeams(ctx context.Context, teamIDs []int64) (map[int64]teamstate.State, error) {
	out := make(map[int64]teamstate.State, len(teamIDs))
	if len(teamIDs) == 0 {
		return out, nil
	}

	query, args, err := qb.Select("DISTINCT ON (team_id) *").From("team_state").
		Where(qb.Int64In("team_id", teamIDs)).
		OrderBy("team_id", "timestamp DESC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build latest team states query: %w", err)
	}

	var rows []teamStateTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("latest team states: %w", err)
	}

	for _, row := range rows {
		out[row.TeamID] = stateFromModel(row)
	}
	return out, nil
}

func (r *TeamStateRepository) ListByTeamsWithin(ctx context.Context, teamIDs []int64, from, to time.Time) ([]teamstate.State, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}

	query, args, err := qb.Select("*").From("team_state").
		Where(
			qb.Int64In("team_id", teamIDs),
			qb.Gte("timestamp", from.UTC()),
			qb.Lte("timestamp", to.UTC()),
		).
		OrderBy("team_id", "timestamp").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list team states within query: %w", err)
	}

	var rows []teamStateTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list team states within: %w", err)
	}

	out := make([]teamstate.State, 0, len(rows))
	for _, row := range rows {
		out = append(out, stateFromModel(row))
	}
	return out, nil
}

func (r *TeamStateRepository) ListByTeamAfter(ctx context.Context, teamID int64, after time.Time, limit int) ([]teamstate.State, error) {
	query, args, err := qb.Select("*").From("team_state").
		Where(
			qb.Eq("team_id", teamID),
			qb.Gt("timestamp", after.UTC()),
		).
		OrderBy("timestamp").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list team states after query: %w", err)
	}

	var rows []teamStateTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list team states after: %w", err)
	}

	out := make([]teamstate.State, 0, len(rows))
	for _, row := range rows {
		out = append(out, stateFromModel(row))
	}
	return out, nil
}

func (r *TeamStateRepository) MarkArchived(ctx context.Context, refs []teamstate.StateRef) error {
	if len(refs) == 0 {
		return nil
	}

	tuples := ""
	args := make([]any, 0, len(refs)*2)
	for i, ref := range refs {
		if i > 0 {
			tuples += ", "
		}
		tuples += "(?, ?)"
		args = append(args, ref.TeamID, ref.Timestamp.UTC())
	}

	query, queryArgs, err := qb.Update("team_state").
		Set("archived", true).
		Where(qb.Expr("(team_id, timestamp) IN ("+tuples+")", args...)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build mark team states archived query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, queryArgs...); err != nil {
		return fmt.Errorf("mark team states archived: %w", err)
	}
	return nil
}

func (r *TeamStateRepository) ListWithin(ctx context.Context, from, to time.Time) ([]teamstate.State, error) {
	builder := qb.Select("*").From("team_state")
	if !from.IsZero() {
		builder.Where(qb.Gte("timestamp", from.UTC()))
	}
	query, args, err := builder.
		Where(qb.Lte("timestamp", to.UTC())).
		OrderBy("team_id", "timestamp").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list team states query: %w", err)
	}

	var rows []teamStateTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list team states: %w", err)
	}

	out := make([]teamstate.State, 0, len(rows))
	for _, row := range rows {
		out = append(out, stateFromModel(row))
	}
	return out, nil
}

func (r *TeamStateRepository) DeleteUnarchivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := qb.DeleteFrom("team_state").
		Where(
			qb.Eq("archived", false),
			qb.Lt("timestamp", cutoff.UTC()),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build delete team states query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete team states: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete team states rows affected: %w", err)
	}
	return deleted, nil
}
