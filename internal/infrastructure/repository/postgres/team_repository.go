package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/team"
	qb "github.com/openladder/laddercore/internal/platform/querybuilder"
)

type TeamRepository struct {
	db *sqlx.DB
	q  executor
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db, q: db}
}

// InTx runs fn against a transaction-scoped repository. A nested call
// reuses the surrounding transaction.
func (r *TeamRepository) InTx(ctx context.Context, fn func(team.Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin team transaction: %w", err)
	}
	if err := fn(&TeamRepository{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback team transaction: %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit team transaction: %w", err)
	}
	return nil
}

func (r *TeamRepository) GetByKeys(ctx context.Context, keys []team.Key) (map[team.Key]team.Team, error) {
	out := make(map[team.Key]team.Team, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var tuples strings.Builder
	args := make([]any, 0, len(keys)*5)
	for i, key := range keys {
		if i > 0 {
			tuples.WriteString(", ")
		}
		tuples.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, int16(key.QueueType), int16(key.TeamType), int16(key.Region), key.LegacyID, key.Season)
	}

	query, queryArgs, err := qb.Select("*").From("team").
		Where(qb.Expr("(queue_type, team_type, region, legacy_id, season) IN ("+tuples.String()+")", args...)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get teams by keys query: %w", err)
	}

	var rows []teamTableModel
	if err := r.q.SelectContext(ctx, &rows, query, queryArgs...); err != nil {
		return nil, fmt.Errorf("get teams by keys: %w", err)
	}

	for _, row := range rows {
		item := teamFromModel(row)
		out[item.Key()] = item
	}
	return out, nil
}

func (r *TeamRepository) GetByID(ctx context.Context, id int64) (team.Team, bool, error) {
	query, args, err := qb.Select("*").From("team").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return team.Team{}, false, fmt.Errorf("build get team by id query: %w", err)
	}

	var row teamTableModel
	if err := r.q.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return team.Team{}, false, nil
		}
		return team.Team{}, false, fmt.Errorf("get team by id: %w", err)
	}
	return teamFromModel(row), true, nil
}

func (r *TeamRepository) ListByIDs(ctx context.Context, ids []int64) ([]team.Team, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := qb.Select("*").From("team").
		Where(qb.Int64In("id", ids)).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list teams by ids query: %w", err)
	}

	var rows []teamTableModel
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list teams by ids: %w", err)
	}

	out := make([]team.Team, 0, len(rows))
	for _, row := range rows {
		out = append(out, teamFromModel(row))
	}
	return out, nil
}

func (r *TeamRepository) Insert(ctx context.Context, teams []team.Team) error {
	if len(teams) == 0 {
		return nil
	}

	builder := qb.InsertInto("team").Columns(
		"queue_type", "team_type", "region", "legacy_id", "season",
		"division_id", "league_type", "tier_type", "rating",
		"wins", "losses", "ties", "points",
		"last_played", "joined", "primary_data_updated",
	)
	for _, row := range teams {
		builder.Values(
			int16(row.QueueType), int16(row.TeamType), int16(row.Region), row.LegacyID, row.Season,
			row.DivisionID, int16(row.LeagueType), int16(row.TierType), row.Rating,
			row.Wins, row.Losses, row.Ties, row.Points,
			timePtrToNullTime(row.LastPlayed), timePtrToNullTime(row.Joined), row.PrimaryDataUpdated.UTC(),
		)
	}
	query, args, err := builder.Suffix("RETURNING id").ToSQL()
	if err != nil {
		return fmt.Errorf("build insert teams query: %w", err)
	}

	var ids []int64
	if err := r.q.SelectContext(ctx, &ids, query, args...); err != nil {
		return fmt.Errorf("insert teams: %w", err)
	}
	if len(ids) != len(teams) {
		return fmt.Errorf("insert teams: expected %d ids, got %d", len(teams), len(ids))
	}
	for i := range teams {
		teams[i].ID = ids[i]
	}
	return nil
}

// Update applies merges as one statement, re-checking the monotonicity
// guards per row so a batch that raced another scheduler only writes the
// rows still eligible. Returns the ids actually written.
func (r *TeamRepository) Update(ctx context.Context, teams []team.Team) ([]int64, error) {
	if len(teams) == 0 {
		return nil, nil
	}

	var values strings.Builder
	args := make([]any, 0, len(teams)*13)
	idx := 1
	next := func() string {
		s := "$" + strconv.Itoa(idx)
		idx++
		return s
	}
	for i, row := range teams {
		if i > 0 {
			values.WriteString(", ")
		}
		values.WriteString("(" +
			next() + "::bigint, " +
			next() + "::bigint, " +
			next() + "::smallint, " +
			next() + "::smallint, " +
			next() + "::int, " +
			next() + "::int, " +
			next() + "::int, " +
			next() + "::int, " +
			next() + "::int, " +
			next() + "::timestamptz, " +
			next() + "::timestamptz, " +
			next() + "::timestamptz)")
		args = append(args,
			row.ID, row.DivisionID, int16(row.LeagueType), int16(row.TierType),
			row.Rating, row.Wins, row.Losses, row.Ties, row.Points,
			timePtrToNullTime(row.LastPlayed), timePtrToNullTime(row.Joined), row.PrimaryDataUpdated.UTC(),
		)
	}

	query := `
UPDATE team AS t SET
	division_id = v.division_id,
	league_type = v.league_type,
	tier_type = v.tier_type,
	rating = v.rating,
	wins = v.wins,
	losses = v.losses,
	ties = v.ties,
	points = v.points,
	last_played = v.last_played,
	joined = v.joined,
	primary_data_updated = v.primary_data_updated
FROM (VALUES ` + values.String() + `) AS v(
	id, division_id, league_type, tier_type, rating,
	wins, losses, ties, points, last_played, joined, primary_data_updated
)
WHERE t.id = v.id
  AND (t.last_played IS NULL OR v.last_played >= t.last_played)
  AND (t.joined IS NULL OR v.joined >= t.joined)
  AND v.primary_data_updated > t.primary_data_updated
  AND (v.division_id <> t.division_id OR (v.wins + v.losses + v.ties) <> (t.wins + t.losses + t.ties))
RETURNING t.id`

	var updated []int64
	if err := r.q.SelectContext(ctx, &updated, query, args...); err != nil {
		return nil, fmt.Errorf("update teams: %w", err)
	}
	return updated, nil
}

func (r *TeamRepository) MaxLastPlayed(ctx context.Context, region ladder.Region, season int) (*time.Time, error) {
	query, args, err := qb.Select("MAX(last_played) AS max_last_played").From("team").
		Where(
			qb.Eq("region", int16(region)),
			qb.Eq("season", season),
		).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build max last played query: %w", err)
	}

	var row struct {
		MaxLastPlayed *time.Time `db:"max_last_played"`
	}
	if err := r.q.GetContext(ctx, &row, query, args...); err != nil {
		return nil, fmt.Errorf("max last played: %w", err)
	}
	return row.MaxLastPlayed, nil
}

func (r *TeamRepository) ListBySeason(ctx context.Context, season int) ([]team.Team, error) {
	query, args, err := qb.Select("*").From("team").
		Where(qb.Eq("season", season)).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list teams by season query: %w", err)
	}

	var rows []teamTableModel
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list teams by season: %w", err)
	}

	out := make([]team.Team, 0, len(rows))
	for _, row := range rows {
		out = append(out, teamFromModel(row))
	}
	return out, nil
}

func (r *TeamRepository) SetRanks(ctx context.Context, teams []team.Team) error {
	if len(teams) == 0 {
		return nil
	}

	var values strings.Builder
	args := make([]any, 0, len(teams)*5)
	idx := 1
	next := func() string {
		s := "$" + strconv.Itoa(idx)
		idx++
		return s
	}
	for i, row := range teams {
		if i > 0 {
			values.WriteString(", ")
		}
		values.WriteString("(" +
			next() + "::bigint, " +
			next() + "::int, " +
			next() + "::int, " +
			next() + "::int, " +
			next() + "::bigint)")
		args = append(args,
			row.ID,
			intPtrToNullInt64(row.GlobalRank),
			intPtrToNullInt64(row.RegionRank),
			intPtrToNullInt64(row.LeagueRank),
			int64PtrToNullInt64(row.PopulationSnapshotID),
		)
	}

	query := `
UPDATE team AS t SET
	global_rank = v.global_rank,
	region_rank = v.region_rank,
	league_rank = v.league_rank,
	population_snapshot_id = v.population_snapshot_id
FROM (VALUES ` + values.String() + `) AS v(id, global_rank, region_rank, league_rank, population_snapshot_id)
WHERE t.id = v.id`

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set team ranks: %w", err)
	}
	return nil
}

func (r *TeamRepository) UpsertMembers(ctx context.Context, members []team.Member) error {
	if len(members) == 0 {
		return nil
	}

	builder := qb.InsertInto("team_member").Columns(
		"team_id", "character_id", "realm",
		"terran_games", "protoss_games", "zerg_games", "random_games",
	)
	for _, member := range members {
		builder.Values(
			member.TeamID, member.CharacterID, member.Realm,
			member.TerranGames, member.ProtossGames, member.ZergGames, member.RandomGames,
		)
	}
	query, args, err := builder.Suffix(`ON CONFLICT (team_id, character_id, realm) DO UPDATE SET
		terran_games = EXCLUDED.terran_games,
		protoss_games = EXCLUDED.protoss_games,
		zerg_games = EXCLUDED.zerg_games,
		random_games = EXCLUDED.random_games`).ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert team members query: %w", err)
	}

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert team members: %w", markForeignKey(err))
	}
	return nil
}

func (r *TeamRepository) ListMembersByCharacter(ctx context.Context, characterID int64) ([]team.Member, error) {
	query, args, err := qb.Select("*").From("team_member").
		Where(qb.Eq("character_id", characterID)).
		OrderBy("team_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list members by character query: %w", err)
	}

	var rows []teamMemberTableModel
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list members by character: %w", err)
	}

	out := make([]team.Member, 0, len(rows))
	for _, row := range rows {
		out = append(out, memberFromModel(row))
	}
	return out, nil
}

func (r *TeamRepository) ListMembersByTeams(ctx context.Context, teamIDs []int64) ([]team.Member, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}

	query, args, err := qb.Select("*").From("team_member").
		Where(qb.Int64In("team_id", teamIDs)).
		OrderBy("team_id", "character_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list members by teams query: %w", err)
	}

	var rows []teamMemberTableModel
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list members by teams: %w", err)
	}

	out := make([]team.Member, 0, len(rows))
	for _, row := range rows {
		out = append(out, memberFromModel(row))
	}
	return out, nil
}
