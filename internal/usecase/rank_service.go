package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/openladder/laddercore/internal/domain/cheater"
	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/population"
	"github.com/openladder/laddercore/internal/domain/team"
	"github.com/openladder/laddercore/internal/platform/logging"
)

type RankResult struct {
	Ranked   int
	Excluded int
}

// RankService recomputes dense ranks for a season across three nested
// partitions and links each ranked team to the population snapshot that
// classifies its league.
type RankService struct {
	teamRepo       team.Repository
	cheaterRepo    cheater.Repository
	populationRepo population.Repository
	logger         *logging.Logger
}

func NewRankService(
	teamRepo team.Repository,
	cheaterRepo cheater.Repository,
	populationRepo population.Repository,
	logger *logging.Logger,
) *RankService {
	if logger == nil {
		logger = logging.Default()
	}
	return &RankService{
		teamRepo:       teamRepo,
		cheaterRepo:    cheaterRepo,
		populationRepo: populationRepo,
		logger:         logger,
	}
}

// ComputeRanks ranks every team of the season by rating. Teams sharing a
// rating share a rank and the next distinct rating takes the next rank.
// Teams carrying a restricted character are excluded entirely; their stored
// ranks are cleared rather than left stale.
func (s *RankService) ComputeRanks(ctx context.Context, season int) (RankResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RankService.ComputeRanks")
	defer span.End()

	result := RankResult{}
	if season <= 0 {
		return result, fmt.Errorf("%w: season must be > 0", ErrInvalidInput)
	}

	teams, err := s.teamRepo.ListBySeason(ctx, season)
	if err != nil {
		return result, fmt.Errorf("list teams for ranking season=%d: %w", season, err)
	}
	if len(teams) == 0 {
		return result, nil
	}

	excluded, err := s.excludedTeams(ctx, teams)
	if err != nil {
		return result, err
	}

	snapshots, err := s.populationRepo.LatestBySeason(ctx, season)
	if err != nil {
		return result, fmt.Errorf("load population snapshots season=%d: %w", season, err)
	}

	eligible := make([]*team.Team, 0, len(teams))
	for i := range teams {
		row := &teams[i]
		// Exclusion clears the ranks only; the population link and the rest
		// of the row stay as they were.
		if _, out := excluded[row.ID]; out {
			row.GlobalRank = nil
			row.RegionRank = nil
			row.LeagueRank = nil
			result.Excluded++
			continue
		}
		eligible = append(eligible, row)
	}

	// Rating descending; id ascending keeps reruns byte-stable.
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Rating != eligible[j].Rating {
			return eligible[i].Rating > eligible[j].Rating
		}
		return eligible[i].ID < eligible[j].ID
	})

	type partitionKey struct {
		queue  ladder.QueueType
		kind   ladder.TeamType
		region ladder.Region
		league ladder.LeagueType
		scope  int
	}
	const (
		scopeGlobal = iota
		scopeRegion
		scopeLeague
	)
	type rankCursor struct {
		rank       int
		lastRating int
	}
	cursors := make(map[partitionKey]*rankCursor)

	denseRank := func(key partitionKey, rating int) int {
		cursor, ok := cursors[key]
		if !ok {
			cursor = &rankCursor{rank: 1, lastRating: rating}
			cursors[key] = cursor
			return 1
		}
		if rating != cursor.lastRating {
			cursor.rank++
			cursor.lastRating = rating
		}
		return cursor.rank
	}

	for _, row := range eligible {
		global := denseRank(partitionKey{
			queue: row.QueueType, kind: row.TeamType, scope: scopeGlobal,
		}, row.Rating)
		region := denseRank(partitionKey{
			queue: row.QueueType, kind: row.TeamType, region: row.Region, scope: scopeRegion,
		}, row.Rating)
		league := denseRank(partitionKey{
			queue: row.QueueType, kind: row.TeamType, region: row.Region, league: row.LeagueType, scope: scopeLeague,
		}, row.Rating)
		row.GlobalRank = &global
		row.RegionRank = &region
		row.LeagueRank = &league

		if snapshot, ok := snapshots[population.LeagueKey{
			Season:     row.Season,
			Region:     row.Region,
			QueueType:  row.QueueType,
			TeamType:   row.TeamType,
			LeagueType: row.LeagueType,
		}]; ok {
			id := snapshot.ID
			row.PopulationSnapshotID = &id
		} else {
			row.PopulationSnapshotID = nil
		}
		result.Ranked++
	}

	if err := s.teamRepo.SetRanks(ctx, teams); err != nil {
		return result, fmt.Errorf("persist ranks season=%d: %w", season, err)
	}

	s.logger.InfoContext(ctx, "season ranks recomputed",
		"season", season,
		"ranked", result.Ranked,
		"excluded", result.Excluded,
	)
	return result, nil
}

// excludedTeams returns every team id carrying at least one character with
// a confirmed, restriction-flagged report. Exclusion spreads through
// membership: one restricted character taints all of their teams.
func (s *RankService) excludedTeams(ctx context.Context, teams []team.Team) (map[int64]struct{}, error) {
	reports, err := s.cheaterRepo.ListRestricted(ctx)
	if err != nil {
		return nil, fmt.Errorf("list restricted characters: %w", err)
	}

	restricted := make(map[int64]struct{}, len(reports))
	for _, report := range reports {
		if report.Disqualifying() {
			restricted[report.CharacterID] = struct{}{}
		}
	}
	if len(restricted) == 0 {
		return map[int64]struct{}{}, nil
	}

	ids := make([]int64, 0, len(teams))
	for _, row := range teams {
		ids = append(ids, row.ID)
	}
	members, err := s.teamRepo.ListMembersByTeams(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list members for exclusion check: %w", err)
	}

	excluded := make(map[int64]struct{})
	for _, member := range members {
		if _, bad := restricted[member.CharacterID]; bad {
			excluded[member.TeamID] = struct{}{}
		}
	}
	return excluded, nil
}
