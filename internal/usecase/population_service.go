package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/population"
	"github.com/openladder/laddercore/internal/domain/team"
	"github.com/openladder/laddercore/internal/platform/logging"
)

// PopulationService aggregates per-cycle team counts so league placement
// can be read as a percentile of a known population.
type PopulationService struct {
	teamRepo       team.Repository
	populationRepo population.Repository
	logger         *logging.Logger
	now            func() time.Time
}

func NewPopulationService(
	teamRepo team.Repository,
	populationRepo population.Repository,
	logger *logging.Logger,
) *PopulationService {
	if logger == nil {
		logger = logging.Default()
	}
	return &PopulationService{
		teamRepo:       teamRepo,
		populationRepo: populationRepo,
		logger:         logger,
		now:            time.Now,
	}
}

// TakeSnapshot counts the season's teams at three widths per league
// partition: everyone in the queue, everyone in the queue and region, and
// the league itself. One row per populated partition.
func (s *PopulationService) TakeSnapshot(ctx context.Context, season int) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PopulationService.TakeSnapshot")
	defer span.End()

	if season <= 0 {
		return 0, fmt.Errorf("%w: season must be > 0", ErrInvalidInput)
	}

	teams, err := s.teamRepo.ListBySeason(ctx, season)
	if err != nil {
		return 0, fmt.Errorf("list teams for population snapshot season=%d: %w", season, err)
	}
	if len(teams) == 0 {
		return 0, nil
	}

	type globalKey struct {
		queue ladder.QueueType
		kind  ladder.TeamType
	}
	type regionKey struct {
		queue  ladder.QueueType
		kind   ladder.TeamType
		region ladder.Region
	}

	globalCounts := make(map[globalKey]int)
	regionCounts := make(map[regionKey]int)
	leagueCounts := make(map[population.LeagueKey]int)
	for _, row := range teams {
		globalCounts[globalKey{queue: row.QueueType, kind: row.TeamType}]++
		regionCounts[regionKey{queue: row.QueueType, kind: row.TeamType, region: row.Region}]++
		leagueCounts[population.LeagueKey{
			Season:     season,
			Region:     row.Region,
			QueueType:  row.QueueType,
			TeamType:   row.TeamType,
			LeagueType: row.LeagueType,
		}]++
	}

	created := s.now().UTC()
	snapshots := make([]population.Snapshot, 0, len(leagueCounts))
	for key, count := range leagueCounts {
		snapshots = append(snapshots, population.Snapshot{
			Season:          key.Season,
			Region:          key.Region,
			QueueType:       key.QueueType,
			TeamType:        key.TeamType,
			LeagueType:      key.LeagueType,
			GlobalTeamCount: globalCounts[globalKey{queue: key.QueueType, kind: key.TeamType}],
			RegionTeamCount: regionCounts[regionKey{queue: key.QueueType, kind: key.TeamType, region: key.Region}],
			LeagueTeamCount: count,
			Created:         created,
		})
	}

	if err := s.populationRepo.Insert(ctx, snapshots); err != nil {
		return 0, fmt.Errorf("insert population snapshots season=%d: %w", season, err)
	}

	s.logger.InfoContext(ctx, "population snapshot taken",
		"season", season,
		"partitions", len(snapshots),
	)
	return len(snapshots), nil
}
