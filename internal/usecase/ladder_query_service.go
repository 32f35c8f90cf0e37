package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/openladder/laddercore/internal/domain/clan"
	"github.com/openladder/laddercore/internal/domain/team"
	"github.com/openladder/laddercore/internal/domain/teamstate"
)

const maxQueryPageSize = 500

// LadderQueryService is the read surface for downstream consumers. History
// reads are keyset-paginated: pass the last seen timestamp as the cursor.
type LadderQueryService struct {
	teamRepo  team.Repository
	stateRepo teamstate.Repository
	clanRepo  clan.Repository
}

func NewLadderQueryService(
	teamRepo team.Repository,
	stateRepo teamstate.Repository,
	clanRepo clan.Repository,
) *LadderQueryService {
	return &LadderQueryService{
		teamRepo:  teamRepo,
		stateRepo: stateRepo,
		clanRepo:  clanRepo,
	}
}

func (s *LadderQueryService) GetTeam(ctx context.Context, key team.Key) (team.Team, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LadderQueryService.GetTeam")
	defer span.End()

	found, err := s.teamRepo.GetByKeys(ctx, []team.Key{key})
	if err != nil {
		return team.Team{}, fmt.Errorf("get team by key: %w", err)
	}
	row, ok := found[key]
	if !ok {
		return team.Team{}, fmt.Errorf("%w: team %s", ErrNotFound, key.LegacyID)
	}
	return row, nil
}

func (s *LadderQueryService) ListTeamHistory(ctx context.Context, teamID int64, after time.Time, limit int) ([]teamstate.State, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LadderQueryService.ListTeamHistory")
	defer span.End()

	if _, ok, err := s.teamRepo.GetByID(ctx, teamID); err != nil {
		return nil, fmt.Errorf("get team %d: %w", teamID, err)
	} else if !ok {
		return nil, fmt.Errorf("%w: team %d", ErrNotFound, teamID)
	}

	return s.stateRepo.ListByTeamAfter(ctx, teamID, after, clampPageSize(limit))
}

func (s *LadderQueryService) ListClanHistory(ctx context.Context, characterID int64, after time.Time, limit int) ([]clan.Event, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LadderQueryService.ListClanHistory")
	defer span.End()

	if characterID <= 0 {
		return nil, fmt.Errorf("%w: character id must be > 0", ErrInvalidInput)
	}
	return s.clanRepo.ListByCharacterAfter(ctx, characterID, after, clampPageSize(limit))
}

func clampPageSize(limit int) int {
	if limit <= 0 || limit > maxQueryPageSize {
		return maxQueryPageSize
	}
	return limit
}
