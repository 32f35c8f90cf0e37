package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/team"
	"github.com/openladder/laddercore/internal/domain/teamstate"
	"github.com/openladder/laddercore/internal/platform/logging"
)

// Rejection reasons surfaced in MergeResult.Rejected. All of them are
// expected noise from an eventually-consistent upstream, not errors.
const (
	RejectSeasonFloor      = "season_floor"
	RejectMonotonicity     = "monotonicity"
	RejectNoChange         = "no_change"
	RejectImplausibleReset = "implausible_reset"
)

type SnapshotMergeConfig struct {
	// ResetGameBudget is the minimum plausible time per game after a
	// ladder reset; a post-reset snapshot claiming more games than
	// elapsed/budget is treated as a stale or corrupt read.
	ResetGameBudget time.Duration
	// SeasonGrace is added to the previous season's max lastPlayed when
	// building the cross-season contamination floor.
	SeasonGrace time.Duration
}

type MergeResult struct {
	// Accepted holds the inserted or updated teams, each annotated with
	// its resolved internal id. Callers cascade member writes only for
	// these.
	Accepted []team.Team
	Inserted int
	Updated  int
	Skipped  int
	Rejected map[string]int
}

type SnapshotMergeService struct {
	teamRepo  team.Repository
	stateRepo teamstate.Repository
	cfg       SnapshotMergeConfig
	validate  *validator.Validate
	logger    *logging.Logger

	floorMu sync.Mutex
	// floors caches max lastPlayed per (region, season); entries are
	// invalidated whenever a merge for that partition is accepted.
	floors map[floorKey]*time.Time
}

type floorKey struct {
	region ladder.Region
	season int
}

func NewSnapshotMergeService(
	teamRepo team.Repository,
	stateRepo teamstate.Repository,
	cfg SnapshotMergeConfig,
	logger *logging.Logger,
) *SnapshotMergeService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ResetGameBudget <= 0 {
		cfg.ResetGameBudget = 9 * time.Minute
	}
	if cfg.SeasonGrace < 0 {
		cfg.SeasonGrace = 0
	}

	return &SnapshotMergeService{
		teamRepo:  teamRepo,
		stateRepo: stateRepo,
		cfg:       cfg,
		validate:  validator.New(),
		logger:    logger,
		floors:    make(map[floorKey]*time.Time),
	}
}

// MergeBatch idempotently merges one polled batch for a (region, season)
// unit. Re-running the same batch converges to the same stored rows: the
// second pass rejects every candidate on the strictly-increasing
// primaryDataUpdated guard.
func (s *SnapshotMergeService) MergeBatch(
	ctx context.Context,
	region ladder.Region,
	season int,
	snapshots []team.Snapshot,
) (MergeResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotMergeService.MergeBatch")
	defer span.End()

	result := MergeResult{Rejected: make(map[string]int)}
	if season <= 0 {
		return result, fmt.Errorf("%w: season must be > 0", ErrInvalidInput)
	}
	if len(snapshots) == 0 {
		return result, nil
	}

	candidates, skipped := s.cleanBatch(ctx, region, season, snapshots)
	result.Skipped = skipped
	if len(candidates) == 0 {
		return result, nil
	}

	// Consistent lock ordering: every concurrent batch touches rows in
	// ascending natural-key order.
	sort.Slice(candidates, func(i, j int) bool {
		return keyLess(candidates[i].Key(), candidates[j].Key())
	})

	floor, err := s.seasonFloor(ctx, region, season)
	if err != nil {
		return result, err
	}
	if floor != nil {
		kept := candidates[:0]
		for _, snapshot := range candidates {
			if snapshot.LastPlayed != nil && snapshot.LastPlayed.Before(*floor) {
				s.rejectNoise(ctx, &result, RejectSeasonFloor, snapshot)
				continue
			}
			kept = append(kept, snapshot)
		}
		candidates = kept
		if len(candidates) == 0 {
			return result, nil
		}
	}

	keys := make([]team.Key, 0, len(candidates))
	for _, snapshot := range candidates {
		keys = append(keys, snapshot.Key())
	}
	stored, err := s.teamRepo.GetByKeys(ctx, keys)
	if err != nil {
		return result, fmt.Errorf("load stored teams for merge batch: %w", err)
	}

	storedIDs := make([]int64, 0, len(stored))
	for _, row := range stored {
		storedIDs = append(storedIDs, row.ID)
	}
	latestStates := map[int64]teamstate.State{}
	if len(storedIDs) > 0 {
		latestStates, err = s.stateRepo.LatestByTeams(ctx, storedIDs)
		if err != nil {
			return result, fmt.Errorf("load latest team states for merge batch: %w", err)
		}
	}

	var inserts []team.Team
	var updates []team.Team
	insertedMembers := map[team.Key][]team.MemberSnapshot{}
	updateMembers := map[int64][]team.MemberSnapshot{}

	for _, snapshot := range candidates {
		current, exists := stored[snapshot.Key()]
		if !exists {
			inserts = append(inserts, snapshotToTeam(snapshot, 0))
			insertedMembers[snapshot.Key()] = snapshot.Members
			continue
		}

		reason, ok := s.judgeUpdate(snapshot, current, latestStates)
		if !ok {
			s.rejectNoise(ctx, &result, reason, snapshot)
			continue
		}
		updates = append(updates, snapshotToTeam(snapshot, current.ID))
		updateMembers[current.ID] = snapshot.Members
	}

	// The insert, the conditional update and the member cascade are one
	// transactional unit: a crash between them must not leave a team row
	// without its members, since the primaryDataUpdated guard would then
	// reject the identical retry.
	var inserted, updated []team.Team
	raced := 0
	txErr := s.teamRepo.InTx(ctx, func(repo team.Repository) error {
		if len(inserts) > 0 {
			if err := repo.Insert(ctx, inserts); err != nil {
				return fmt.Errorf("insert merged teams region=%s season=%d: %w", region, season, err)
			}
			inserted = inserts
		}

		if len(updates) > 0 {
			// The repository re-applies the monotonicity guards inside the
			// statement, so a row raced by another batch quietly drops out.
			updatedIDs, err := repo.Update(ctx, updates)
			if err != nil {
				return fmt.Errorf("update merged teams region=%s season=%d: %w", region, season, err)
			}
			updatedSet := make(map[int64]struct{}, len(updatedIDs))
			for _, id := range updatedIDs {
				updatedSet[id] = struct{}{}
			}
			for _, row := range updates {
				if _, ok := updatedSet[row.ID]; !ok {
					raced++
					delete(updateMembers, row.ID)
					continue
				}
				updated = append(updated, row)
			}
		}

		members := make([]team.Member, 0, len(inserted)+len(updated))
		for _, accepted := range append(append([]team.Team(nil), inserted...), updated...) {
			rows := insertedMembers[accepted.Key()]
			if stored, ok := updateMembers[accepted.ID]; ok {
				rows = stored
			}
			for _, member := range rows {
				members = append(members, team.Member{
					TeamID:       accepted.ID,
					CharacterID:  member.CharacterID,
					Realm:        member.Realm,
					TerranGames:  member.TerranGames,
					ProtossGames: member.ProtossGames,
					ZergGames:    member.ZergGames,
					RandomGames:  member.RandomGames,
				})
			}
		}
		if len(members) > 0 {
			if err := repo.UpsertMembers(ctx, members); err != nil {
				return fmt.Errorf("upsert team members region=%s season=%d: %w", region, season, err)
			}
		}
		return nil
	})
	if txErr != nil {
		return result, txErr
	}

	if raced > 0 {
		result.Rejected[RejectMonotonicity] += raced
	}
	result.Inserted = len(inserted)
	result.Updated = len(updated)
	result.Accepted = append(append(result.Accepted, inserted...), updated...)
	if len(result.Accepted) > 0 {
		s.invalidateFloor(region, season)
	}

	return result, nil
}

func (s *SnapshotMergeService) cleanBatch(
	ctx context.Context,
	region ladder.Region,
	season int,
	snapshots []team.Snapshot,
) ([]team.Snapshot, int) {
	skipped := 0
	// Duplicate keys inside one batch collapse to the freshest read.
	byKey := make(map[team.Key]team.Snapshot, len(snapshots))
	for _, snapshot := range snapshots {
		if err := s.validate.StructCtx(ctx, snapshot); err != nil {
			skipped++
			s.logger.WarnContext(ctx, "skip malformed team snapshot",
				"region", region.String(),
				"season", season,
				"legacy_id", snapshot.LegacyID,
				"error", err,
			)
			continue
		}
		if snapshot.Region != region || snapshot.Season != season {
			skipped++
			s.logger.WarnContext(ctx, "skip snapshot outside merge unit",
				"region", region.String(),
				"season", season,
				"snapshot_region", snapshot.Region.String(),
				"snapshot_season", snapshot.Season,
			)
			continue
		}

		existing, ok := byKey[snapshot.Key()]
		if !ok || snapshot.PrimaryDataUpdated.After(existing.PrimaryDataUpdated) {
			byKey[snapshot.Key()] = snapshot
		}
	}

	out := make([]team.Snapshot, 0, len(byKey))
	for _, snapshot := range byKey {
		out = append(out, snapshot)
	}
	return out, skipped
}

// judgeUpdate applies the accept-merge decision of the reconciliation
// pipeline against an existing row. Returns the rejection reason when the
// candidate must not replace the stored data.
func (s *SnapshotMergeService) judgeUpdate(
	snapshot team.Snapshot,
	current team.Team,
	latestStates map[int64]teamstate.State,
) (string, bool) {
	if !timeGte(snapshot.LastPlayed, current.LastPlayed) {
		return RejectMonotonicity, false
	}
	if !timeGte(snapshot.Joined, current.Joined) {
		return RejectMonotonicity, false
	}
	if !snapshot.PrimaryDataUpdated.After(current.PrimaryDataUpdated) {
		return RejectMonotonicity, false
	}
	if snapshot.DivisionID == current.DivisionID && snapshot.TotalGames() == current.TotalGames() {
		return RejectNoChange, false
	}

	// Fewer games than the last recorded state means a ladder reset; only
	// plausible resets pass, judged against the reset game budget.
	if state, ok := latestStates[current.ID]; ok && snapshot.TotalGames() < state.Games {
		if snapshot.LastPlayed == nil {
			return RejectImplausibleReset, false
		}
		elapsed := snapshot.LastPlayed.Sub(state.Timestamp)
		if elapsed <= 0 {
			return RejectImplausibleReset, false
		}
		budget := float64(elapsed) / float64(s.cfg.ResetGameBudget)
		if float64(snapshot.TotalGames()) > budget {
			return RejectImplausibleReset, false
		}
	}

	return "", true
}

func (s *SnapshotMergeService) seasonFloor(ctx context.Context, region ladder.Region, season int) (*time.Time, error) {
	previous := season - 1
	if previous <= 0 {
		return nil, nil
	}

	key := floorKey{region: region, season: previous}
	s.floorMu.Lock()
	cached, ok := s.floors[key]
	s.floorMu.Unlock()
	if !ok {
		max, err := s.teamRepo.MaxLastPlayed(ctx, region, previous)
		if err != nil {
			return nil, fmt.Errorf("load previous season lastPlayed floor region=%s season=%d: %w", region, previous, err)
		}
		cached = max
		s.floorMu.Lock()
		s.floors[key] = cached
		s.floorMu.Unlock()
	}

	if cached == nil {
		return nil, nil
	}
	floor := cached.Add(s.cfg.SeasonGrace)
	return &floor, nil
}

func (s *SnapshotMergeService) invalidateFloor(region ladder.Region, season int) {
	s.floorMu.Lock()
	delete(s.floors, floorKey{region: region, season: season})
	s.floorMu.Unlock()
}

func (s *SnapshotMergeService) rejectNoise(ctx context.Context, result *MergeResult, reason string, snapshot team.Snapshot) {
	result.Rejected[reason]++
	payload, err := sonic.MarshalString(snapshot)
	if err != nil {
		payload = snapshot.LegacyID
	}
	s.logger.DebugContext(ctx, "reject team snapshot",
		"reason", reason,
		"region", snapshot.Region.String(),
		"season", snapshot.Season,
		"snapshot", payload,
	)
}

func snapshotToTeam(snapshot team.Snapshot, id int64) team.Team {
	return team.Team{
		ID:                 id,
		QueueType:          snapshot.QueueType,
		TeamType:           snapshot.TeamType,
		Region:             snapshot.Region,
		LegacyID:           snapshot.LegacyID,
		Season:             snapshot.Season,
		DivisionID:         snapshot.DivisionID,
		LeagueType:         snapshot.LeagueType,
		TierType:           snapshot.TierType,
		Rating:             snapshot.Rating,
		Wins:               snapshot.Wins,
		Losses:             snapshot.Losses,
		Ties:               snapshot.Ties,
		Points:             snapshot.Points,
		LastPlayed:         cloneTimePtr(snapshot.LastPlayed),
		Joined:             cloneTimePtr(snapshot.Joined),
		PrimaryDataUpdated: snapshot.PrimaryDataUpdated,
	}
}

func keyLess(a, b team.Key) bool {
	if a.Region != b.Region {
		return a.Region < b.Region
	}
	if a.QueueType != b.QueueType {
		return a.QueueType < b.QueueType
	}
	if a.TeamType != b.TeamType {
		return a.TeamType < b.TeamType
	}
	if a.Season != b.Season {
		return a.Season < b.Season
	}
	return a.LegacyID < b.LegacyID
}

// timeGte reports candidate >= stored, where a missing stored value never
// blocks and a missing candidate value cannot supersede a present one.
func timeGte(candidate, stored *time.Time) bool {
	if stored == nil {
		return true
	}
	if candidate == nil {
		return false
	}
	return !candidate.Before(*stored)
}

func cloneTimePtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := value.UTC()
	return &v
}
