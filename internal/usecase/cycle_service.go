package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/openladder/laddercore/internal/domain/clan"
	"github.com/openladder/laddercore/internal/domain/cycle"
	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/scan"
	"github.com/openladder/laddercore/internal/domain/team"
	"github.com/openladder/laddercore/internal/platform/logging"
)

// SnapshotSource is the upstream provider boundary. The worker receives
// already-parsed snapshots; transport and wire format live behind this
// interface.
type SnapshotSource interface {
	FetchTeamSnapshots(ctx context.Context, region ladder.Region, season int) ([]team.Snapshot, error)
	FetchClanObservations(ctx context.Context, region ladder.Region) ([]clan.Observation, error)
}

type CycleConfig struct {
	// Workers sizes the region job pool.
	Workers int
	// ResolveLookback bounds the match resolution window when a region has
	// no prior checkpoint to resume from.
	ResolveLookback time.Duration
}

type RegionReport struct {
	Merge    MergeResult
	States   RecordResult
	Clans    ClanIngestResult
	Duration time.Duration
	Err      error
}

type CycleReport struct {
	Regions    map[ladder.Region]*RegionReport
	Population int
	Ranks      RankResult
	Resolution ResolveResult
	Retention  ArchiveResult
}

// CycleService runs one full reconciliation cycle: region-parallel ingest,
// then the season-wide passes that need every region's data in place.
type CycleService struct {
	source      SnapshotSource
	merges      *SnapshotMergeService
	states      *TeamStateService
	populations *PopulationService
	ranks       *RankService
	resolver    *MatchResolveService
	clans       *ClanEventService
	scanRepo    scan.Repository
	cycleRepo   cycle.Repository
	cfg         CycleConfig
	logger      *logging.Logger
	now         func() time.Time
}

func NewCycleService(
	source SnapshotSource,
	merges *SnapshotMergeService,
	states *TeamStateService,
	populations *PopulationService,
	ranks *RankService,
	resolver *MatchResolveService,
	clans *ClanEventService,
	scanRepo scan.Repository,
	cycleRepo cycle.Repository,
	cfg CycleConfig,
	logger *logging.Logger,
) *CycleService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ResolveLookback <= 0 {
		cfg.ResolveLookback = 24 * time.Hour
	}

	return &CycleService{
		source:      source,
		merges:      merges,
		states:      states,
		populations: populations,
		ranks:       ranks,
		resolver:    resolver,
		clans:       clans,
		scanRepo:    scanRepo,
		cycleRepo:   cycleRepo,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// RunCycle ingests every region in parallel, each region claiming its
// checkpoint first so concurrent schedulers never double-process, then runs
// population, rank, resolution and retention once over the whole season.
// One failing region is reported but never aborts the others.
func (s *CycleService) RunCycle(ctx context.Context, regions []ladder.Region, season int) (CycleReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CycleService.RunCycle")
	defer span.End()

	report := CycleReport{Regions: make(map[ladder.Region]*RegionReport, len(regions))}
	if len(regions) == 0 || season <= 0 {
		return report, fmt.Errorf("%w: regions and season are required", ErrInvalidInput)
	}

	workers, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return report, fmt.Errorf("create cycle worker pool: %w", err)
	}
	defer workers.Release()

	resolveFrom := s.now().UTC().Add(-s.cfg.ResolveLookback)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, region := range regions {
		region := region
		wg.Add(1)
		if err := workers.Submit(func() {
			defer wg.Done()
			regionReport, checkpointAt := s.runRegion(ctx, region, season)
			mu.Lock()
			report.Regions[region] = regionReport
			if checkpointAt != nil && checkpointAt.Before(resolveFrom) {
				resolveFrom = *checkpointAt
			}
			mu.Unlock()
		}); err != nil {
			wg.Done()
			mu.Lock()
			report.Regions[region] = &RegionReport{Err: fmt.Errorf("submit region job: %w", err)}
			mu.Unlock()
		}
	}
	wg.Wait()

	succeeded := 0
	for region, regionReport := range report.Regions {
		if regionReport.Err != nil {
			if errors.Is(regionReport.Err, ErrCycleClaimed) {
				s.logger.InfoContext(ctx, "region cycle already claimed", "region", region.String())
				continue
			}
			s.logger.ErrorContext(ctx, "region cycle failed",
				"region", region.String(),
				"season", season,
				"error", regionReport.Err,
			)
			continue
		}
		succeeded++
	}
	if succeeded == 0 {
		return report, fmt.Errorf("cycle season=%d: no region completed", season)
	}

	if report.Population, err = s.populations.TakeSnapshot(ctx, season); err != nil {
		return report, err
	}
	if report.Ranks, err = s.ranks.ComputeRanks(ctx, season); err != nil {
		return report, err
	}
	if report.Resolution, err = s.resolver.ResolveWindow(ctx, resolveFrom, s.now().UTC()); err != nil {
		return report, err
	}
	if report.Retention, err = s.states.ArchiveAndPrune(ctx); err != nil {
		return report, err
	}

	s.logger.InfoContext(ctx, "cycle complete",
		"season", season,
		"regions_ok", succeeded,
		"ranked", report.Ranks.Ranked,
		"resolved", report.Resolution.Resolved,
	)
	return report, nil
}

// runRegion performs one region's ingest. The returned timestamp is the
// previous checkpoint time, used to anchor the resolution window.
func (s *CycleService) runRegion(ctx context.Context, region ladder.Region, season int) (*RegionReport, *time.Time) {
	report := &RegionReport{}
	started := s.now().UTC()

	previous, err := s.claimCheckpoint(ctx, region, season, started)
	if err != nil {
		report.Err = err
		return report, nil
	}

	snapshots, err := s.source.FetchTeamSnapshots(ctx, region, season)
	if err != nil {
		report.Err = fmt.Errorf("fetch team snapshots region=%s: %w: %v", region, ErrDependencyUnavailable, err)
		return report, previous
	}

	report.Merge, err = s.merges.MergeBatch(ctx, region, season, snapshots)
	if err != nil {
		report.Err = err
		return report, previous
	}

	report.States, err = s.states.RecordStates(ctx, report.Merge.Accepted, started)
	if err != nil {
		report.Err = err
		return report, previous
	}

	report.Duration = s.now().UTC().Sub(started)
	if err := s.recordScans(ctx, region, report.Merge.Accepted, started, report.Duration); err != nil {
		report.Err = err
		return report, previous
	}

	observations, err := s.source.FetchClanObservations(ctx, region)
	if err != nil {
		// Clan data is a side channel; a provider hiccup here must not
		// void the merged ladder data.
		s.logger.WarnContext(ctx, "fetch clan observations failed",
			"region", region.String(),
			"error", err,
		)
	} else if report.Clans, err = s.clans.Ingest(ctx, observations); err != nil {
		report.Err = err
		return report, previous
	}

	return report, previous
}

// claimCheckpoint takes ownership of the (region, season) cycle slot.
// Losing the version race means another scheduler is already running it.
func (s *CycleService) claimCheckpoint(ctx context.Context, region ladder.Region, season int, startedAt time.Time) (*time.Time, error) {
	current, found, err := s.cycleRepo.Get(ctx, region, season)
	if err != nil {
		return nil, fmt.Errorf("load cycle checkpoint region=%s season=%d: %w", region, season, err)
	}
	if !found {
		current = cycle.Checkpoint{Region: region, Season: season}
		if err := s.cycleRepo.Insert(ctx, current); err != nil {
			return nil, fmt.Errorf("%w: region=%s season=%d", ErrCycleClaimed, region, season)
		}
	}

	claimed, err := s.cycleRepo.CompareAndSwap(ctx, cycle.Checkpoint{
		Region:      region,
		Season:      season,
		LastCycleAt: startedAt,
	}, current.Version)
	if err != nil {
		return nil, fmt.Errorf("claim cycle checkpoint region=%s season=%d: %w", region, season, err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: region=%s season=%d", ErrCycleClaimed, region, season)
	}

	if current.LastCycleAt.IsZero() {
		return nil, nil
	}
	previous := current.LastCycleAt
	return &previous, nil
}

// recordScans stores one duration row per ladder partition touched by the
// merge, feeding the resolver's staleness filter on later cycles.
func (s *CycleService) recordScans(
	ctx context.Context,
	region ladder.Region,
	accepted []team.Team,
	startedAt time.Time,
	duration time.Duration,
) error {
	type partition struct {
		queue  ladder.QueueType
		league ladder.LeagueType
	}
	partitions := make(map[partition]struct{})
	for _, row := range accepted {
		partitions[partition{queue: row.QueueType, league: row.LeagueType}] = struct{}{}
	}
	if len(partitions) == 0 {
		return nil
	}

	seconds := int64(duration / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	records := make([]scan.Record, 0, len(partitions))
	for key := range partitions {
		records = append(records, scan.Record{
			Region:          region,
			QueueType:       key.queue,
			LeagueType:      key.league,
			StartedAt:       startedAt,
			DurationSeconds: seconds,
		})
	}
	if err := s.scanRepo.Insert(ctx, records); err != nil {
		return fmt.Errorf("record scan durations region=%s: %w", region, err)
	}
	return nil
}
