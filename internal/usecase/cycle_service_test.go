package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openladder/laddercore/internal/domain/clan"
	"github.com/openladder/laddercore/internal/domain/cycle"
	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/team"
	"github.com/openladder/laddercore/internal/infrastructure/repository/memory"
	"github.com/openladder/laddercore/internal/platform/logging"
)

type stubSource struct {
	teams        map[ladder.Region][]team.Snapshot
	observations map[ladder.Region][]clan.Observation
	teamErr      map[ladder.Region]error
	clanErr      error
}

func (s *stubSource) FetchTeamSnapshots(_ context.Context, region ladder.Region, _ int) ([]team.Snapshot, error) {
	if err := s.teamErr[region]; err != nil {
		return nil, err
	}
	return s.teams[region], nil
}

func (s *stubSource) FetchClanObservations(_ context.Context, region ladder.Region) ([]clan.Observation, error) {
	if s.clanErr != nil {
		return nil, s.clanErr
	}
	return s.observations[region], nil
}

type cycleFixture struct {
	svc       *CycleService
	teamRepo  *memory.TeamRepository
	stateRepo *memory.TeamStateRepository
	clanRepo  *memory.ClanRepository
	scanRepo  *memory.ScanRepository
	cycleRepo cycle.Repository
}

func newCycleFixture(source SnapshotSource, cycleRepo cycle.Repository) *cycleFixture {
	teamRepo := memory.NewTeamRepository()
	stateRepo := memory.NewTeamStateRepository(teamRepo)
	matchRepo := memory.NewMatchRepository()
	clanRepo := memory.NewClanRepository()
	populationRepo := memory.NewPopulationRepository()
	scanRepo := memory.NewScanRepository()
	if cycleRepo == nil {
		cycleRepo = memory.NewCycleRepository()
	}
	nop := logging.NewNop()

	svc := NewCycleService(
		source,
		NewSnapshotMergeService(teamRepo, stateRepo, SnapshotMergeConfig{}, nop),
		NewTeamStateService(stateRepo, TeamStateConfig{PrimaryQueue: ladder.Queue1v1}, nop),
		NewPopulationService(teamRepo, populationRepo, nop),
		NewRankService(teamRepo, memory.NewCheaterRepository(nil), populationRepo, nop),
		NewMatchResolveService(matchRepo, teamRepo, stateRepo, scanRepo, MatchResolveConfig{}, nop),
		NewClanEventService(clanRepo, nop),
		scanRepo,
		cycleRepo,
		CycleConfig{Workers: 2},
		nop,
	)
	return &cycleFixture{
		svc:       svc,
		teamRepo:  teamRepo,
		stateRepo: stateRepo,
		clanRepo:  clanRepo,
		scanRepo:  scanRepo,
		cycleRepo: cycleRepo,
	}
}

func cycleSnapshot(region ladder.Region, characterID int64) team.Snapshot {
	snapshot := baseSnapshot(
		ladder.LegacyID([]ladder.MemberKey{{Realm: 1, CharacterID: characterID}}, ladder.RaceZerg),
		time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	)
	snapshot.Region = region
	snapshot.Members = []team.MemberSnapshot{{CharacterID: characterID, Realm: 1, ZergGames: 15}}
	return snapshot
}

func TestRunCycleEndToEnd(t *testing.T) {
	source := &stubSource{
		teams: map[ladder.Region][]team.Snapshot{
			ladder.RegionEU: {cycleSnapshot(ladder.RegionEU, 100), cycleSnapshot(ladder.RegionEU, 101)},
			ladder.RegionUS: {cycleSnapshot(ladder.RegionUS, 102)},
		},
		observations: map[ladder.Region][]clan.Observation{
			ladder.RegionEU: {{CharacterID: 100, ClanID: clanID(10), ObservedAt: time.Now().UTC()}},
		},
	}
	f := newCycleFixture(source, nil)

	report, err := f.svc.RunCycle(context.Background(), []ladder.Region{ladder.RegionEU, ladder.RegionUS}, 50)
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	eu := report.Regions[ladder.RegionEU]
	if eu.Err != nil {
		t.Fatalf("EU region failed: %v", eu.Err)
	}
	if eu.Merge.Inserted != 2 || eu.States.Appended != 2 || eu.Clans.Joins != 1 {
		t.Fatalf("unexpected EU region report: %+v", eu)
	}
	us := report.Regions[ladder.RegionUS]
	if us.Err != nil || us.Merge.Inserted != 1 {
		t.Fatalf("unexpected US region report: %+v", us)
	}

	if report.Population == 0 {
		t.Fatal("expected population partitions")
	}
	if report.Ranks.Ranked != 3 {
		t.Fatalf("expected all 3 teams ranked, got %+v", report.Ranks)
	}

	// Claiming bumps the checkpoint version and stamps the cycle time.
	checkpoint, found, _ := f.cycleRepo.Get(context.Background(), ladder.RegionEU, 50)
	if !found || checkpoint.Version != 1 || checkpoint.LastCycleAt.IsZero() {
		t.Fatalf("unexpected checkpoint after cycle: %+v found=%v", checkpoint, found)
	}

	// Each touched ladder partition leaves a scan duration behind.
	duration, _ := f.scanRepo.MaxDurationWithin(
		context.Background(),
		ladder.RegionEU, ladder.Queue1v1, ladder.LeagueDiamond,
		time.Now().UTC().Add(-time.Hour), time.Now().UTC().Add(time.Hour),
	)
	if duration < time.Second {
		t.Fatalf("expected a recorded scan duration, got %v", duration)
	}
}

type contestedCycleRepo struct {
	*memory.CycleRepository
	contested ladder.Region
}

func (r *contestedCycleRepo) CompareAndSwap(ctx context.Context, checkpoint cycle.Checkpoint, expectedVersion int64) (bool, error) {
	if checkpoint.Region == r.contested {
		return false, nil
	}
	return r.CycleRepository.CompareAndSwap(ctx, checkpoint, expectedVersion)
}

func TestRunCycleSkipsClaimedRegion(t *testing.T) {
	source := &stubSource{
		teams: map[ladder.Region][]team.Snapshot{
			ladder.RegionEU: {cycleSnapshot(ladder.RegionEU, 100)},
			ladder.RegionUS: {cycleSnapshot(ladder.RegionUS, 101)},
		},
	}
	f := newCycleFixture(source, &contestedCycleRepo{
		CycleRepository: memory.NewCycleRepository(),
		contested:       ladder.RegionEU,
	})

	report, err := f.svc.RunCycle(context.Background(), []ladder.Region{ladder.RegionEU, ladder.RegionUS}, 50)
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if !errors.Is(report.Regions[ladder.RegionEU].Err, ErrCycleClaimed) {
		t.Fatalf("expected EU claimed, got %v", report.Regions[ladder.RegionEU].Err)
	}
	if report.Regions[ladder.RegionUS].Err != nil {
		t.Fatalf("US region must proceed, got %v", report.Regions[ladder.RegionUS].Err)
	}

	// The claimed region contributed no data this cycle.
	teams, _ := f.teamRepo.ListBySeason(context.Background(), 50)
	if len(teams) != 1 || teams[0].Region != ladder.RegionUS {
		t.Fatalf("expected only the US team stored, got %+v", teams)
	}
}

func TestRunCycleIsolatesRegionFailure(t *testing.T) {
	source := &stubSource{
		teams: map[ladder.Region][]team.Snapshot{
			ladder.RegionUS: {cycleSnapshot(ladder.RegionUS, 101)},
		},
		teamErr: map[ladder.Region]error{
			ladder.RegionEU: errors.New("provider timeout"),
		},
	}
	f := newCycleFixture(source, nil)

	report, err := f.svc.RunCycle(context.Background(), []ladder.Region{ladder.RegionEU, ladder.RegionUS}, 50)
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if !errors.Is(report.Regions[ladder.RegionEU].Err, ErrDependencyUnavailable) {
		t.Fatalf("expected EU dependency failure, got %v", report.Regions[ladder.RegionEU].Err)
	}
	if report.Ranks.Ranked != 1 {
		t.Fatalf("season passes must still run over the healthy region, got %+v", report.Ranks)
	}
}

func TestRunCycleFailsWhenNoRegionCompletes(t *testing.T) {
	source := &stubSource{
		teamErr: map[ladder.Region]error{
			ladder.RegionEU: errors.New("provider down"),
			ladder.RegionUS: errors.New("provider down"),
		},
	}
	f := newCycleFixture(source, nil)

	if _, err := f.svc.RunCycle(context.Background(), []ladder.Region{ladder.RegionEU, ladder.RegionUS}, 50); err == nil {
		t.Fatal("expected error when every region fails")
	}
}

func TestRunCycleClanFetchFailureIsNonFatal(t *testing.T) {
	source := &stubSource{
		teams: map[ladder.Region][]team.Snapshot{
			ladder.RegionEU: {cycleSnapshot(ladder.RegionEU, 100)},
		},
		clanErr: errors.New("clan endpoint down"),
	}
	f := newCycleFixture(source, nil)

	report, err := f.svc.RunCycle(context.Background(), []ladder.Region{ladder.RegionEU}, 50)
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	eu := report.Regions[ladder.RegionEU]
	if eu.Err != nil {
		t.Fatalf("clan fetch failure must not fail the region, got %v", eu.Err)
	}
	if eu.Merge.Inserted != 1 {
		t.Fatalf("ladder data must still land, got %+v", eu.Merge)
	}
}
