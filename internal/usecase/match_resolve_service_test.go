package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/match"
	"github.com/openladder/laddercore/internal/domain/scan"
	"github.com/openladder/laddercore/internal/domain/team"
	"github.com/openladder/laddercore/internal/domain/teamstate"
	"github.com/openladder/laddercore/internal/infrastructure/repository/memory"
	"github.com/openladder/laddercore/internal/platform/logging"
)

type resolveFixture struct {
	svc       *MatchResolveService
	teamRepo  *memory.TeamRepository
	stateRepo *memory.TeamStateRepository
	matchRepo *memory.MatchRepository
	scanRepo  *memory.ScanRepository
}

func newResolveFixture(cfg MatchResolveConfig) *resolveFixture {
	teamRepo := memory.NewTeamRepository()
	stateRepo := memory.NewTeamStateRepository(teamRepo)
	matchRepo := memory.NewMatchRepository()
	scanRepo := memory.NewScanRepository()
	return &resolveFixture{
		svc:       NewMatchResolveService(matchRepo, teamRepo, stateRepo, scanRepo, cfg, logging.NewNop()),
		teamRepo:  teamRepo,
		stateRepo: stateRepo,
		matchRepo: matchRepo,
		scanRepo:  scanRepo,
	}
}

var matchDate = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func (f *resolveFixture) soloLadderTeam(t *testing.T, characterID int64, race ladder.Race) team.Team {
	t.Helper()
	rows := []team.Team{{
		QueueType:          ladder.Queue1v1,
		TeamType:           ladder.TeamArranged,
		Region:             ladder.RegionEU,
		LegacyID:           ladder.LegacyID([]ladder.MemberKey{{Realm: 1, CharacterID: characterID}}, race),
		Season:             50,
		DivisionID:         900,
		Rating:             3000,
		PrimaryDataUpdated: matchDate.Add(-time.Hour),
	}}
	if err := f.teamRepo.Insert(context.Background(), rows); err != nil {
		t.Fatalf("insert team: %v", err)
	}
	if err := f.teamRepo.UpsertMembers(context.Background(), []team.Member{
		{TeamID: rows[0].ID, CharacterID: characterID, Realm: 1},
	}); err != nil {
		t.Fatalf("insert member: %v", err)
	}
	return rows[0]
}

func (f *resolveFixture) duoLadderTeam(t *testing.T, characterIDs ...int64) team.Team {
	t.Helper()
	keys := make([]ladder.MemberKey, 0, len(characterIDs))
	members := make([]team.Member, 0, len(characterIDs))
	for _, id := range characterIDs {
		keys = append(keys, ladder.MemberKey{Realm: 1, CharacterID: id})
	}
	rows := []team.Team{{
		QueueType:          ladder.Queue2v2,
		TeamType:           ladder.TeamArranged,
		Region:             ladder.RegionEU,
		LegacyID:           ladder.LegacyID(keys),
		Season:             50,
		DivisionID:         901,
		Rating:             2800,
		PrimaryDataUpdated: matchDate.Add(-time.Hour),
	}}
	if err := f.teamRepo.Insert(context.Background(), rows); err != nil {
		t.Fatalf("insert duo team: %v", err)
	}
	for _, id := range characterIDs {
		members = append(members, team.Member{TeamID: rows[0].ID, CharacterID: id, Realm: 1})
	}
	if err := f.teamRepo.UpsertMembers(context.Background(), members); err != nil {
		t.Fatalf("insert duo members: %v", err)
	}
	return rows[0]
}

func (f *resolveFixture) recordState(t *testing.T, teamID int64, at time.Time, rating int) {
	t.Helper()
	err := f.stateRepo.AppendBatch(context.Background(), []teamstate.State{
		{TeamID: teamID, Timestamp: at, Rating: rating, Games: 10},
	})
	if err != nil {
		t.Fatalf("append state: %v", err)
	}
}

func (f *resolveFixture) recordSoloMatch(t *testing.T, winner, loser int64) match.Match {
	t.Helper()
	stored, err := f.svc.RecordMatch(context.Background(), match.Match{
		Date:   matchDate,
		Type:   match.Type1v1,
		MapID:  5000,
		Region: ladder.RegionEU,
	}, []match.Participant{
		{CharacterID: winner, Realm: 1, Decision: ladder.DecisionWin},
		{CharacterID: loser, Realm: 1, Decision: ladder.DecisionLoss},
	})
	if err != nil {
		t.Fatalf("record match: %v", err)
	}
	return stored
}

func (f *resolveFixture) participantsOf(t *testing.T, matchID int64) map[int64]match.Participant {
	t.Helper()
	rows, err := f.matchRepo.ListParticipants(context.Background(), matchID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	out := make(map[int64]match.Participant, len(rows))
	for _, row := range rows {
		out[row.CharacterID] = row
	}
	return out
}

func TestResolveWindowPicksClosestState(t *testing.T) {
	f := newResolveFixture(MatchResolveConfig{Window: time.Hour})
	winner := f.soloLadderTeam(t, 100, ladder.RaceZerg)
	loser := f.soloLadderTeam(t, 200, ladder.RaceTerran)

	// Predecessor before the match, then two in-window states.
	f.recordState(t, winner.ID, matchDate.Add(-30*time.Minute), 3000)
	f.recordState(t, winner.ID, matchDate.Add(5*time.Minute), 3016)
	f.recordState(t, winner.ID, matchDate.Add(20*time.Minute), 3030)
	f.recordState(t, loser.ID, matchDate.Add(5*time.Minute), 2984)

	stored := f.recordSoloMatch(t, 100, 200)

	result, err := f.svc.ResolveWindow(context.Background(), matchDate.Add(-time.Hour), matchDate.Add(time.Hour))
	if err != nil {
		t.Fatalf("resolve window failed: %v", err)
	}
	if result.Examined != 2 || result.Resolved != 2 || result.Unresolved != 0 {
		t.Fatalf("expected both participants resolved, got %+v", result)
	}

	rows := f.participantsOf(t, stored.ID)
	won := rows[100]
	if won.TeamID == nil || *won.TeamID != winner.ID {
		t.Fatalf("winner attributed to %v, want team %d", won.TeamID, winner.ID)
	}
	if !won.TeamStateTimestamp.Equal(matchDate.Add(5 * time.Minute)) {
		t.Fatalf("expected the closest state chosen, got %v", won.TeamStateTimestamp)
	}
	if won.RatingChange == nil || *won.RatingChange != 16 {
		t.Fatalf("expected rating change +16, got %v", won.RatingChange)
	}

	lost := rows[200]
	if lost.TeamID == nil || *lost.TeamID != loser.ID {
		t.Fatalf("loser attributed to %v, want team %d", lost.TeamID, loser.ID)
	}
	// The loser's chosen state has no loaded predecessor.
	if lost.RatingChange != nil {
		t.Fatalf("expected nil rating change without predecessor, got %d", *lost.RatingChange)
	}
}

func TestResolveWindowAcceptsStateAtMatchDate(t *testing.T) {
	f := newResolveFixture(MatchResolveConfig{Window: time.Hour})
	winner := f.soloLadderTeam(t, 100, ladder.RaceZerg)
	f.recordState(t, winner.ID, matchDate, 3016)

	stored := f.recordSoloMatch(t, 100, 200)
	if _, err := f.svc.ResolveWindow(context.Background(), matchDate.Add(-time.Hour), matchDate.Add(time.Hour)); err != nil {
		t.Fatalf("resolve window failed: %v", err)
	}

	rows := f.participantsOf(t, stored.ID)
	if rows[100].TeamID == nil {
		t.Fatal("state stamped exactly at the match date must resolve")
	}
}

func TestResolveWindowIgnoresStatesOutsideWindow(t *testing.T) {
	f := newResolveFixture(MatchResolveConfig{Window: time.Hour})
	winner := f.soloLadderTeam(t, 100, ladder.RaceZerg)

	// One state before the match, one past the window.
	f.recordState(t, winner.ID, matchDate.Add(-time.Minute), 3000)
	f.recordState(t, winner.ID, matchDate.Add(61*time.Minute), 3016)

	stored := f.recordSoloMatch(t, 100, 200)
	result, err := f.svc.ResolveWindow(context.Background(), matchDate.Add(-time.Hour), matchDate.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("resolve window failed: %v", err)
	}
	if result.Resolved != 0 {
		t.Fatalf("expected nothing resolved, got %+v", result)
	}

	rows := f.participantsOf(t, stored.ID)
	if rows[100].TeamID != nil {
		t.Fatal("out-of-window states must not resolve a participant")
	}
}

func TestResolveWindowTieBreaksLowerTeamID(t *testing.T) {
	f := newResolveFixture(MatchResolveConfig{Window: time.Hour})
	zerg := f.soloLadderTeam(t, 100, ladder.RaceZerg)
	random := f.soloLadderTeam(t, 100, ladder.RaceRandom)

	at := matchDate.Add(5 * time.Minute)
	f.recordState(t, zerg.ID, at, 3016)
	f.recordState(t, random.ID, at, 2700)

	stored := f.recordSoloMatch(t, 100, 200)
	if _, err := f.svc.ResolveWindow(context.Background(), matchDate.Add(-time.Hour), matchDate.Add(time.Hour)); err != nil {
		t.Fatalf("resolve window failed: %v", err)
	}

	rows := f.participantsOf(t, stored.ID)
	if rows[100].TeamID == nil || *rows[100].TeamID != zerg.ID {
		t.Fatalf("equidistant candidates must break ties on lower team id, got %v", rows[100].TeamID)
	}
}

func TestResolveWindowScanDurationTightensBound(t *testing.T) {
	f := newResolveFixture(MatchResolveConfig{Window: time.Hour})
	winner := f.soloLadderTeam(t, 100, ladder.RaceZerg)
	f.recordState(t, winner.ID, matchDate.Add(30*time.Minute), 3016)

	// A 10 minute scan caps candidate staleness at 20 minutes.
	if err := f.scanRepo.Insert(context.Background(), []scan.Record{{
		Region:          winner.Region,
		QueueType:       winner.QueueType,
		LeagueType:      winner.LeagueType,
		StartedAt:       matchDate.Add(-time.Hour),
		DurationSeconds: 600,
	}}); err != nil {
		t.Fatalf("insert scan: %v", err)
	}

	stored := f.recordSoloMatch(t, 100, 200)
	if _, err := f.svc.ResolveWindow(context.Background(), matchDate.Add(-time.Hour), matchDate.Add(time.Hour)); err != nil {
		t.Fatalf("resolve window failed: %v", err)
	}
	rows := f.participantsOf(t, stored.ID)
	if rows[100].TeamID != nil {
		t.Fatal("state beyond twice the scan duration must not resolve")
	}

	// Without a recorded scan the full window applies.
	g := newResolveFixture(MatchResolveConfig{Window: time.Hour})
	control := g.soloLadderTeam(t, 100, ladder.RaceZerg)
	g.recordState(t, control.ID, matchDate.Add(30*time.Minute), 3016)
	controlMatch := g.recordSoloMatch(t, 100, 200)
	if _, err := g.svc.ResolveWindow(context.Background(), matchDate.Add(-time.Hour), matchDate.Add(time.Hour)); err != nil {
		t.Fatalf("control resolve failed: %v", err)
	}
	if g.participantsOf(t, controlMatch.ID)[100].TeamID == nil {
		t.Fatal("without scans the full window must apply")
	}
}

func TestResolveWindowChecksTeamComposition(t *testing.T) {
	f := newResolveFixture(MatchResolveConfig{Window: time.Hour})
	together := f.duoLadderTeam(t, 100, 101)
	other := f.duoLadderTeam(t, 100, 102)

	// The mismatching duo has the closer state.
	f.recordState(t, other.ID, matchDate.Add(2*time.Minute), 2810)
	f.recordState(t, together.ID, matchDate.Add(10*time.Minute), 2816)

	stored, err := f.svc.RecordMatch(context.Background(), match.Match{
		Date:   matchDate,
		Type:   match.Type2v2,
		MapID:  5001,
		Region: ladder.RegionEU,
	}, []match.Participant{
		{CharacterID: 100, Realm: 1, Decision: ladder.DecisionWin},
		{CharacterID: 101, Realm: 1, Decision: ladder.DecisionWin},
		{CharacterID: 200, Realm: 1, Decision: ladder.DecisionLoss},
		{CharacterID: 201, Realm: 1, Decision: ladder.DecisionLoss},
	})
	if err != nil {
		t.Fatalf("record match: %v", err)
	}

	if _, err := f.svc.ResolveWindow(context.Background(), matchDate.Add(-time.Hour), matchDate.Add(time.Hour)); err != nil {
		t.Fatalf("resolve window failed: %v", err)
	}

	rows := f.participantsOf(t, stored.ID)
	if rows[100].TeamID == nil || *rows[100].TeamID != together.ID {
		t.Fatalf("participant must resolve to the team matching its side, got %v", rows[100].TeamID)
	}
	if rows[101].TeamID == nil || *rows[101].TeamID != together.ID {
		t.Fatalf("teammate must resolve to the same team, got %v", rows[101].TeamID)
	}
}

func TestResolveWindowSkipsObservers(t *testing.T) {
	f := newResolveFixture(MatchResolveConfig{Window: time.Hour})
	winner := f.soloLadderTeam(t, 100, ladder.RaceZerg)
	f.recordState(t, winner.ID, matchDate.Add(5*time.Minute), 3016)

	stored, err := f.svc.RecordMatch(context.Background(), match.Match{
		Date:   matchDate,
		Type:   match.Type1v1,
		MapID:  5000,
		Region: ladder.RegionEU,
	}, []match.Participant{
		{CharacterID: 100, Realm: 1, Decision: ladder.DecisionWin},
		{CharacterID: 300, Realm: 1, Decision: ladder.DecisionObserver},
	})
	if err != nil {
		t.Fatalf("record match: %v", err)
	}

	if _, err := f.svc.ResolveWindow(context.Background(), matchDate.Add(-time.Hour), matchDate.Add(time.Hour)); err != nil {
		t.Fatalf("resolve window failed: %v", err)
	}

	rows := f.participantsOf(t, stored.ID)
	if rows[300].TeamID != nil {
		t.Fatal("observers must never be attributed")
	}
}

func TestResolveWindowAttributionIsImmutable(t *testing.T) {
	f := newResolveFixture(MatchResolveConfig{Window: time.Hour})
	winner := f.soloLadderTeam(t, 100, ladder.RaceZerg)
	f.recordState(t, winner.ID, matchDate.Add(10*time.Minute), 3016)

	stored := f.recordSoloMatch(t, 100, 200)
	if _, err := f.svc.ResolveWindow(context.Background(), matchDate.Add(-time.Hour), matchDate.Add(time.Hour)); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}

	// A closer state arriving later must not rewrite the attribution.
	f.recordState(t, winner.ID, matchDate.Add(time.Minute), 3020)
	result, err := f.svc.ResolveWindow(context.Background(), matchDate.Add(-time.Hour), matchDate.Add(time.Hour))
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if result.Resolved != 0 {
		t.Fatalf("rerun must not resolve already-attributed rows, got %+v", result)
	}

	rows := f.participantsOf(t, stored.ID)
	if !rows[100].TeamStateTimestamp.Equal(matchDate.Add(10 * time.Minute)) {
		t.Fatalf("attribution changed on rerun: %v", rows[100].TeamStateTimestamp)
	}
}

func TestRecordMatchAttachesToExisting(t *testing.T) {
	f := newResolveFixture(MatchResolveConfig{})

	first, err := f.svc.RecordMatch(context.Background(), match.Match{
		Date: matchDate, Type: match.Type1v1, MapID: 5000, Region: ladder.RegionEU,
	}, []match.Participant{{CharacterID: 100, Realm: 1, Decision: ladder.DecisionWin}})
	if err != nil {
		t.Fatalf("first record failed: %v", err)
	}

	second, err := f.svc.RecordMatch(context.Background(), match.Match{
		Date: matchDate, Type: match.Type1v1, MapID: 5000, Region: ladder.RegionEU,
	}, []match.Participant{{CharacterID: 200, Realm: 1, Decision: ladder.DecisionLoss}})
	if err != nil {
		t.Fatalf("second record failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("same natural key must reuse the match row: %d vs %d", first.ID, second.ID)
	}
	if len(f.participantsOf(t, first.ID)) != 2 {
		t.Fatal("both observations must attach to the one match")
	}
}
