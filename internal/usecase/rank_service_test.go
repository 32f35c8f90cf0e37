package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/openladder/laddercore/internal/domain/cheater"
	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/population"
	"github.com/openladder/laddercore/internal/domain/team"
	"github.com/openladder/laddercore/internal/infrastructure/repository/memory"
	"github.com/openladder/laddercore/internal/platform/logging"
)

func rankedTeam(region ladder.Region, league ladder.LeagueType, rating int, characterID int64) team.Team {
	return team.Team{
		QueueType:          ladder.Queue1v1,
		TeamType:           ladder.TeamArranged,
		Region:             region,
		LegacyID:           ladder.LegacyID([]ladder.MemberKey{{Realm: 1, CharacterID: characterID}}, ladder.RaceProtoss),
		Season:             50,
		DivisionID:         900,
		LeagueType:         league,
		Rating:             rating,
		Wins:               10,
		PrimaryDataUpdated: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func insertRankedTeams(t *testing.T, repo *memory.TeamRepository, teams []team.Team) []team.Team {
	t.Helper()
	if err := repo.Insert(context.Background(), teams); err != nil {
		t.Fatalf("seed teams: %v", err)
	}
	members := make([]team.Member, 0, len(teams))
	for i, row := range teams {
		members = append(members, team.Member{
			TeamID:      row.ID,
			CharacterID: int64(100 + i),
			Realm:       1,
		})
	}
	if err := repo.UpsertMembers(context.Background(), members); err != nil {
		t.Fatalf("seed members: %v", err)
	}
	return teams
}

func TestComputeRanksDenseAcrossPartitions(t *testing.T) {
	teamRepo := memory.NewTeamRepository()
	svc := NewRankService(teamRepo, memory.NewCheaterRepository(nil), memory.NewPopulationRepository(), logging.NewNop())

	teams := insertRankedTeams(t, teamRepo, []team.Team{
		rankedTeam(ladder.RegionEU, ladder.LeagueDiamond, 3000, 100),
		rankedTeam(ladder.RegionEU, ladder.LeagueDiamond, 2900, 101),
		rankedTeam(ladder.RegionUS, ladder.LeagueDiamond, 2900, 102),
		rankedTeam(ladder.RegionEU, ladder.LeaguePlatinum, 2800, 103),
	})

	result, err := svc.ComputeRanks(context.Background(), 50)
	if err != nil {
		t.Fatalf("compute ranks failed: %v", err)
	}
	if result.Ranked != 4 || result.Excluded != 0 {
		t.Fatalf("expected 4 ranked, got %+v", result)
	}

	stored, _ := teamRepo.ListBySeason(context.Background(), 50)
	byID := make(map[int64]team.Team, len(stored))
	for _, row := range stored {
		byID[row.ID] = row
	}

	assertRanks := func(id int64, global, region, league int) {
		t.Helper()
		row := byID[id]
		if row.GlobalRank == nil || *row.GlobalRank != global {
			t.Fatalf("team %d: expected global rank %d, got %v", id, global, row.GlobalRank)
		}
		if row.RegionRank == nil || *row.RegionRank != region {
			t.Fatalf("team %d: expected region rank %d, got %v", id, region, row.RegionRank)
		}
		if row.LeagueRank == nil || *row.LeagueRank != league {
			t.Fatalf("team %d: expected league rank %d, got %v", id, league, row.LeagueRank)
		}
	}

	// Equal ratings share a rank; the next distinct rating takes rank+1.
	assertRanks(teams[0].ID, 1, 1, 1)
	assertRanks(teams[1].ID, 2, 2, 2)
	assertRanks(teams[2].ID, 2, 1, 1)
	assertRanks(teams[3].ID, 3, 3, 1)
}

func TestComputeRanksExcludesRestrictedTeams(t *testing.T) {
	teamRepo := memory.NewTeamRepository()
	cheaterRepo := memory.NewCheaterRepository([]cheater.Report{
		{CharacterID: 101, Status: true, Restrictions: true},
		// Confirmed but unrestricted report must not disqualify.
		{CharacterID: 100, Status: true, Restrictions: false},
	})
	svc := NewRankService(teamRepo, cheaterRepo, memory.NewPopulationRepository(), logging.NewNop())

	teams := insertRankedTeams(t, teamRepo, []team.Team{
		rankedTeam(ladder.RegionEU, ladder.LeagueDiamond, 2900, 100),
		rankedTeam(ladder.RegionEU, ladder.LeagueDiamond, 3000, 101),
	})

	// The restricted team already carries a population link from an earlier
	// cycle.
	linkID := int64(77)
	teams[1].PopulationSnapshotID = &linkID
	if err := teamRepo.SetRanks(context.Background(), []team.Team{teams[1]}); err != nil {
		t.Fatalf("seed population link: %v", err)
	}

	result, err := svc.ComputeRanks(context.Background(), 50)
	if err != nil {
		t.Fatalf("compute ranks failed: %v", err)
	}
	if result.Ranked != 1 || result.Excluded != 1 {
		t.Fatalf("expected 1 ranked and 1 excluded, got %+v", result)
	}

	stored, _ := teamRepo.ListBySeason(context.Background(), 50)
	byID := make(map[int64]team.Team, len(stored))
	for _, row := range stored {
		byID[row.ID] = row
	}

	excluded := byID[teams[1].ID]
	if excluded.GlobalRank != nil || excluded.RegionRank != nil || excluded.LeagueRank != nil {
		t.Fatalf("excluded team must have no ranks, got %+v", excluded)
	}
	// Exclusion only clears the ranks; the rest of the row is untouched.
	if excluded.PopulationSnapshotID == nil || *excluded.PopulationSnapshotID != linkID {
		t.Fatalf("exclusion must leave the population link alone, got %v", excluded.PopulationSnapshotID)
	}

	// The clean team takes rank 1 despite the higher-rated excluded team.
	clean := byID[teams[0].ID]
	if clean.GlobalRank == nil || *clean.GlobalRank != 1 {
		t.Fatalf("expected clean team at rank 1, got %v", clean.GlobalRank)
	}
}

func TestComputeRanksLinksPopulationSnapshot(t *testing.T) {
	teamRepo := memory.NewTeamRepository()
	populationRepo := memory.NewPopulationRepository()
	populationSvc := NewPopulationService(teamRepo, populationRepo, logging.NewNop())
	rankSvc := NewRankService(teamRepo, memory.NewCheaterRepository(nil), populationRepo, logging.NewNop())

	insertRankedTeams(t, teamRepo, []team.Team{
		rankedTeam(ladder.RegionEU, ladder.LeagueDiamond, 3000, 100),
	})

	if _, err := populationSvc.TakeSnapshot(context.Background(), 50); err != nil {
		t.Fatalf("take snapshot failed: %v", err)
	}
	if _, err := rankSvc.ComputeRanks(context.Background(), 50); err != nil {
		t.Fatalf("compute ranks failed: %v", err)
	}

	snapshots, _ := populationRepo.LatestBySeason(context.Background(), 50)
	want := snapshots[population.LeagueKey{
		Season:     50,
		Region:     ladder.RegionEU,
		QueueType:  ladder.Queue1v1,
		TeamType:   ladder.TeamArranged,
		LeagueType: ladder.LeagueDiamond,
	}]
	if want.ID == 0 {
		t.Fatal("expected a snapshot for the diamond partition")
	}

	stored, _ := teamRepo.ListBySeason(context.Background(), 50)
	if stored[0].PopulationSnapshotID == nil || *stored[0].PopulationSnapshotID != want.ID {
		t.Fatalf("expected population snapshot %d, got %v", want.ID, stored[0].PopulationSnapshotID)
	}
}
