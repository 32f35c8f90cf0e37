package usecase

import (
	"context"
	"testing"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/population"
	"github.com/openladder/laddercore/internal/domain/team"
	"github.com/openladder/laddercore/internal/infrastructure/repository/memory"
	"github.com/openladder/laddercore/internal/platform/logging"
)

func TestTakeSnapshotCountsThreeWidths(t *testing.T) {
	teamRepo := memory.NewTeamRepository()
	populationRepo := memory.NewPopulationRepository()
	svc := NewPopulationService(teamRepo, populationRepo, logging.NewNop())

	insertRankedTeams(t, teamRepo, []team.Team{
		rankedTeam(ladder.RegionEU, ladder.LeagueDiamond, 3000, 100),
		rankedTeam(ladder.RegionEU, ladder.LeagueDiamond, 2900, 101),
		rankedTeam(ladder.RegionEU, ladder.LeaguePlatinum, 2800, 102),
		rankedTeam(ladder.RegionUS, ladder.LeagueDiamond, 2950, 103),
	})

	partitions, err := svc.TakeSnapshot(context.Background(), 50)
	if err != nil {
		t.Fatalf("take snapshot failed: %v", err)
	}
	if partitions != 3 {
		t.Fatalf("expected 3 league partitions, got %d", partitions)
	}

	snapshots, err := populationRepo.LatestBySeason(context.Background(), 50)
	if err != nil {
		t.Fatalf("load snapshots: %v", err)
	}

	euDiamond := snapshots[population.LeagueKey{
		Season:     50,
		Region:     ladder.RegionEU,
		QueueType:  ladder.Queue1v1,
		TeamType:   ladder.TeamArranged,
		LeagueType: ladder.LeagueDiamond,
	}]
	if euDiamond.GlobalTeamCount != 4 || euDiamond.RegionTeamCount != 3 || euDiamond.LeagueTeamCount != 2 {
		t.Fatalf("unexpected EU diamond counts: %+v", euDiamond)
	}

	usDiamond := snapshots[population.LeagueKey{
		Season:     50,
		Region:     ladder.RegionUS,
		QueueType:  ladder.Queue1v1,
		TeamType:   ladder.TeamArranged,
		LeagueType: ladder.LeagueDiamond,
	}]
	if usDiamond.GlobalTeamCount != 4 || usDiamond.RegionTeamCount != 1 || usDiamond.LeagueTeamCount != 1 {
		t.Fatalf("unexpected US diamond counts: %+v", usDiamond)
	}
}

func TestTakeSnapshotEmptySeason(t *testing.T) {
	svc := NewPopulationService(memory.NewTeamRepository(), memory.NewPopulationRepository(), logging.NewNop())

	partitions, err := svc.TakeSnapshot(context.Background(), 7)
	if err != nil {
		t.Fatalf("take snapshot failed: %v", err)
	}
	if partitions != 0 {
		t.Fatalf("expected no partitions for empty season, got %d", partitions)
	}
}
