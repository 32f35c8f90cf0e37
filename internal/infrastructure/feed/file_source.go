// Package feed implements the snapshot source boundary over batch files
// dropped by the external poller. Records arrive already parsed into the
// domain shapes; this package only deserializes the batch container.
package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/openladder/laddercore/internal/domain/clan"
	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/team"
	"github.com/openladder/laddercore/internal/platform/logging"
)

type FileSource struct {
	dir    string
	logger *logging.Logger
}

func NewFileSource(dir string, logger *logging.Logger) *FileSource {
	if logger == nil {
		logger = logging.Default()
	}
	return &FileSource{dir: dir, logger: logger}
}

type teamSnapshotRecord struct {
	QueueType          int16                  `json:"queueType"`
	TeamType           int16                  `json:"teamType"`
	Region             int16                  `json:"region"`
	LegacyID           string                 `json:"legacyId"`
	Season             int                    `json:"season"`
	DivisionID         int64                  `json:"divisionId"`
	LeagueType         int16                  `json:"leagueType"`
	TierType           int16                  `json:"tierType"`
	Rating             int                    `json:"rating"`
	Wins               int                    `json:"wins"`
	Losses             int                    `json:"losses"`
	Ties               int                    `json:"ties"`
	Points             int                    `json:"points"`
	LastPlayed         *time.Time             `json:"lastPlayed"`
	Joined             *time.Time             `json:"joined"`
	PrimaryDataUpdated time.Time              `json:"primaryDataUpdated"`
	Members            []memberSnapshotRecord `json:"members"`
}

type memberSnapshotRecord struct {
	CharacterID  int64 `json:"characterId"`
	Realm        int16 `json:"realm"`
	TerranGames  int   `json:"terranGames"`
	ProtossGames int   `json:"protossGames"`
	ZergGames    int   `json:"zergGames"`
	RandomGames  int   `json:"randomGames"`
}

type clanObservationRecord struct {
	CharacterID int64     `json:"characterId"`
	ClanID      *int64    `json:"clanId"`
	ObservedAt  time.Time `json:"observedAt"`
}

func (s *FileSource) FetchTeamSnapshots(ctx context.Context, region ladder.Region, season int) ([]team.Snapshot, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("teams_%s_%d.json", strings.ToLower(region.String()), season))
	raw, err := s.readBatch(ctx, path)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var records []teamSnapshotRecord
	if err := sonic.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode team snapshot batch %s: %w", path, err)
	}

	out := make([]team.Snapshot, 0, len(records))
	for _, record := range records {
		snapshot := team.Snapshot{
			QueueType:          ladder.QueueType(record.QueueType),
			TeamType:           ladder.TeamType(record.TeamType),
			Region:             ladder.Region(record.Region),
			LegacyID:           record.LegacyID,
			Season:             record.Season,
			DivisionID:         record.DivisionID,
			LeagueType:         ladder.LeagueType(record.LeagueType),
			TierType:           ladder.TierType(record.TierType),
			Rating:             record.Rating,
			Wins:               record.Wins,
			Losses:             record.Losses,
			Ties:               record.Ties,
			Points:             record.Points,
			LastPlayed:         record.LastPlayed,
			Joined:             record.Joined,
			PrimaryDataUpdated: record.PrimaryDataUpdated,
		}
		for _, member := range record.Members {
			snapshot.Members = append(snapshot.Members, team.MemberSnapshot{
				CharacterID:  member.CharacterID,
				Realm:        member.Realm,
				TerranGames:  member.TerranGames,
				ProtossGames: member.ProtossGames,
				ZergGames:    member.ZergGames,
				RandomGames:  member.RandomGames,
			})
		}
		out = append(out, snapshot)
	}
	return out, nil
}

func (s *FileSource) FetchClanObservations(ctx context.Context, region ladder.Region) ([]clan.Observation, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("clans_%s.json", strings.ToLower(region.String())))
	raw, err := s.readBatch(ctx, path)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var records []clanObservationRecord
	if err := sonic.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode clan observation batch %s: %w", path, err)
	}

	out := make([]clan.Observation, 0, len(records))
	for _, record := range records {
		out = append(out, clan.Observation{
			CharacterID: record.CharacterID,
			ClanID:      record.ClanID,
			ObservedAt:  record.ObservedAt,
		})
	}
	return out, nil
}

// readBatch returns nil without error when no batch file is present; an
// absent drop simply means nothing new to ingest.
func (s *FileSource) readBatch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.DebugContext(ctx, "no batch file", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("read batch file %s: %w", path, err)
	}
	return raw, nil
}
