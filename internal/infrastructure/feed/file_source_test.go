package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/platform/logging"
)

func writeBatch(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestFetchTeamSnapshots(t *testing.T) {
	dir := t.TempDir()
	writeBatch(t, dir, "teams_eu_50.json", `[
		{
			"queueType": 201,
			"teamType": 0,
			"region": 2,
			"legacyId": "1.42.3",
			"season": 50,
			"divisionId": 900,
			"leagueType": 4,
			"rating": 3500,
			"wins": 10,
			"losses": 5,
			"lastPlayed": "2026-03-01T11:59:00Z",
			"primaryDataUpdated": "2026-03-01T12:00:00Z",
			"members": [{"characterId": 42, "realm": 1, "zergGames": 15}]
		}
	]`)
	source := NewFileSource(dir, logging.NewNop())

	snapshots, err := source.FetchTeamSnapshots(context.Background(), ladder.RegionEU, 50)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	snapshot := snapshots[0]
	require.Equal(t, ladder.Queue1v1, snapshot.QueueType)
	require.Equal(t, ladder.RegionEU, snapshot.Region)
	require.Equal(t, "1.42.3", snapshot.LegacyID)
	require.Equal(t, ladder.LeagueDiamond, snapshot.LeagueType)
	require.NotNil(t, snapshot.LastPlayed)
	require.Len(t, snapshot.Members, 1)
	require.Equal(t, int64(42), snapshot.Members[0].CharacterID)
	require.Equal(t, 15, snapshot.Members[0].ZergGames)
}

func TestFetchTeamSnapshotsMissingFile(t *testing.T) {
	source := NewFileSource(t.TempDir(), logging.NewNop())

	snapshots, err := source.FetchTeamSnapshots(context.Background(), ladder.RegionKR, 50)
	require.NoError(t, err)
	require.Nil(t, snapshots)
}

func TestFetchTeamSnapshotsMalformedBatch(t *testing.T) {
	dir := t.TempDir()
	writeBatch(t, dir, "teams_eu_50.json", `{"not": "an array"}`)
	source := NewFileSource(dir, logging.NewNop())

	_, err := source.FetchTeamSnapshots(context.Background(), ladder.RegionEU, 50)
	require.Error(t, err)
}

func TestFetchClanObservations(t *testing.T) {
	dir := t.TempDir()
	writeBatch(t, dir, "clans_us.json", `[
		{"characterId": 42, "clanId": 7, "observedAt": "2026-03-01T12:00:00Z"},
		{"characterId": 43, "clanId": null, "observedAt": "2026-03-01T12:00:00Z"}
	]`)
	source := NewFileSource(dir, logging.NewNop())

	observations, err := source.FetchClanObservations(context.Background(), ladder.RegionUS)
	require.NoError(t, err)
	require.Len(t, observations, 2)
	require.NotNil(t, observations[0].ClanID)
	require.EqualValues(t, 7, *observations[0].ClanID)
	require.Nil(t, observations[1].ClanID)
}
