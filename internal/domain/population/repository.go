package population

import "context"

// Repository describes population snapshot persistence needs from use cases.
type Repository interface {
	Insert(ctx context.Context, snapshots []Snapshot) error
	// LatestBySeason returns the most recent snapshot per league partition.
	LatestBySeason(ctx context.Context, season int) (map[LeagueKey]Snapshot, error)
}
