package memory

import (
	"context"
	"sync"

	"github.com/openladder/laddercore/internal/domain/population"
)

type PopulationRepository struct {
	mu   sync.RWMutex
	seq  int64
	rows []population.Snapshot
}

func NewPopulationRepository() *PopulationRepository {
	return &PopulationRepository{}
}

func (r *PopulationRepository) Insert(_ context.Context, snapshots []population.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, snapshot := range snapshots {
		r.seq++
		snapshot.ID = r.seq
		r.rows = append(r.rows, snapshot)
	}
	return nil
}

func (r *PopulationRepository) LatestBySeason(_ context.Context, season int) (map[population.LeagueKey]population.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[population.LeagueKey]population.Snapshot)
	for _, snapshot := range r.rows {
		if snapshot.Season != season {
			continue
		}
		key := snapshot.LeagueKey()
		if existing, ok := out[key]; !ok || snapshot.Created.After(existing.Created) {
			out[key] = snapshot
		}
	}
	return out, nil
}
