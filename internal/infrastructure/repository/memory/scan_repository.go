package memory

import (
	"context"
	"sync"
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/scan"
)

type ScanRepository struct {
	mu   sync.RWMutex
	rows []scan.Record
}

func NewScanRepository() *ScanRepository {
	return &ScanRepository{}
}

func (r *ScanRepository) Insert(_ context.Context, records []scan.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows = append(r.rows, records...)
	return nil
}

func (r *ScanRepository) MaxDurationWithin(
	_ context.Context,
	region ladder.Region,
	queue ladder.QueueType,
	league ladder.LeagueType,
	from, to time.Time,
) (time.Duration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var max int64
	for _, record := range r.rows {
		if record.Region != region || record.QueueType != queue || record.LeagueType != league {
			continue
		}
		if record.StartedAt.Before(from) || record.StartedAt.After(to) {
			continue
		}
		if record.DurationSeconds > max {
			max = record.DurationSeconds
		}
	}
	return time.Duration(max) * time.Second, nil
}
