package memory

import (
	"context"
	"sync"

	"github.com/openladder/laddercore/internal/domain/cheater"
)

type CheaterRepository struct {
	mu      sync.RWMutex
	reports []cheater.Report
}

func NewCheaterRepository(reports []cheater.Report) *CheaterRepository {
	return &CheaterRepository{reports: append([]cheater.Report(nil), reports...)}
}

func (r *CheaterRepository) ListRestricted(_ context.Context) ([]cheater.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]cheater.Report, 0, len(r.reports))
	out = append(out, r.reports...)
	return out, nil
}

func (r *CheaterRepository) AddReport(report cheater.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports = append(r.reports, report)
}
