package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openladder/laddercore/internal/domain/clan"
	"github.com/openladder/laddercore/internal/platform/logging"
)

type ClanIngestResult struct {
	Joins  int
	Leaves int
}

// ClanEventService turns polled membership observations into the
// append-only join/leave event log.
type ClanEventService struct {
	clanRepo clan.Repository
	logger   *logging.Logger
}

func NewClanEventService(clanRepo clan.Repository, logger *logging.Logger) *ClanEventService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ClanEventService{clanRepo: clanRepo, logger: logger}
}

// Ingest derives events from observations. An unchanged membership yields
// nothing, so replaying a batch is harmless. A direct clan-to-clan move
// yields a leave stamped one millisecond before the join, which keeps the
// per-character timeline strictly ordered and the departure attributable
// to the clan actually left.
func (s *ClanEventService) Ingest(ctx context.Context, observations []clan.Observation) (ClanIngestResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ClanEventService.Ingest")
	defer span.End()

	result := ClanIngestResult{}
	if len(observations) == 0 {
		return result, nil
	}

	sorted := append([]clan.Observation(nil), observations...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CharacterID != sorted[j].CharacterID {
			return sorted[i].CharacterID < sorted[j].CharacterID
		}
		return sorted[i].ObservedAt.Before(sorted[j].ObservedAt)
	})

	idSet := make(map[int64]struct{}, len(sorted))
	for _, observation := range sorted {
		idSet[observation.CharacterID] = struct{}{}
	}
	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	lastEvents, err := s.clanRepo.LastEvents(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("load last clan events: %w", err)
	}

	var events []clan.Event
	emit := func(event clan.Event) {
		previous, hasPrevious := lastEvents[event.CharacterID]
		if hasPrevious {
			seconds := int64(event.Created.Sub(previous.Created) / time.Second)
			event.SecondsSincePrevious = &seconds
		}
		events = append(events, event)
		lastEvents[event.CharacterID] = event
		if event.Type == clan.EventJoin {
			result.Joins++
		} else {
			result.Leaves++
		}
	}

	for _, observation := range sorted {
		last, hasLast := lastEvents[observation.CharacterID]
		if hasLast && !observation.ObservedAt.After(last.Created) {
			continue
		}

		var currentClan *int64
		if hasLast && last.Type == clan.EventJoin {
			currentClan = last.ClanID
		}

		switch {
		case sameClan(currentClan, observation.ClanID):
			// Membership unchanged.
		case currentClan == nil:
			emit(clan.Event{
				CharacterID: observation.CharacterID,
				Created:     observation.ObservedAt,
				ClanID:      observation.ClanID,
				Type:        clan.EventJoin,
			})
		case observation.ClanID == nil:
			emit(clan.Event{
				CharacterID: observation.CharacterID,
				Created:     observation.ObservedAt,
				ClanID:      currentClan,
				Type:        clan.EventLeave,
			})
		default:
			emit(clan.Event{
				CharacterID: observation.CharacterID,
				Created:     observation.ObservedAt.Add(-time.Millisecond),
				ClanID:      currentClan,
				Type:        clan.EventLeave,
			})
			emit(clan.Event{
				CharacterID: observation.CharacterID,
				Created:     observation.ObservedAt,
				ClanID:      observation.ClanID,
				Type:        clan.EventJoin,
			})
		}
	}

	if len(events) == 0 {
		return result, nil
	}
	if err := s.clanRepo.Append(ctx, events); err != nil {
		return result, fmt.Errorf("append clan events: %w", err)
	}

	s.logger.InfoContext(ctx, "clan events ingested",
		"observations", len(observations),
		"joins", result.Joins,
		"leaves", result.Leaves,
	)
	return result, nil
}

func sameClan(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
