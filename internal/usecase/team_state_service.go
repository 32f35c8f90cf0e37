package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/team"
	"github.com/openladder/laddercore/internal/domain/teamstate"
	"github.com/openladder/laddercore/internal/platform/logging"
)

type TeamStateConfig struct {
	// ChunkSize caps rows per append statement to keep execution plans
	// bounded regardless of batch size.
	ChunkSize int
	// TTL is the age past which unarchived states are pruned.
	TTL time.Duration
	// ArchiveWindow is the bucket within which rating extrema and the most
	// recent state survive pruning.
	ArchiveWindow time.Duration
	// PrimaryQueue marks which queue's history is primary; every other
	// queue is recorded with the secondary flag so series never mix.
	PrimaryQueue ladder.QueueType
}

type RecordResult struct {
	Appended     int
	FailedChunks int
}

type ArchiveResult struct {
	Archived int
	Deleted  int64
}

// TeamStateService appends the per-cycle time series for merged teams and
// periodically archives extrema before pruning old rows.
type TeamStateService struct {
	stateRepo teamstate.Repository
	cfg       TeamStateConfig
	logger    *logging.Logger
	now       func() time.Time
}

func NewTeamStateService(stateRepo teamstate.Repository, cfg TeamStateConfig, logger *logging.Logger) *TeamStateService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 200
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 720 * time.Hour
	}
	if cfg.ArchiveWindow <= 0 {
		cfg.ArchiveWindow = 168 * time.Hour
	}

	return &TeamStateService{
		stateRepo: stateRepo,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// RecordStates appends one state per accepted team, stamped with the cycle
// timestamp. A zero takenAt falls back to each team's own lastPlayed, which
// lets historical backfills keep their original timeline. Appends run in
// fixed-size chunks; a missing team id poisons only its own chunk and the
// rest of the batch still lands, while any other storage failure aborts so
// the whole job can retry.
func (s *TeamStateService) RecordStates(
	ctx context.Context,
	teams []team.Team,
	takenAt time.Time,
) (RecordResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TeamStateService.RecordStates")
	defer span.End()

	result := RecordResult{}
	if len(teams) == 0 {
		return result, nil
	}

	states := make([]teamstate.State, 0, len(teams))
	for _, row := range teams {
		if row.ID == 0 {
			return result, fmt.Errorf("%w: team %s has no id", ErrInvalidInput, row.LegacyID)
		}
		timestamp := takenAt
		if timestamp.IsZero() {
			if row.LastPlayed != nil {
				timestamp = *row.LastPlayed
			} else {
				timestamp = s.now()
			}
		}
		states = append(states, teamstate.State{
			TeamID:     row.ID,
			Timestamp:  timestamp.UTC(),
			Rating:     row.Rating,
			Games:      row.TotalGames(),
			Wins:       row.Wins,
			GlobalRank: cloneIntPtr(row.GlobalRank),
			RegionRank: cloneIntPtr(row.RegionRank),
			LeagueRank: cloneIntPtr(row.LeagueRank),
			Secondary:  row.QueueType != s.cfg.PrimaryQueue,
		})
	}

	for start := 0; start < len(states); start += s.cfg.ChunkSize {
		end := start + s.cfg.ChunkSize
		if end > len(states) {
			end = len(states)
		}
		chunk := states[start:end]
		if err := s.stateRepo.AppendBatch(ctx, chunk); err != nil {
			if !errors.Is(err, team.ErrMissing) {
				return result, fmt.Errorf("append team states: %w", err)
			}
			result.FailedChunks++
			s.logger.WarnContext(ctx, "team state chunk dropped on missing team",
				"chunk_start", start,
				"chunk_size", len(chunk),
				"error", err,
			)
			continue
		}
		result.Appended += len(chunk)
	}

	return result, nil
}

// ArchiveAndPrune protects the rating extrema and the most recent state of
// every (team, window) bucket older than the TTL, then deletes the rest.
func (s *TeamStateService) ArchiveAndPrune(ctx context.Context) (ArchiveResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TeamStateService.ArchiveAndPrune")
	defer span.End()

	result := ArchiveResult{}
	cutoff := s.now().UTC().Add(-s.cfg.TTL)

	expired, err := s.stateRepo.ListWithin(ctx, time.Time{}, cutoff)
	if err != nil {
		return result, fmt.Errorf("list expired team states: %w", err)
	}

	type bucket struct {
		teamID int64
		window int64
	}
	type envelope struct {
		min    teamstate.State
		max    teamstate.State
		latest teamstate.State
	}

	windowNanos := s.cfg.ArchiveWindow.Nanoseconds()
	envelopes := make(map[bucket]envelope)
	for _, state := range expired {
		if state.Archived {
			continue
		}
		key := bucket{teamID: state.TeamID, window: state.Timestamp.UnixNano() / windowNanos}
		env, seen := envelopes[key]
		if !seen {
			envelopes[key] = envelope{min: state, max: state, latest: state}
			continue
		}
		if state.Rating < env.min.Rating {
			env.min = state
		}
		if state.Rating > env.max.Rating {
			env.max = state
		}
		if state.Timestamp.After(env.latest.Timestamp) {
			env.latest = state
		}
		envelopes[key] = env
	}

	refSet := make(map[teamstate.StateRef]struct{}, len(envelopes)*3)
	for _, env := range envelopes {
		refSet[teamstate.StateRef{TeamID: env.min.TeamID, Timestamp: env.min.Timestamp}] = struct{}{}
		refSet[teamstate.StateRef{TeamID: env.max.TeamID, Timestamp: env.max.Timestamp}] = struct{}{}
		refSet[teamstate.StateRef{TeamID: env.latest.TeamID, Timestamp: env.latest.Timestamp}] = struct{}{}
	}
	if len(refSet) > 0 {
		refs := make([]teamstate.StateRef, 0, len(refSet))
		for ref := range refSet {
			refs = append(refs, ref)
		}
		if err := s.stateRepo.MarkArchived(ctx, refs); err != nil {
			return result, fmt.Errorf("archive team state envelopes: %w", err)
		}
		result.Archived = len(refs)
	}

	deleted, err := s.stateRepo.DeleteUnarchivedBefore(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("prune team states before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	result.Deleted = deleted

	if result.Archived > 0 || result.Deleted > 0 {
		s.logger.InfoContext(ctx, "team state retention pass",
			"archived", result.Archived,
			"deleted", result.Deleted,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
	return result, nil
}

func cloneIntPtr(value *int) *int {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
