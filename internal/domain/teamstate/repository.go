package teamstate

import (
	"context"
	"time"
)

// Repository describes team-state persistence needs from use cases.
type Repository interface {
	// AppendBatch inserts one chunk of states as a single transactional
	// statement. A missing team id fails the whole chunk.
	AppendBatch(ctx context.Context, states []State) error
	// LatestByTeams returns the most recent state per team id.
	LatestByTeams(ctx context.Context, teamIDs []int64) (map[int64]State, error)
	// ListByTeamsWithin returns all states of the given teams whose
	// timestamp falls in [from, to], ordered by (teamId, timestamp).
	ListByTeamsWithin(ctx context.Context, teamIDs []int64, from, to time.Time) ([]State, error)
	// ListByTeamAfter is the keyset-paginated read for downstream
	// consumers: states of one team strictly after the cursor timestamp.
	ListByTeamAfter(ctx context.Context, teamID int64, after time.Time, limit int) ([]State, error)
	// MarkArchived flags the given (teamId, timestamp) pairs archived.
	MarkArchived(ctx context.Context, refs []StateRef) error
	// ListWithin returns all states in a time window (archival pass input).
	ListWithin(ctx context.Context, from, to time.Time) ([]State, error)
	// DeleteUnarchivedBefore removes every non-archived state older than
	// the cutoff and reports how many rows went away.
	DeleteUnarchivedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StateRef addresses one state row by its natural key.
type StateRef struct {
	TeamID    int64
	Timestamp time.Time
}
