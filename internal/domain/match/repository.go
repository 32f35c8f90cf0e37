package match

import (
	"context"
	"time"
)

// Repository describes match persistence needs from use cases.
type Repository interface {
	// UpsertMatch inserts the match when its natural key is new and returns
	// the stored row either way.
	UpsertMatch(ctx context.Context, m Match) (Match, error)
	UpsertParticipants(ctx context.Context, participants []Participant) error
	// ListUnresolved returns unresolved participants of matches dated in
	// [from, to], together with their matches.
	ListUnresolved(ctx context.Context, from, to time.Time) ([]ParticipantRow, error)
	ListParticipants(ctx context.Context, matchID int64) ([]Participant, error)
	// Resolve sets teamId/teamStateTimestamp/ratingChange on rows that are
	// still unresolved; already-resolved rows are left untouched.
	Resolve(ctx context.Context, resolved []Participant) (int64, error)
}

// ParticipantRow joins a participant with its match for resolution.
type ParticipantRow struct {
	Match       Match
	Participant Participant
}
