package team

import (
	"context"
	"errors"
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
)

// ErrMissing marks writes rejected because a referenced team row does not
// exist. Repositories wrap foreign-key violations with it so callers can
// tell the data boundary from a transient storage failure.
var ErrMissing = errors.New("team does not exist")

// Repository describes team persistence needs from use cases.
type Repository interface {
	// InTx runs fn against a transaction-scoped view of the repository;
	// every write fn makes commits together or rolls back together.
	InTx(ctx context.Context, fn func(Repository) error) error
	// GetByKeys loads stored teams for the given natural keys in one set
	// query. Missing keys are simply absent from the result.
	GetByKeys(ctx context.Context, keys []Key) (map[Key]Team, error)
	GetByID(ctx context.Context, id int64) (Team, bool, error)
	ListByIDs(ctx context.Context, ids []int64) ([]Team, error)
	// Insert persists new teams and fills in their generated ids.
	Insert(ctx context.Context, teams []Team) error
	// Update applies already-decided merges as one set-based statement,
	// re-checking the monotonicity guards row by row inside the database.
	// It returns the ids that were actually updated.
	Update(ctx context.Context, teams []Team) ([]int64, error)
	// MaxLastPlayed returns the latest lastPlayed across a (region, season)
	// partition, or nil when the partition holds no played teams.
	MaxLastPlayed(ctx context.Context, region ladder.Region, season int) (*time.Time, error)
	ListBySeason(ctx context.Context, season int) ([]Team, error)
	// SetRanks writes the three windowed ranks plus the population snapshot
	// link; nil rank pointers clear the stored value.
	SetRanks(ctx context.Context, teams []Team) error

	UpsertMembers(ctx context.Context, members []Member) error
	ListMembersByCharacter(ctx context.Context, characterID int64) ([]Member, error)
	ListMembersByTeams(ctx context.Context, teamIDs []int64) ([]Member, error)
}
