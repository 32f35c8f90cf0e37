package clan

import (
	"context"
	"time"
)

// Repository describes clan event persistence needs from use cases.
type Repository interface {
	// LastEvents returns the most recent event per character id.
	LastEvents(ctx context.Context, characterIDs []int64) (map[int64]Event, error)
	Append(ctx context.Context, events []Event) error
	// ListByCharacterAfter is the keyset-paginated read for downstream
	// consumers: events strictly after the cursor timestamp.
	ListByCharacterAfter(ctx context.Context, characterID int64, after time.Time, limit int) ([]Event, error)
}
