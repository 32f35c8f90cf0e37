package cheater

import "context"

// Repository is the read-only view the rank pipeline needs; reports are
// written by the excluded moderation surface.
type Repository interface {
	ListRestricted(ctx context.Context) ([]Report, error)
}
