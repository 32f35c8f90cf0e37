package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrCycleClaimed means another scheduler holds the (region, season)
	// checkpoint for this cycle; the job should simply run again later.
	ErrCycleClaimed = errors.New("cycle already claimed")
)
