package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	cerrors "github.com/cockroachdb/errors"
	"github.com/lib/pq"

	"github.com/openladder/laddercore/internal/domain/team"
)

// executor is satisfied by both *sqlx.DB and *sqlx.Tx, so a repository
// statement can run standalone or inside a transaction unchanged.
type executor interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isForeignKeyViolation classifies the FK boundary: a state append that
// references a missing team fails its whole chunk with this.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}

// markForeignKey attaches team.ErrMissing to FK violations while keeping
// the driver error intact for logging.
func markForeignKey(err error) error {
	if isForeignKeyViolation(err) {
		return cerrors.Mark(err, team.ErrMissing)
	}
	return err
}

func nullTimeToTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func timePtrToNullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}

func nullInt64ToIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func intPtrToNullInt64(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64ToInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func int64PtrToNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
