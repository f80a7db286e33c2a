package db

import (
	"errors"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// IsNotFound reports whether err means the query matched no row.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || pgxscan.NotFound(err)
}

// IsUniqueViolation reports a unique constraint failure. When constraint is
// non-empty the violated constraint name must match as well.
func IsUniqueViolation(err error, constraint string) bool {
	return hasCode(err, codeUniqueViolation, constraint)
}

// IsForeignKeyViolation reports a foreign key failure.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation, "")
}

// IsCheckViolation reports a CHECK constraint failure.
func IsCheckViolation(err error) bool {
	return hasCode(err, codeCheckViolation, "")
}

func hasCode(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
