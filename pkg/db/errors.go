package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a unique constraint violation on
// Postgres or SQLite. When constraintName is set, Postgres errors must name
// that constraint; SQLite does not report constraint names.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var (
		pgxErr    *pgconn.PgError
		pqErr     *pq.Error
		sqliteErr sqlite3.Error
	)
	switch {
	case errors.As(err, &pgxErr):
		return pgxErr.Code == pgUniqueViolation && matchesConstraint(pgxErr.ConstraintName, constraintName)
	case errors.As(err, &pqErr):
		return string(pqErr.Code) == pgUniqueViolation && matchesConstraint(pqErr.Constraint, constraintName)
	case errors.As(err, &sqliteErr):
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// IsForeignKeyViolation reports whether err is a foreign key violation on
// Postgres or SQLite.
func IsForeignKeyViolation(err error) bool {
	var (
		pgxErr    *pgconn.PgError
		pqErr     *pq.Error
		sqliteErr sqlite3.Error
	)
	switch {
	case errors.As(err, &pgxErr):
		return pgxErr.Code == pgForeignKeyViolation
	case errors.As(err, &pqErr):
		return string(pqErr.Code) == pgForeignKeyViolation
	case errors.As(err, &sqliteErr):
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

func matchesConstraint(got, want string) bool {
	return want == "" || got == want
}
