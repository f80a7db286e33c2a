package db

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Builder returns a squirrel statement builder using Postgres placeholders.
func Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// Select builds the query and scans every row into dst (a pointer to a slice).
func Select(ctx context.Context, q Querier, dst any, query sq.Sqlizer) error {
	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}
	return pgxscan.Select(ctx, q, dst, sql, args...)
}

// Get builds the query and scans exactly one row into dst. pgx.ErrNoRows is
// returned when nothing matches; see IsNotFound.
func Get(ctx context.Context, q Querier, dst any, query sq.Sqlizer) error {
	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}
	return pgxscan.Get(ctx, q, dst, sql, args...)
}

// Exec builds and executes a statement, returning the affected row count.
func Exec(ctx context.Context, q Querier, query sq.Sqlizer) (int64, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Count runs a SELECT COUNT(*) built from query.
func Count(ctx context.Context, q Querier, query sq.SelectBuilder) (int64, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}
	var total int64
	if err := q.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
