package db

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert estimate: %w", &pgconn.PgError{Code: "23505", ConstraintName: "estimates_reference_number_key"})

	require.True(t, IsUniqueViolation(err, ""))
	require.True(t, IsUniqueViolation(err, "estimates_reference_number_key"))
	require.False(t, IsUniqueViolation(err, "partners_slug_key"))
	require.False(t, IsForeignKeyViolation(err))
	require.False(t, IsUniqueViolation(errors.New("connection reset"), ""))
}

func TestIsForeignKeyViolation(t *testing.T) {
	require.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	require.True(t, IsCheckViolation(&pgconn.PgError{Code: "23514"}))
}

func TestIsNotFound(t *testing.T) {
	require.True(t, IsNotFound(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	require.False(t, IsNotFound(errors.New("boom")))
}

func TestBuilderUsesDollarPlaceholders(t *testing.T) {
	sql, args, err := Builder().Select("id").From("estimates").Where("reference_number = ?", "EST-1").ToSql()
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM estimates WHERE reference_number = $1", sql)
	require.Equal(t, []any{"EST-1"}, args)
}

func TestPgxURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/db", pgxURL("postgres://u:p@localhost:5432/db"))
	require.Equal(t, "pgx5://localhost/db", pgxURL("postgresql://localhost/db"))
	require.Equal(t, "pgx5://already", pgxURL("pgx5://already"))
}

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	require.Equal(t, ups, downs)
}
