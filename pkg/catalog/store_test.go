package catalog

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"": DialectSQLite, "sqlite": DialectSQLite, "postgres": DialectPostgres, "PostgreSQL": DialectPostgres} {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseDialect("mysql")
	assert.Error(t, err)
}

func TestStore_PostgresQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewStore(db, DialectPostgres)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS catalog_providers")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Init(ctx))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO catalog_providers (id, version, document) VALUES ($1, $2, $3)")).
		WithArgs("a", "1.0.0", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO catalog_providers")).
		WithArgs("b", "2.0.0", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, s.Upsert(ctx, provider("b", "2.0.0"), provider("a", "1.0.0")))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT document FROM catalog_providers WHERE id = $1 AND version = $2")).
		WithArgs("a", "1.0.0").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).
			AddRow([]byte(`{"id":"a","version":"1.0.0","endpoint":"e","categories":["test"],"scopes":[],"residencySupport":["any"],"maxSensitivity":"public","trust":{"signed":true,"publisher":""}}`)))
	p, err := s.Get(ctx, "a", "1.0.0")
	require.NoError(t, err)
	assert.True(t, p.Trust.Signed)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT document FROM catalog_providers WHERE id = $1")).
		WithArgs("zzz", "1.0.0").
		WillReturnRows(sqlmock.NewRows([]string{"document"}))
	_, err = s.Get(ctx, "zzz", "1.0.0")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewStore(db, DialectPostgres)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO catalog_providers")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = s.Upsert(context.Background(), provider("a", "1.0.0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a@1.0.0")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertValidatesFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = NewStore(db, DialectPostgres).Upsert(context.Background(), provider("a", "not-semver"))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, DialectSQLite, filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Upsert(ctx, provider("zeta", "1.0.0"), provider("alpha", "2.0.0"), provider("alpha", "10.0.0")))

	updated := provider("zeta", "1.0.0")
	updated.Endpoint = "https://zeta.example/v2"
	require.NoError(t, s.Upsert(ctx, updated))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alpha@10.0.0", list[0].Ref())
	assert.Equal(t, "alpha@2.0.0", list[1].Ref())
	assert.Equal(t, "https://zeta.example/v2", list[2].Endpoint)

	got, err := s.Get(ctx, "alpha", "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, provider("alpha", "2.0.0"), got)

	_, err = s.Get(ctx, "alpha", "3.0.0")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, errors.Is(err, sql.ErrNoRows))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Len())
}
