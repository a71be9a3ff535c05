package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
)

// ErrNotFound is returned by Get when no provider matches.
var ErrNotFound = errors.New("catalog: provider not found")

// Dialect selects SQL placeholder and column type syntax.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect maps a driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("catalog: unsupported database driver %q", driver)
}

// driverName is the database/sql driver registered for d.
func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d Dialect) documentType() string {
	if d == DialectPostgres {
		return "JSONB"
	}
	return "TEXT"
}

// Store persists catalog providers in a SQL table keyed by (id, version).
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		logger:  slog.Default().With("component", "catalog-store"),
	}
}

// Open opens dsn with the driver for dialect and creates the table.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	s := NewStore(db, dialect)
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) schema() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS catalog_providers (
	id TEXT NOT NULL,
	version TEXT NOT NULL,
	document %s NOT NULL,
	PRIMARY KEY (id, version)
)`, s.dialect.documentType())
}

// Init creates the catalog table if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.schema()); err != nil {
		return fmt.Errorf("catalog: init schema: %w", err)
	}
	return nil
}

func (s *Store) upsertQuery() string {
	return fmt.Sprintf(`INSERT INTO catalog_providers (id, version, document) VALUES (%s, %s, %s)
ON CONFLICT (id, version) DO UPDATE SET document = excluded.document`,
		s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3))
}

// Upsert validates providers and writes them in one transaction.
func (s *Store) Upsert(ctx context.Context, providers ...contracts.ServiceProvider) error {
	snap, err := NewSnapshot(providers)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := s.upsertQuery()
	for _, p := range snap.providers {
		doc, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("catalog: marshal %s: %w", p.Ref(), err)
		}
		if _, err := tx.ExecContext(ctx, query, p.ID, p.Version, string(doc)); err != nil {
			return fmt.Errorf("catalog: upsert %s: %w", p.Ref(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit: %w", err)
	}
	s.logger.InfoContext(ctx, "catalog providers upserted", "count", snap.Len(), "dialect", s.dialect)
	return nil
}

// List returns every stored provider ordered by id, then version.
func (s *Store) List(ctx context.Context) ([]contracts.ServiceProvider, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document FROM catalog_providers ORDER BY id, version`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []contracts.ServiceProvider{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("catalog: scan: %w", err)
		}
		var p contracts.ServiceProvider
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("catalog: decode row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	// collation of ORDER BY differs between databases
	slices.SortFunc(out, contracts.CompareProviders)
	return out, nil
}

// Get returns one provider or ErrNotFound.
func (s *Store) Get(ctx context.Context, id, version string) (contracts.ServiceProvider, error) {
	query := fmt.Sprintf(`SELECT document FROM catalog_providers WHERE id = %s AND version = %s`,
		s.dialect.placeholder(1), s.dialect.placeholder(2))

	var doc []byte
	err := s.db.QueryRowContext(ctx, query, id, version).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.ServiceProvider{}, ErrNotFound
	}
	if err != nil {
		return contracts.ServiceProvider{}, fmt.Errorf("catalog: get %s@%s: %w", id, version, err)
	}

	var p contracts.ServiceProvider
	if err := json.Unmarshal(doc, &p); err != nil {
		return contracts.ServiceProvider{}, fmt.Errorf("catalog: decode %s@%s: %w", id, version, err)
	}
	return p, nil
}

// Snapshot loads the whole table as a validated Snapshot.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	providers, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(providers)
}
