package main

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/agentlock/pkg/catalog"
	"github.com/Mindburn-Labs/agentlock/pkg/config"
	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
	"github.com/Mindburn-Labs/agentlock/pkg/manifest"
	"github.com/Mindburn-Labs/agentlock/pkg/policy"
)

func loadManifest(path string) (*contracts.AgentManifest, error) {
	parsed, err := manifest.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if err := parsed.Errors.Err(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &parsed.Manifest, nil
}

func loadPolicies(dir string) ([]contracts.Policy, error) {
	if dir == "" {
		return nil, nil
	}
	l := policy.NewLoader(dir)
	if err := l.LoadAll(); err != nil {
		return nil, err
	}
	return l.Policies(), nil
}

// loadCatalog prefers a catalog file; with no file it reads the SQL store
// named by db (or the configured database when db is "-").
func loadCatalog(ctx context.Context, cfg *config.Config, path, db, driver string) (*catalog.Snapshot, error) {
	if path != "" {
		return catalog.LoadFile(path)
	}
	if db == "" {
		return nil, fmt.Errorf("a catalog is required: pass --catalog or --db")
	}
	store, err := openStore(ctx, cfg, db, driver)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()
	return store.Snapshot(ctx)
}

func openStore(ctx context.Context, cfg *config.Config, db, driver string) (*catalog.Store, error) {
	if db == "-" || db == "" {
		db = cfg.DatabaseURL
	}
	if driver == "" {
		driver = cfg.DatabaseDriver
	}
	dialect, err := catalog.ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	return catalog.Open(ctx, dialect, db)
}
