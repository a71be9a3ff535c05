package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/Mindburn-Labs/agentlock/pkg/catalog"
	"github.com/Mindburn-Labs/agentlock/pkg/config"
	"github.com/Mindburn-Labs/agentlock/pkg/lockfile"
)

// runCatalogCmd implements `agentlock catalog import|list`.
func runCatalogCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: agentlock catalog <import|list> [flags]")
		return 2
	}
	sub := args[0]

	cmd := flag.NewFlagSet("catalog "+sub, flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dbURL       string
		driver      string
		catalogPath string
		jsonOutput  bool
	)
	cmd.StringVar(&dbURL, "db", cfg.DatabaseURL, "Database DSN")
	cmd.StringVar(&driver, "driver", cfg.DatabaseDriver, "Database driver: sqlite or postgres")
	cmd.StringVar(&catalogPath, "catalog", cfg.CatalogPath, "Catalog file to import")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the listing as a catalog document")

	if err := cmd.Parse(args[1:]); err != nil {
		return 2
	}

	ctx := context.Background()
	switch sub {
	case "import":
		if catalogPath == "" {
			_, _ = fmt.Fprintln(stderr, "Error: --catalog is required")
			return 2
		}
		snap, err := catalog.LoadFile(catalogPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		store, err := openStore(ctx, cfg, dbURL, driver)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		defer func() { _ = store.Close() }()
		if err := store.Upsert(ctx, snap.Providers()...); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "Imported %d provider(s)\n", snap.Len())
		return 0

	case "list":
		store, err := openStore(ctx, cfg, dbURL, driver)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		defer func() { _ = store.Close() }()
		providers, err := store.List(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if jsonOutput {
			data, err := lockfile.Marshal(providers)
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
				return 2
			}
			_, _ = stdout.Write(data)
			return 0
		}
		for _, p := range providers {
			_, _ = fmt.Fprintf(stdout, "%-24s %-10s %-10s %s\n", p.ID, p.Version, p.MaxSensitivity, strings.Join(p.Categories, ","))
		}
		return 0

	default:
		_, _ = fmt.Fprintf(stderr, "Unknown catalog subcommand: %s\n", sub)
		return 2
	}
}
