package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Mindburn-Labs/agentlock/pkg/config"
	"github.com/Mindburn-Labs/agentlock/pkg/engine"
	"github.com/Mindburn-Labs/agentlock/pkg/lockfile"
	"github.com/Mindburn-Labs/agentlock/pkg/observability"
	"github.com/Mindburn-Labs/agentlock/pkg/resolver"
)

// runResolveCmd implements `agentlock resolve`.
//
// Exit codes:
//
//	0 = lockfile written
//	1 = resolution failed or policy violation
//	2 = usage or input error
func runResolveCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("resolve", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		manifestPath string
		catalogPath  string
		dbURL        string
		driver       string
		policyDir    string
		lockPath     string
		explainPath  string
		allowErrors  bool
	)

	cmd.StringVar(&manifestPath, "manifest", "", "Path to the agent manifest (REQUIRED)")
	cmd.StringVar(&catalogPath, "catalog", cfg.CatalogPath, "Path to the catalog file")
	cmd.StringVar(&dbURL, "db", "", "Read the catalog from this database instead of a file (\"-\" for the configured one)")
	cmd.StringVar(&driver, "driver", "", "Database driver: sqlite or postgres")
	cmd.StringVar(&policyDir, "policies", cfg.PolicyDir, "Directory of policy documents")
	cmd.StringVar(&lockPath, "lock", "", "Write the lockfile here (default: stdout)")
	cmd.StringVar(&explainPath, "explain", "", "Write the resolution explanation here")
	cmd.BoolVar(&allowErrors, "allow-policy-errors", cfg.AllowPolicyErrors, "Resolve even when policies report errors")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if manifestPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --manifest is required")
		return 2
	}

	ctx := context.Background()

	m, err := loadManifest(manifestPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	snap, err := loadCatalog(ctx, cfg, catalogPath, dbURL, driver)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	policies, err := loadPolicies(policyDir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	obs, err := newObservability(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: observability: %v\n", err)
		return 2
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	eng := engine.New(engine.WithObservability(obs), engine.WithAllowPolicyErrors(allowErrors))
	report, runErr := eng.Run(ctx, engine.Request{
		Manifest: m,
		Catalog:  snap.Providers(),
		Policies: policies,
	})
	if report == nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", runErr)
		return 2
	}

	if errors.Is(runErr, engine.ErrPolicyViolation) {
		_, _ = fmt.Fprintln(stderr, "Policy violations:")
		for _, v := range report.Policy.Violations {
			_, _ = fmt.Fprintf(stderr, "  [%s] %s: %s\n", v.PolicyID, v.RuleID, v.Message)
		}
		return 1
	}
	for _, w := range report.Policy.Warnings {
		_, _ = fmt.Fprintf(stderr, "Warning: [%s] %s: %s\n", w.PolicyID, w.RuleID, w.Message)
	}

	if explainPath != "" {
		if err := lockfile.WriteFile(explainPath, report.Result.Explain()); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	var resErr *resolver.ResolutionError
	if errors.As(runErr, &resErr) {
		_, _ = fmt.Fprintf(stderr, "Resolution failed: %v\n", resErr)
		return 1
	}
	if runErr != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", runErr)
		return 2
	}

	lock, _ := report.Lockfile()
	if lockPath == "" {
		data, err := lockfile.Marshal(lock)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		_, _ = stdout.Write(data)
		return 0
	}
	if err := lockfile.WriteFile(lockPath, lock); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "Resolved %d server(s) for %s@%s -> %s\n", len(lock.Servers), lock.AgentName, lock.AgentVersion, lockPath)
	return 0
}

// newObservability returns an exporting provider when telemetry is enabled
// and a disabled one otherwise.
func newObservability(ctx context.Context, cfg *config.Config) (*observability.Provider, error) {
	oc := observability.DefaultConfig()
	oc.ServiceVersion = version
	oc.Enabled = cfg.OTelEnabled
	oc.OTLPEndpoint = cfg.OTelEndpoint
	if env := os.Getenv("AGENTLOCK_ENV"); env != "" {
		oc.Environment = env
	}
	return observability.New(ctx, oc)
}
