// Command agentlock resolves agent manifests into lockfiles.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Mindburn-Labs/agentlock/pkg/config"
)

const version = "0.1.0"

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing. Exit codes: 0 success, 1 resolution,
// policy or verification failure, 2 usage or input error.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	cfg, err := loadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	switch args[1] {
	case "resolve":
		return runResolveCmd(cfg, args[2:], stdout, stderr)
	case "policy":
		return runPolicyCmd(cfg, args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(cfg, args[2:], stdout, stderr)
	case "catalog":
		return runCatalogCmd(cfg, args[2:], stdout, stderr)
	case "attest":
		return runAttestCmd(cfg, args[2:], stdout, stderr)
	case "version":
		_, _ = fmt.Fprintf(stdout, "agentlock %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// loadConfig reads AGENTLOCK_CONFIG when set, otherwise the environment only.
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("AGENTLOCK_CONFIG"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load(), nil
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintf(w, "agentlock %s\n\n", version)
	_, _ = fmt.Fprintln(w, "USAGE:")
	_, _ = fmt.Fprintln(w, "  agentlock <command> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "COMMANDS:")
	printCommand(w, "resolve", "Resolve a manifest into a lockfile (--manifest, --catalog, --policies, --lock, --explain)")
	printCommand(w, "policy", "Merge policies for a manifest and print the result (--manifest, --policies)")
	printCommand(w, "verify", "Verify a lockfile against a catalog or attestation (--lock, --catalog, --attestation, --pubkey)")
	printCommand(w, "catalog", "Import or list a SQL-backed catalog (import|list --db, --driver)")
	printCommand(w, "attest", "Sign a lockfile attestation (--lock, --key)")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
}

func printCommand(w io.Writer, name, desc string) {
	_, _ = fmt.Fprintf(w, "  %-10s %s\n", name, desc)
}
