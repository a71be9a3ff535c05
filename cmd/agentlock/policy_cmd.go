package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/agentlock/pkg/config"
	"github.com/Mindburn-Labs/agentlock/pkg/engine"
	"github.com/Mindburn-Labs/agentlock/pkg/lockfile"
)

// runPolicyCmd implements `agentlock policy`: merge only, printing the
// policy result as JSON. Exit 1 when the merge reports violations.
func runPolicyCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("policy", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		manifestPath string
		policyDir    string
	)
	cmd.StringVar(&manifestPath, "manifest", "", "Path to the agent manifest (REQUIRED)")
	cmd.StringVar(&policyDir, "policies", cfg.PolicyDir, "Directory of policy documents")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if manifestPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --manifest is required")
		return 2
	}

	m, err := loadManifest(manifestPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	policies, err := loadPolicies(policyDir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	res := engine.New().Merge(context.Background(), m, policies)
	data, err := lockfile.Marshal(res)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = stdout.Write(data)
	if !res.Success {
		return 1
	}
	return 0
}
