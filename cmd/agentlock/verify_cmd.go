package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Mindburn-Labs/agentlock/pkg/attest"
	"github.com/Mindburn-Labs/agentlock/pkg/catalog"
	"github.com/Mindburn-Labs/agentlock/pkg/config"
	"github.com/Mindburn-Labs/agentlock/pkg/lockfile"
)

type verifyOutput struct {
	Lockfile    string           `json:"lockfile"`
	Verified    bool             `json:"verified"`
	Drift       []lockfile.Drift `json:"drift"`
	Attestation string           `json:"attestation,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// runVerifyCmd implements `agentlock verify`.
//
// Exit codes:
//
//	0 = lockfile verified
//	1 = drift found or attestation invalid
//	2 = usage or input error
func runVerifyCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		lockPath        string
		catalogPath     string
		attestationPath string
		pubKeyHex       string
		jsonOutput      bool
	)

	cmd.StringVar(&lockPath, "lock", "", "Path to the lockfile (REQUIRED)")
	cmd.StringVar(&catalogPath, "catalog", cfg.CatalogPath, "Check entries against this catalog")
	cmd.StringVar(&attestationPath, "attestation", "", "Path to a lockfile attestation token")
	cmd.StringVar(&pubKeyHex, "pubkey", "", "Hex Ed25519 public key for --attestation")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if lockPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --lock is required")
		return 2
	}
	if (attestationPath == "") != (pubKeyHex == "") {
		_, _ = fmt.Fprintln(stderr, "Error: --attestation and --pubkey must be given together")
		return 2
	}

	lock, err := lockfile.ReadFile(lockPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	var cat lockfile.Catalog
	if catalogPath != "" {
		snap, err := catalog.LoadFile(catalogPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		cat = snap
	}

	out := verifyOutput{Lockfile: lockPath, Verified: true}
	out.Drift, err = lockfile.Verify(lock, cat)
	if err != nil {
		out.Verified = false
		out.Error = err.Error()
	}

	if attestationPath != "" {
		pub, err := attest.ParsePublicKey(pubKeyHex)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		token, err := os.ReadFile(attestationPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if _, err := attest.Verify(strings.TrimSpace(string(token)), lock, pub); err != nil {
			out.Verified = false
			out.Attestation = "invalid"
			if out.Error == "" {
				out.Error = err.Error()
			}
		} else {
			out.Attestation = "valid"
		}
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(out, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		for _, d := range out.Drift {
			_, _ = fmt.Fprintf(stdout, "  %s %s@%s [%s]: %s\n", d.Category, d.ServerID, d.Version, d.Code, d.Message)
		}
		if out.Attestation != "" {
			_, _ = fmt.Fprintf(stdout, "Attestation: %s\n", out.Attestation)
		}
		if out.Verified {
			_, _ = fmt.Fprintf(stdout, "Verified: %s (%d server(s))\n", lockPath, len(lock.Servers))
		} else {
			_, _ = fmt.Fprintf(stdout, "FAILED: %s\n", out.Error)
		}
	}

	if !out.Verified {
		return 1
	}
	return 0
}
