package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Mindburn-Labs/agentlock/pkg/attest"
	"github.com/Mindburn-Labs/agentlock/pkg/config"
	"github.com/Mindburn-Labs/agentlock/pkg/lockfile"
)

// runAttestCmd implements `agentlock attest`: signs the lockfile digest and
// prints (or writes) the token together with the signer's public key.
func runAttestCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("attest", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		lockPath string
		keyPath  string
		outPath  string
	)
	cmd.StringVar(&lockPath, "lock", "", "Path to the lockfile (REQUIRED)")
	cmd.StringVar(&keyPath, "key", cfg.SigningKeyPath, "Path to a hex Ed25519 seed")
	cmd.StringVar(&outPath, "out", "", "Write the token here (default: stdout)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if lockPath == "" || keyPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --lock and --key are required")
		return 2
	}

	lock, err := lockfile.ReadFile(lockPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	key, err := attest.LoadPrivateKey(keyPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	token, err := attest.Sign(lock, key)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	pub, _ := key.Public().(ed25519.PublicKey)
	_, _ = fmt.Fprintf(stderr, "Public key: %s\n", hex.EncodeToString(pub))

	if outPath == "" {
		_, _ = fmt.Fprintln(stdout, token)
		return 0
	}
	if err := os.WriteFile(outPath, []byte(token+"\n"), 0o644); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "Attestation written to %s\n", outPath)
	return 0
}
