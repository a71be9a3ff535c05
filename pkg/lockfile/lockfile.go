// Package lockfile encodes resolution outputs and verifies pinned servers
// against a catalog.
//
// Every document (Lockfile, ResolutionExplanation, PolicyResult) is written as
// UTF-8 JSON with 2-space indentation and exactly one trailing newline.
package lockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Mindburn-Labs/agentlock/pkg/canonicalize"
	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
)

// Marshal renders v in the on-disk output format.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("lockfile: encode: %w", err)
	}
	// Encode already terminates with a single newline.
	return buf.Bytes(), nil
}

// WriteFile marshals v and writes it to path via a temporary file and
// rename, so readers never observe a partial document.
func WriteFile(path string, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("lockfile: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("lockfile: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("lockfile: close %s: %w", path, err)
	}
	//nolint:gosec // lockfiles are meant to be committed and shared
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("lockfile: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("lockfile: commit %s: %w", path, err)
	}
	return nil
}

// Decode parses a lockfile document, rejecting unknown fields.
func Decode(data []byte) (*contracts.Lockfile, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var l contracts.Lockfile
	if err := dec.Decode(&l); err != nil {
		return nil, fmt.Errorf("lockfile: decode: %w", err)
	}
	if l.AgentName == "" {
		return nil, fmt.Errorf("lockfile: decode: agentName is required")
	}
	if l.Servers == nil {
		l.Servers = []contracts.LockedServer{}
	}
	return &l, nil
}

// ReadFile reads and decodes the lockfile at path.
func ReadFile(path string) (*contracts.Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lockfile: read %s: %w", path, err)
	}
	return Decode(data)
}

// Digest is the sha256-prefixed hash of the lockfile's RFC 8785 canonical
// form. It is independent of whitespace and key order in the file.
func Digest(l *contracts.Lockfile) (string, error) {
	d, err := canonicalize.Digest(l)
	if err != nil {
		return "", fmt.Errorf("lockfile: digest: %w", err)
	}
	return d, nil
}
