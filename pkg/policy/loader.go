package policy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Mindburn-Labs/agentlock/pkg/canonicalize"
	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
	"github.com/Mindburn-Labs/agentlock/pkg/contracts/schemas"
)

// Bundle is one loaded policy document.
type Bundle struct {
	Path   string           `json:"path"`
	Hash   string           `json:"hash"` // canonical JSON hash of Policy
	Policy contracts.Policy `json:"policy"`
}

// Loader reads policy documents from a directory. Files are keyed by policy
// id; reloading a file replaces the previous bundle with the same id.
type Loader struct {
	mu       sync.RWMutex
	dir      string
	bundles  map[string]*Bundle
	onReload func(*Bundle)
	logger   *slog.Logger
}

// NewLoader creates a loader for dir.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:     dir,
		bundles: make(map[string]*Bundle),
		logger:  slog.Default().With("component", "policy-loader"),
	}
}

// OnReload registers a callback invoked after each successful file load.
func (l *Loader) OnReload(fn func(*Bundle)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReload = fn
}

// LoadAll loads every .json, .yaml and .yml file in the directory in file
// name order. The first invalid file aborts the load.
func (l *Loader) LoadAll() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("policy: read dir %s: %w", l.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".json", ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := l.LoadFile(filepath.Join(l.dir, name)); err != nil {
			return fmt.Errorf("policy: load %s: %w", name, err)
		}
	}
	l.logger.Debug("policies loaded", "dir", l.dir, "count", len(names))
	return nil
}

// LoadFile loads and validates a single policy document.
func (l *Loader) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	p, err := Parse(data, schemas.FormatFromPath(path))
	if err != nil {
		return err
	}

	l.mu.Lock()
	if prev, ok := l.bundles[p.ID]; ok && prev.Path != path {
		l.mu.Unlock()
		return fmt.Errorf("duplicate policy id %q (also in %s)", p.ID, prev.Path)
	}
	hash, err := canonicalize.CanonicalHash(p)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("hash policy: %w", err)
	}
	b := &Bundle{Path: path, Hash: hash, Policy: p}
	l.bundles[p.ID] = b
	callback := l.onReload
	l.mu.Unlock()

	if callback != nil {
		callback(b)
	}
	return nil
}

// Parse decodes a JSON or YAML policy document, validating it against the
// policy schema and the semantic checks in Validate.
func Parse(data []byte, format schemas.Format) (contracts.Policy, error) {
	raw, doc, err := schemas.Decode(data, format)
	if err != nil {
		return contracts.Policy{}, err
	}
	fieldErrs, err := schemas.Validate(schemas.KindPolicy, doc)
	if err != nil {
		return contracts.Policy{}, err
	}
	if len(fieldErrs) > 0 {
		return contracts.Policy{}, fmt.Errorf("schema: %w", fieldErrs)
	}

	var p contracts.Policy
	if err := json.Unmarshal(raw, &p); err != nil {
		return contracts.Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	if err := Validate(p).Err(); err != nil {
		return contracts.Policy{}, fmt.Errorf("invalid policy: %w", err)
	}
	return p, nil
}

// Bundle returns a loaded bundle by policy id.
func (l *Loader) Bundle(id string) (*Bundle, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.bundles[id]
	return b, ok
}

// Bundles returns all loaded bundles in merge order.
func (l *Loader) Bundles() []*Bundle {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Bundle, 0, len(l.bundles))
	for _, b := range l.bundles {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Policy, out[j].Policy
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
	return out
}

// Policies returns the loaded policy documents in merge order.
func (l *Loader) Policies() []contracts.Policy {
	bundles := l.Bundles()
	out := make([]contracts.Policy, len(bundles))
	for i, b := range bundles {
		out[i] = b.Policy
	}
	return out
}
