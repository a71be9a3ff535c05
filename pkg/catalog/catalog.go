// Package catalog loads, validates and stores service provider catalogs.
//
// A Snapshot is the immutable, sorted view the resolver reads. Snapshots come
// from JSON or YAML documents (Load, LoadFile) or from a SQL-backed Store.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"golang.org/x/text/unicode/norm"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
	"github.com/Mindburn-Labs/agentlock/pkg/contracts/schemas"
)

// Snapshot is a validated catalog. It is safe for concurrent use because it
// is never modified after construction.
type Snapshot struct {
	providers []contracts.ServiceProvider
}

// NewSnapshot normalises and validates providers and returns a sorted snapshot.
// The input slice is not retained.
func NewSnapshot(providers []contracts.ServiceProvider) (*Snapshot, error) {
	ps := make([]contracts.ServiceProvider, len(providers))
	for i, p := range providers {
		ps[i] = normalize(p)
	}
	if err := Validate(ps).Err(); err != nil {
		return nil, fmt.Errorf("catalog: invalid: %w", err)
	}
	slices.SortFunc(ps, contracts.CompareProviders)
	return &Snapshot{providers: ps}, nil
}

// Load parses a catalog document: a JSON or YAML array of providers.
func Load(data []byte, format schemas.Format) (*Snapshot, error) {
	raw, doc, err := schemas.Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	fieldErrs, err := schemas.Validate(schemas.KindCatalog, doc)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if len(fieldErrs) > 0 {
		return nil, fmt.Errorf("catalog: schema: %w", fieldErrs)
	}

	var providers []contracts.ServiceProvider
	if err := json.Unmarshal(raw, &providers); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return NewSnapshot(providers)
}

// LoadFile reads a catalog document from disk.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Load(data, schemas.FormatFromPath(path))
}

// Providers returns a copy of the catalog ordered by id, then version.
func (s *Snapshot) Providers() []contracts.ServiceProvider {
	out := make([]contracts.ServiceProvider, len(s.providers))
	for i, p := range s.providers {
		out[i] = clone(p)
	}
	return out
}

// Len returns the number of providers.
func (s *Snapshot) Len() int { return len(s.providers) }

// Lookup finds a provider by id and version.
func (s *Snapshot) Lookup(id, version string) (contracts.ServiceProvider, bool) {
	i, found := slices.BinarySearchFunc(s.providers, contracts.ServiceProvider{ID: id, Version: version}, contracts.CompareProviders)
	if !found {
		return contracts.ServiceProvider{}, false
	}
	return clone(s.providers[i]), true
}

func normalize(p contracts.ServiceProvider) contracts.ServiceProvider {
	p = clone(p)
	p.ID = norm.NFC.String(p.ID)
	p.Version = norm.NFC.String(p.Version)
	for i := range p.Categories {
		p.Categories[i] = norm.NFC.String(p.Categories[i])
	}
	for i := range p.Scopes {
		p.Scopes[i] = norm.NFC.String(p.Scopes[i])
	}
	return p
}

func clone(p contracts.ServiceProvider) contracts.ServiceProvider {
	p.Categories = cloneOrEmpty(p.Categories)
	p.Scopes = cloneOrEmpty(p.Scopes)
	p.ResidencySupport = cloneOrEmpty(p.ResidencySupport)
	if p.RateLimitPerMin != nil {
		v := *p.RateLimitPerMin
		p.RateLimitPerMin = &v
	}
	return p
}

func cloneOrEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}
