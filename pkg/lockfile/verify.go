package lockfile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
	"github.com/Mindburn-Labs/agentlock/pkg/integrity"
)

// ErrIntegrity is wrapped by Verify when any entry drifted.
var ErrIntegrity = errors.New("lockfile: integrity check failed")

// DriftCode classifies a verification finding.
type DriftCode string

const (
	DriftMalformedHash   DriftCode = "MALFORMED_HASH"
	DriftHashMismatch    DriftCode = "HASH_MISMATCH"
	DriftMissingProvider DriftCode = "MISSING_PROVIDER"
	DriftEndpointChanged DriftCode = "ENDPOINT_CHANGED"
	DriftScopesRemoved   DriftCode = "SCOPES_REMOVED"
	DriftCategoryDropped DriftCode = "CATEGORY_DROPPED"
)

// Drift is one problem found with a locked server.
type Drift struct {
	Category string    `json:"category"`
	ServerID string    `json:"serverId"`
	Version  string    `json:"version"`
	Code     DriftCode `json:"code"`
	Message  string    `json:"message"`
}

// Catalog is the lookup Verify needs; *catalog.Snapshot satisfies it.
type Catalog interface {
	Lookup(id, version string) (contracts.ServiceProvider, bool)
}

// Verify recomputes every pinned hash and, when cat is non-nil, checks each
// pinned id@version still exists with the same endpoint, category and scopes.
// The drift list is never nil; err wraps ErrIntegrity when it is non-empty.
func Verify(l *contracts.Lockfile, cat Catalog) ([]Drift, error) {
	drift := []Drift{}
	add := func(s contracts.LockedServer, code DriftCode, format string, args ...any) {
		drift = append(drift, Drift{
			Category: s.Category,
			ServerID: s.ServerID,
			Version:  s.Version,
			Code:     code,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	for _, s := range l.Servers {
		want := integrity.Hash(s.ServerID, s.Version, s.Endpoint, s.Scopes)
		switch {
		case !integrity.Valid(s.Hash):
			add(s, DriftMalformedHash, "hash %q is not 64 lowercase hex characters", s.Hash)
		case s.Hash != want:
			add(s, DriftHashMismatch, "recorded hash %s does not match recomputed %s", s.Hash, want)
		}

		if cat == nil {
			continue
		}
		p, ok := cat.Lookup(s.ServerID, s.Version)
		if !ok {
			add(s, DriftMissingProvider, "%s@%s is no longer in the catalog", s.ServerID, s.Version)
			continue
		}
		if p.Endpoint != s.Endpoint {
			add(s, DriftEndpointChanged, "endpoint changed from %s to %s", s.Endpoint, p.Endpoint)
		}
		if !p.HasCategory(s.Category) {
			add(s, DriftCategoryDropped, "provider no longer offers category %q", s.Category)
		}
		if missing := p.MissingScopes(s.Scopes); len(missing) > 0 {
			add(s, DriftScopesRemoved, "provider no longer offers scopes: %s", strings.Join(missing, ", "))
		}
	}

	if len(drift) > 0 {
		return drift, fmt.Errorf("%w: %d finding(s)", ErrIntegrity, len(drift))
	}
	return drift, nil
}
