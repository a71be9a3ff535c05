// Package resolver pins every agent requirement to exactly one catalog
// provider and explains each acceptance and rejection.
//
// Resolution is a pure, synchronous computation over immutable inputs. Runs
// share no state and may execute in parallel against the same catalog.
package resolver

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
	"github.com/Mindburn-Labs/agentlock/pkg/integrity"
)

// Input is one resolution run's snapshot.
type Input struct {
	AgentName    string
	AgentVersion string
	Requirements []contracts.Requirement
	Catalog      []contracts.ServiceProvider
	Constraints  contracts.EffectiveConstraints
}

// InputFromManifest builds an Input from a validated manifest.
func InputFromManifest(m *contracts.AgentManifest, catalog []contracts.ServiceProvider, c contracts.EffectiveConstraints) Input {
	return Input{
		AgentName:    m.Name,
		AgentVersion: m.Version,
		Requirements: m.Requires.MCP,
		Catalog:      catalog,
		Constraints:  c,
	}
}

// Result is either *Resolved or *Failed.
type Result interface {
	Succeeded() bool
	Explain() contracts.ResolutionExplanation
	sealed()
}

// Resolved carries the lockfile and explanation of a successful run. Both
// share one resolvedAt timestamp.
type Resolved struct {
	Lockfile    contracts.Lockfile
	Explanation contracts.ResolutionExplanation
}

func (r *Resolved) Succeeded() bool                          { return true }
func (r *Resolved) Explain() contracts.ResolutionExplanation { return r.Explanation }
func (r *Resolved) sealed()                                  {}

// Failed identifies the first requirement with no acceptable candidate. No
// lockfile exists for a failed run; Explanation covers the requirements
// processed up to and including the failing one.
type Failed struct {
	Category    string
	Rejected    []contracts.RejectedCandidate
	Explanation contracts.ResolutionExplanation
}

func (f *Failed) Succeeded() bool                          { return false }
func (f *Failed) Explain() contracts.ResolutionExplanation { return f.Explanation }
func (f *Failed) sealed()                                  {}

// Err returns the failure as a *ResolutionError.
func (f *Failed) Err() error {
	return &ResolutionError{Category: f.Category, Rejected: f.Rejected}
}

// ResolutionError reports a requirement that no candidate could satisfy.
type ResolutionError struct {
	Category string
	Rejected []contracts.RejectedCandidate
}

func (e *ResolutionError) Error() string {
	if len(e.Rejected) == 0 {
		return fmt.Sprintf("resolver: no candidates for category %q", e.Category)
	}
	codes := contracts.NewStringSet()
	for _, r := range e.Rejected {
		codes.Add(string(r.Reason.Code))
	}
	return fmt.Sprintf("resolver: no acceptable candidate for category %q (%d rejected: %s)",
		e.Category, len(e.Rejected), strings.Join(codes.Sorted(), ", "))
}

// Resolver runs resolutions. The zero value is not usable; call New.
type Resolver struct {
	now func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock sets the source of resolvedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs one resolution with the wall clock.
func Resolve(in Input) Result {
	return New().Resolve(in)
}

// Resolve filters, selects and hashes each requirement in category order.
// The first requirement with zero accepted candidates aborts the run.
func (r *Resolver) Resolve(in Input) Result {
	resolvedAt := contracts.FormatTimestamp(r.now())
	constraints := in.Constraints.Clone()

	explanation := contracts.ResolutionExplanation{
		AgentName:    in.AgentName,
		AgentVersion: in.AgentVersion,
		ResolvedAt:   resolvedAt,
		Requirements: []contracts.RequirementExplanation{},
	}
	servers := []contracts.LockedServer{}

	for _, req := range normalizeRequirements(in.Requirements) {
		filtered := Filter(req, in.Catalog, constraints)
		entry := contracts.RequirementExplanation{
			Category:            req.Category,
			RequiredPermissions: req.Permissions,
			Rejected:            filtered.Rejected,
			ConstraintsApplied:  constraints.Clone().Applied(),
		}

		tb, ok := Select(filtered.Accepted)
		if !ok {
			explanation.Requirements = append(explanation.Requirements, entry)
			explanation.Success = false
			return &Failed{
				Category:    req.Category,
				Rejected:    filtered.Rejected,
				Explanation: explanation,
			}
		}

		entry.Rejected = append(entry.Rejected, tb.Losers...)
		sortRejected(entry.Rejected)

		w := tb.Winner
		entry.Selected = &contracts.Selection{
			ServerID:        w.ID,
			Version:         w.Version,
			Endpoint:        w.Endpoint,
			Scopes:          contracts.SortedUnique(w.Scopes),
			SelectionReason: tb.Reason,
		}
		explanation.Requirements = append(explanation.Requirements, entry)

		// The pin covers the required scopes only, not the provider's full set.
		servers = append(servers, contracts.LockedServer{
			Category: req.Category,
			ServerID: w.ID,
			Version:  w.Version,
			Endpoint: w.Endpoint,
			Scopes:   slices.Clone(req.Permissions),
			Hash:     integrity.Hash(w.ID, w.Version, w.Endpoint, req.Permissions),
		})
	}

	explanation.Success = true
	return &Resolved{
		Lockfile: contracts.Lockfile{
			AgentName:    in.AgentName,
			AgentVersion: in.AgentVersion,
			ResolvedAt:   resolvedAt,
			Servers:      servers,
		},
		Explanation: explanation,
	}
}

// normalizeRequirements copies reqs with sorted, de-duplicated permissions,
// ordered by category.
func normalizeRequirements(reqs []contracts.Requirement) []contracts.Requirement {
	out := make([]contracts.Requirement, len(reqs))
	for i, r := range reqs {
		out[i] = contracts.Requirement{
			Category:    r.Category,
			Permissions: contracts.SortedUnique(r.Permissions),
		}
	}
	slices.SortStableFunc(out, func(a, b contracts.Requirement) int {
		return strings.Compare(a.Category, b.Category)
	})
	return out
}
