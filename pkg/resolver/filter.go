package resolver

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
)

// FilterResult partitions a catalog for one requirement.
type FilterResult struct {
	Accepted []contracts.ServiceProvider
	Rejected []contracts.RejectedCandidate
}

// Filter classifies every catalog entry as accepted or rejected for req under
// the effective constraints. The catalog is visited in (id, version) order, so
// both output lists are ordered the same way. Inputs are not modified.
func Filter(req contracts.Requirement, catalog []contracts.ServiceProvider, c contracts.EffectiveConstraints) FilterResult {
	sorted := slices.Clone(catalog)
	slices.SortStableFunc(sorted, contracts.CompareProviders)
	required := contracts.SortedUnique(req.Permissions)

	result := FilterResult{
		Accepted: []contracts.ServiceProvider{},
		Rejected: []contracts.RejectedCandidate{},
	}
	for _, p := range sorted {
		if reason, rejected := check(req.Category, required, p, c); rejected {
			result.Rejected = append(result.Rejected, contracts.RejectedCandidate{
				ServerID: p.ID,
				Version:  p.Version,
				Reason:   reason,
			})
			continue
		}
		result.Accepted = append(result.Accepted, p)
	}
	return result
}

// check applies the candidate checks in fixed order and stops at the first failure.
func check(category string, required []string, p contracts.ServiceProvider, c contracts.EffectiveConstraints) (contracts.RejectionReason, bool) {
	if !p.HasCategory(category) {
		return reject(contracts.ReasonMissingCategory,
			"Does not provide category %q", category)
	}

	if missing := p.MissingScopes(required); len(missing) > 0 {
		return reject(contracts.ReasonMissingScope,
			"Missing required scopes: %s", strings.Join(missing, ", "))
	}

	if c.Residency != nil && *c.Residency != contracts.ResidencyAny && !p.SupportsResidency(*c.Residency) {
		return reject(contracts.ReasonResidencyMismatch,
			"Does not support residency %q (supports: %s)", *c.Residency, joinResidency(p.ResidencySupport))
	}

	if c.Sensitivity != nil && contracts.SensitivityExceeds(*c.Sensitivity, p.MaxSensitivity) {
		return reject(contracts.ReasonSensitivityExceeded,
			"Data sensitivity %q exceeds server maximum %q", *c.Sensitivity, p.MaxSensitivity)
	}

	if c.SignedRequired() && !p.Trust.Signed {
		return reject(contracts.ReasonUnsignedNotAllowed,
			"Server is unsigned but policy requires signed servers")
	}

	if c.IsForbidden(p.ID) {
		return reject(contracts.ReasonForbiddenServer,
			"Server %q is forbidden by policy", p.ID)
	}

	if !c.IsAllowed(p.ID) {
		return reject(contracts.ReasonNotAllowlisted,
			"Server %q is not in the policy allow-list", p.ID)
	}

	return contracts.RejectionReason{}, false
}

func reject(code contracts.ReasonCode, format string, args ...any) (contracts.RejectionReason, bool) {
	return contracts.RejectionReason{Code: code, Message: fmt.Sprintf(format, args...)}, true
}

func joinResidency(levels []contracts.ResidencyLevel) string {
	if len(levels) == 0 {
		return "none"
	}
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = string(l)
	}
	return strings.Join(contracts.SortedUnique(names), ", ")
}

// sortRejected orders rejections by (serverId, version).
func sortRejected(rejected []contracts.RejectedCandidate) {
	slices.SortStableFunc(rejected, func(a, b contracts.RejectedCandidate) int {
		if c := strings.Compare(a.ServerID, b.ServerID); c != 0 {
			return c
		}
		return strings.Compare(a.Version, b.Version)
	})
}
