package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
)

func TestFilter_RejectionCodes(t *testing.T) {
	req := contracts.Requirement{Category: "test", Permissions: []string{"read:test", "admin:test"}}

	tests := []struct {
		name        string
		candidate   contracts.ServiceProvider
		constraints contracts.EffectiveConstraints
		code        contracts.ReasonCode
		contains    string
	}{
		{
			name:      "missing category",
			candidate: provider("a", "1.0.0", categories("other")),
			code:      contracts.ReasonMissingCategory,
			contains:  `"test"`,
		},
		{
			name:      "missing scope names the scope",
			candidate: provider("a", "1.0.0"),
			code:      contracts.ReasonMissingScope,
			contains:  "admin:test",
		},
		{
			name: "residency mismatch",
			candidate: provider("a", "1.0.0", residency(contracts.ResidencyUSOnly), func(p *contracts.ServiceProvider) {
				p.Scopes = append(p.Scopes, "admin:test")
			}),
			constraints: contracts.EffectiveConstraints{Residency: ptr(contracts.ResidencyEUOnly)},
			code:        contracts.ReasonResidencyMismatch,
			contains:    "us-only",
		},
		{
			name: "sensitivity exceeded",
			candidate: provider("a", "1.0.0", maxSensitivity(contracts.SensitivityInternal), func(p *contracts.ServiceProvider) {
				p.Scopes = append(p.Scopes, "admin:test")
			}),
			constraints: contracts.EffectiveConstraints{Sensitivity: ptr(contracts.SensitivityPIILow)},
			code:        contracts.ReasonSensitivityExceeded,
			contains:    "pii.low",
		},
		{
			name: "unsigned not allowed",
			candidate: provider("a", "1.0.0", func(p *contracts.ServiceProvider) {
				p.Scopes = append(p.Scopes, "admin:test")
			}),
			constraints: contracts.EffectiveConstraints{RequireSigned: ptr(true)},
			code:        contracts.ReasonUnsignedNotAllowed,
		},
		{
			name: "forbidden server",
			candidate: provider("a", "1.0.0", func(p *contracts.ServiceProvider) {
				p.Scopes = append(p.Scopes, "admin:test")
			}),
			constraints: contracts.EffectiveConstraints{ForbiddenServers: []string{"a"}},
			code:        contracts.ReasonForbiddenServer,
		},
		{
			name: "not allow-listed",
			candidate: provider("a", "1.0.0", func(p *contracts.ServiceProvider) {
				p.Scopes = append(p.Scopes, "admin:test")
			}),
			constraints: contracts.EffectiveConstraints{AllowedServers: []string{"b"}},
			code:        contracts.ReasonNotAllowlisted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Filter(req, []contracts.ServiceProvider{tt.candidate}, tt.constraints)
			assert.Empty(t, res.Accepted)
			require.Len(t, res.Rejected, 1)
			assert.Equal(t, tt.code, res.Rejected[0].Reason.Code)
			assert.Contains(t, res.Rejected[0].Reason.Message, tt.contains)
		})
	}
}

func TestFilter_CheckOrderShortCircuits(t *testing.T) {
	// Fails category, scope and residency at once: category wins.
	p := provider("a", "1.0.0", categories("other"), residency(contracts.ResidencyUSOnly))
	req := contracts.Requirement{Category: "test", Permissions: []string{"missing:scope"}}
	res := Filter(req, []contracts.ServiceProvider{p}, contracts.EffectiveConstraints{Residency: ptr(contracts.ResidencyEUOnly)})
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, contracts.ReasonMissingCategory, res.Rejected[0].Reason.Code)
}

func TestFilter_ResidencyWildcard(t *testing.T) {
	p := provider("any-server", "1.0.0", residency(contracts.ResidencyAny))
	req := contracts.Requirement{Category: "test", Permissions: []string{"read:test"}}

	for _, r := range []*contracts.ResidencyLevel{nil, ptr(contracts.ResidencyAny), ptr(contracts.ResidencyUSOnly), ptr(contracts.ResidencyEUOnly), ptr(contracts.ResidencyLevel("apac-only"))} {
		res := Filter(req, []contracts.ServiceProvider{p}, contracts.EffectiveConstraints{Residency: r})
		assert.Len(t, res.Accepted, 1)
	}
}

func TestFilter_EffectiveResidencyAnySkipsCheck(t *testing.T) {
	p := provider("us", "1.0.0", residency(contracts.ResidencyUSOnly))
	req := contracts.Requirement{Category: "test"}
	res := Filter(req, []contracts.ServiceProvider{p}, contracts.EffectiveConstraints{Residency: ptr(contracts.ResidencyAny)})
	assert.Len(t, res.Accepted, 1)
}

func TestFilter_SensitivityAtCeilingAccepted(t *testing.T) {
	p := provider("a", "1.0.0", maxSensitivity(contracts.SensitivityConfidential))
	req := contracts.Requirement{Category: "test"}
	res := Filter(req, []contracts.ServiceProvider{p}, contracts.EffectiveConstraints{Sensitivity: ptr(contracts.SensitivityConfidential)})
	assert.Len(t, res.Accepted, 1)
}

func TestFilter_OrdersByIDThenVersion(t *testing.T) {
	catalog := []contracts.ServiceProvider{
		provider("zeta", "1.0.0", categories("x")),
		provider("alpha", "2.0.0", categories("x")),
		provider("alpha", "1.0.0", categories("x")),
	}
	res := Filter(contracts.Requirement{Category: "test"}, catalog, contracts.EffectiveConstraints{})
	require.Len(t, res.Rejected, 3)
	assert.Equal(t, "alpha", res.Rejected[0].ServerID)
	assert.Equal(t, "1.0.0", res.Rejected[0].Version)
	assert.Equal(t, "2.0.0", res.Rejected[1].Version)
	assert.Equal(t, "zeta", res.Rejected[2].ServerID)

	assert.Equal(t, "zeta", catalog[0].ID, "catalog must not be reordered")
}
