package contracts

import "slices"

// EffectiveConstraints is the merged set of mandatory limits applied to every
// requirement of one resolution run. Nil pointer fields are unset.
//
// AllowedServers distinguishes unset (nil, serialised as null) from an empty
// allow-list (non-nil, serialised as []) which admits nothing.
type EffectiveConstraints struct {
	RequireSigned    *bool             `json:"requireSigned"`
	Residency        *ResidencyLevel   `json:"residency"`
	Sensitivity      *SensitivityLevel `json:"sensitivity"`
	ForbiddenServers []string          `json:"forbiddenServers"`
	AllowedServers   []string          `json:"allowedServers"`
}

// NewEffectiveConstraints returns constraints with nothing set.
func NewEffectiveConstraints() EffectiveConstraints {
	return EffectiveConstraints{ForbiddenServers: []string{}}
}

// SignedRequired reports whether only signed providers are acceptable.
func (c EffectiveConstraints) SignedRequired() bool {
	return c.RequireSigned != nil && *c.RequireSigned
}

// HasAllowList reports whether an allow-list is in force.
func (c EffectiveConstraints) HasAllowList() bool {
	return c.AllowedServers != nil
}

func (c EffectiveConstraints) IsForbidden(serverID string) bool {
	return slices.Contains(c.ForbiddenServers, serverID)
}

// IsAllowed reports whether serverID passes the allow-list; always true when
// no allow-list is set.
func (c EffectiveConstraints) IsAllowed(serverID string) bool {
	if !c.HasAllowList() {
		return true
	}
	return slices.Contains(c.AllowedServers, serverID)
}

// Applied projects the constraints recorded per requirement in explanations.
func (c EffectiveConstraints) Applied() ConstraintsApplied {
	return ConstraintsApplied{
		Residency:     c.Residency,
		Sensitivity:   c.Sensitivity,
		RequireSigned: c.RequireSigned,
	}
}

// Clone returns a deep copy so callers can never alias merge state.
func (c EffectiveConstraints) Clone() EffectiveConstraints {
	out := EffectiveConstraints{
		ForbiddenServers: slices.Clone(c.ForbiddenServers),
		AllowedServers:   slices.Clone(c.AllowedServers),
	}
	if out.ForbiddenServers == nil {
		out.ForbiddenServers = []string{}
	}
	if c.AllowedServers != nil && out.AllowedServers == nil {
		out.AllowedServers = []string{}
	}
	if c.RequireSigned != nil {
		v := *c.RequireSigned
		out.RequireSigned = &v
	}
	if c.Residency != nil {
		v := *c.Residency
		out.Residency = &v
	}
	if c.Sensitivity != nil {
		v := *c.Sensitivity
		out.Sensitivity = &v
	}
	return out
}
