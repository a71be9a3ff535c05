package contracts

import (
	"cmp"
	"slices"
)

// ServiceProvider is one catalog entry that may satisfy a requirement.
type ServiceProvider struct {
	ID               string           `json:"id"`
	Version          string           `json:"version"`
	Endpoint         string           `json:"endpoint"`
	Categories       []string         `json:"categories"`
	Scopes           []string         `json:"scopes"`
	ResidencySupport []ResidencyLevel `json:"residencySupport"`
	MaxSensitivity   SensitivityLevel `json:"maxSensitivity"`
	Trust            Trust            `json:"trust"`
	RateLimitPerMin  *int             `json:"rateLimitPerMin,omitempty"`
}

// Trust describes the provenance of a provider.
type Trust struct {
	Signed    bool   `json:"signed"`
	Publisher string `json:"publisher"`
}

// Ref returns "id@version".
func (p ServiceProvider) Ref() string {
	return p.ID + "@" + p.Version
}

func (p ServiceProvider) HasCategory(category string) bool {
	return slices.Contains(p.Categories, category)
}

// MissingScopes returns the sorted subset of required not offered by p.
func (p ServiceProvider) MissingScopes(required []string) []string {
	offered := NewStringSet(p.Scopes...)
	missing := NewStringSet()
	for _, s := range required {
		if !offered.Has(s) {
			missing.Add(s)
		}
	}
	return missing.Sorted()
}

// SupportsResidency reports whether p can serve data pinned to r. A provider
// declaring ResidencyAny supports every region.
func (p ServiceProvider) SupportsResidency(r ResidencyLevel) bool {
	return slices.Contains(p.ResidencySupport, r) || slices.Contains(p.ResidencySupport, ResidencyAny)
}

// CompareProviders orders providers by (id, version) ascending.
func CompareProviders(a, b ServiceProvider) int {
	if c := cmp.Compare(a.ID, b.ID); c != 0 {
		return c
	}
	return cmp.Compare(a.Version, b.Version)
}
