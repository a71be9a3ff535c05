package catalog

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
)

// Validate checks catalog entries. Versions must parse as semantic versions;
// the resolver still orders them lexicographically.
func Validate(providers []contracts.ServiceProvider) contracts.FieldErrors {
	var errs contracts.FieldErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, contracts.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	seen := contracts.NewStringSet()
	for i, p := range providers {
		f := fmt.Sprintf("[%d]", i)
		if p.ID == "" {
			add(f+".id", "is required")
		}
		if p.Version == "" {
			add(f+".version", "is required")
		} else if _, err := semver.NewVersion(p.Version); err != nil {
			add(f+".version", "%q is not a semantic version: %v", p.Version, err)
		}
		if p.Endpoint == "" {
			add(f+".endpoint", "is required")
		}
		if p.ID != "" && p.Version != "" {
			if seen.Has(p.Ref()) {
				add(f, "duplicate provider %s", p.Ref())
			}
			seen.Add(p.Ref())
		}

		for j, c := range p.Categories {
			if c == "" {
				add(fmt.Sprintf("%s.categories[%d]", f, j), "must not be empty")
			}
		}
		for j, s := range p.Scopes {
			if s == "" {
				add(fmt.Sprintf("%s.scopes[%d]", f, j), "must not be empty")
			}
		}
		for j, r := range p.ResidencySupport {
			if !r.Valid() {
				add(fmt.Sprintf("%s.residencySupport[%d]", f, j), "malformed residency %q", r)
			}
		}
		if !p.MaxSensitivity.Valid() {
			add(f+".maxSensitivity", "unknown sensitivity level %q", p.MaxSensitivity)
		}
		if p.RateLimitPerMin != nil && *p.RateLimitPerMin < 1 {
			add(f+".rateLimitPerMin", "must be positive")
		}
	}
	return errs
}
