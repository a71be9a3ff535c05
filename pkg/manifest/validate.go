package manifest

import (
	"fmt"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
)

// Validate checks the semantic rules the schema cannot express. It does not
// mutate m and never panics.
func Validate(m *contracts.AgentManifest) contracts.FieldErrors {
	var errs contracts.FieldErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, contracts.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if m.Name == "" {
		add("name", "is required")
	}
	if m.Version == "" {
		add("version", "is required")
	}
	if len(m.Requires.MCP) == 0 {
		add("requires.mcp", "at least one requirement is required")
	}

	forbidden := contracts.NewStringSet(m.Constraints.ForbiddenActions()...)
	categories := contracts.NewStringSet()
	for i, r := range m.Requires.MCP {
		field := fmt.Sprintf("requires.mcp[%d]", i)
		switch {
		case r.Category == "":
			add(field+".category", "is required")
		case categories.Has(r.Category):
			add(field+".category", "duplicate category %q", r.Category)
		}
		categories.Add(r.Category)

		for j, p := range r.Permissions {
			pf := fmt.Sprintf("%s.permissions[%d]", field, j)
			if p == "" {
				add(pf, "must not be empty")
				continue
			}
			if forbidden.Has(p) {
				add(pf, "requests %q, which the agent forbids in constraints.actions.forbid", p)
			}
		}
	}

	if s := m.Constraints.Sensitivity(); s != "" && !s.Valid() {
		add("constraints.data.sensitivity", "unknown sensitivity level %q", s)
	}
	if r := m.Constraints.Residency(); r != "" && !r.Valid() {
		add("constraints.data.residency", "malformed residency %q", r)
	}
	return errs
}
