package policy

import (
	"fmt"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
)

// Validate checks a single policy document.
func Validate(p contracts.Policy) contracts.FieldErrors {
	var errs contracts.FieldErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, contracts.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if p.ID == "" {
		add("id", "is required")
	}
	if p.Name == "" {
		add("name", "is required")
	}

	seen := contracts.NewStringSet()
	for i, r := range p.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if r.ID == "" {
			add(field+".id", "is required")
		} else if seen.Has(r.ID) {
			add(field+".id", "duplicate rule id %q", r.ID)
		}
		seen.Add(r.ID)

		if r.Severity != contracts.SeverityWarning && r.Severity != contracts.SeverityError {
			add(field+".severity", "must be %q or %q", contracts.SeverityWarning, contracts.SeverityError)
		}

		switch r.Type {
		case contracts.RuleRequireSigned:
			if _, ok := r.Value.AsBool(); !ok {
				add(field+".value", "must be a boolean")
			}
		case contracts.RuleRequireResidency:
			s, ok := r.Value.AsString()
			if !ok || !contracts.ResidencyLevel(s).Valid() {
				add(field+".value", "must be a residency level such as %q", contracts.ResidencyEUOnly)
			}
		case contracts.RuleRequireSensitivity:
			s, _ := r.Value.AsString()
			if !contracts.SensitivityLevel(s).Valid() {
				add(field+".value", "unknown sensitivity level %q", s)
			}
		case contracts.RuleForbidServer, contracts.RuleAllowServer:
			if r.Value.Bool != nil || (r.Value.List == nil && r.Value.String == "") {
				add(field+".value", "must be a server id or a list of server ids")
			}
			for j, id := range r.Value.List {
				if id == "" {
					add(fmt.Sprintf("%s.value[%d]", field, j), "server id must not be empty")
				}
			}
		default:
			add(field+".type", "unknown rule type %q", r.Type)
		}

		if r.When != "" {
			if err := CompileCondition(r.When); err != nil {
				add(field+".when", "%v", err)
			}
		}
	}
	return errs
}

// ValidateAll checks every policy and rejects duplicate policy ids.
func ValidateAll(policies []contracts.Policy) contracts.FieldErrors {
	var errs contracts.FieldErrors
	ids := contracts.NewStringSet()
	for i, p := range policies {
		prefix := fmt.Sprintf("policies[%d]", i)
		if p.ID != "" && ids.Has(p.ID) {
			errs = append(errs, contracts.FieldError{Field: prefix + ".id", Message: fmt.Sprintf("duplicate policy id %q", p.ID)})
		}
		ids.Add(p.ID)
		for _, e := range Validate(p) {
			errs = append(errs, contracts.FieldError{Field: prefix + "." + e.Field, Message: e.Message})
		}
	}
	return errs
}
