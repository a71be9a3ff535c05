// Package policy merges prioritised policy documents and the agent's own
// declared constraints into one EffectiveConstraints value, recording every
// rule that triggered and every violation or warning it produced.
package policy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
)

// Field names used in findings.
const (
	FieldRequireSigned  = "requireSigned"
	FieldResidency      = "residency"
	FieldSensitivity    = "sensitivity"
	FieldAllowedServers = "allowedServers"
	FieldCondition      = "when"
	FieldValue          = "value"
	FieldType           = "type"
)

// Subject is what rule conditions are evaluated against.
type Subject struct {
	Name       string
	Version    string
	Categories []string
}

// SubjectFromManifest derives a Subject from a manifest.
func SubjectFromManifest(m *contracts.AgentManifest) Subject {
	return Subject{Name: m.Name, Version: m.Version, Categories: m.Categories()}
}

// MergeOption configures Merge.
type MergeOption func(*merger)

// WithSubject sets the agent that rule conditions see. Without it conditions
// are evaluated against an empty subject.
func WithSubject(s Subject) MergeOption {
	return func(m *merger) { m.subject = s }
}

// origin remembers which rule set a field.
type origin struct {
	policy int
	rule   contracts.Rule
}

type merger struct {
	ordered []contracts.Policy
	subject Subject
	conds   *conditionEvaluator

	requireSigned *bool
	residency     *contracts.ResidencyLevel
	sensitivity   *contracts.SensitivityLevel
	signedFrom    origin
	residencyFrom origin
	sensFrom      origin

	forbidden contracts.StringSet
	allowed   contracts.StringSet // nil until a policy declares an allow-list

	triggered  [][]string // per ordered policy
	violations []contracts.Finding
	warnings   []contracts.Finding
}

// Merge combines policies and agent constraints. Policies are processed in
// descending priority, ties broken by ascending id, so the result does not
// depend on input order. Neither argument is modified.
func Merge(policies []contracts.Policy, agent *contracts.AgentConstraints, opts ...MergeOption) contracts.PolicyResult {
	m := &merger{
		ordered:    MergeOrder(policies),
		conds:      newConditionEvaluator(),
		forbidden:  contracts.NewStringSet(),
		violations: []contracts.Finding{},
		warnings:   []contracts.Finding{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.triggered = make([][]string, len(m.ordered))

	for i := range m.ordered {
		m.applyPolicy(i)
	}
	m.applyAgent(agent)

	return m.result()
}

// MergeOrder returns a copy of policies sorted by priority desc, id asc.
func MergeOrder(policies []contracts.Policy) []contracts.Policy {
	ordered := slices.Clone(policies)
	slices.SortStableFunc(ordered, func(a, b contracts.Policy) int {
		if a.Priority != b.Priority {
			if a.Priority > b.Priority {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return ordered
}

func (m *merger) applyPolicy(idx int) {
	p := m.ordered[idx]

	var declared contracts.StringSet
	var allowRules []string

	for _, r := range p.Rules {
		if !m.conditionHolds(idx, r) {
			continue
		}

		switch r.Type {
		case contracts.RuleRequireSigned:
			m.applyRequireSigned(idx, r)
		case contracts.RuleRequireResidency:
			m.applyRequireResidency(idx, r)
		case contracts.RuleRequireSensitivity:
			m.applyRequireSensitivity(idx, r)
		case contracts.RuleForbidServer:
			changed := false
			for _, id := range r.Value.AsList() {
				if !m.forbidden.Has(id) {
					m.forbidden.Add(id)
					changed = true
				}
			}
			if changed {
				m.trigger(idx, r.ID)
			}
		case contracts.RuleAllowServer:
			if declared == nil {
				declared = contracts.NewStringSet()
			}
			declared.Add(r.Value.AsList()...)
			allowRules = append(allowRules, r.ID)
		default:
			m.warn(idx, r, FieldType, fmt.Sprintf("unknown rule type %q ignored", r.Type))
		}
	}

	if declared != nil {
		m.applyAllowList(idx, declared, allowRules)
	}
}

func (m *merger) conditionHolds(idx int, r contracts.Rule) bool {
	if r.When == "" {
		return true
	}
	ok, err := m.conds.Eval(r.When, m.subject)
	if err != nil {
		m.warn(idx, r, FieldCondition, fmt.Sprintf("rule skipped: %v", err))
		return false
	}
	return ok
}

func (m *merger) applyRequireSigned(idx int, r contracts.Rule) {
	v, ok := r.Value.AsBool()
	if !ok {
		m.warn(idx, r, FieldValue, "require-signed expects a boolean value; rule ignored")
		return
	}
	if m.requireSigned == nil {
		m.requireSigned = &v
		m.signedFrom = origin{policy: idx, rule: r}
		m.trigger(idx, r.ID)
		return
	}
	if *m.requireSigned != v {
		m.warn(idx, r, FieldRequireSigned, m.superseded(m.signedFrom, fmt.Sprint(v), fmt.Sprint(*m.requireSigned)))
	}
}

func (m *merger) applyRequireResidency(idx int, r contracts.Rule) {
	s, ok := r.Value.AsString()
	if !ok {
		m.warn(idx, r, FieldValue, "require-residency expects a residency level; rule ignored")
		return
	}
	v := contracts.ResidencyLevel(s)
	if m.residency == nil {
		m.residency = &v
		m.residencyFrom = origin{policy: idx, rule: r}
		m.trigger(idx, r.ID)
		return
	}
	if *m.residency != v {
		m.warn(idx, r, FieldResidency, m.superseded(m.residencyFrom, string(v), string(*m.residency)))
	}
}

// applyRequireSensitivity keeps the more restrictive level regardless of
// priority; relaxing a sensitivity ceiling is never silent.
func (m *merger) applyRequireSensitivity(idx int, r contracts.Rule) {
	s, _ := r.Value.AsString()
	v := contracts.SensitivityLevel(s)
	if !v.Valid() {
		m.warn(idx, r, FieldValue, fmt.Sprintf("unknown sensitivity level %q; rule ignored", s))
		return
	}
	if m.sensitivity == nil {
		m.sensitivity = &v
		m.sensFrom = origin{policy: idx, rule: r}
		m.trigger(idx, r.ID)
		return
	}

	cur := *m.sensitivity
	switch {
	case contracts.SensitivityExceeds(v, cur):
		prev := m.sensFrom
		m.sensitivity = &v
		m.sensFrom = origin{policy: idx, rule: r}
		m.warn(idx, r, FieldSensitivity, fmt.Sprintf("raised sensitivity from %q (policy %q) to more restrictive %q",
			cur, m.ordered[prev.policy].ID, v))
	case contracts.SensitivityExceeds(cur, v):
		m.warn(idx, r, FieldSensitivity, fmt.Sprintf("less restrictive sensitivity %q ignored; keeping %q from policy %q",
			v, cur, m.ordered[m.sensFrom.policy].ID))
	}
}

// applyAllowList intersects the policy's declared allow-list into the effective one.
func (m *merger) applyAllowList(idx int, declared contracts.StringSet, ruleIDs []string) {
	if m.allowed == nil {
		m.allowed = declared
		for _, id := range ruleIDs {
			m.trigger(idx, id)
		}
		return
	}

	next := m.allowed.Intersect(declared)
	if next.Equal(m.allowed) {
		return
	}
	prev := m.allowed
	m.allowed = next
	for _, id := range ruleIDs {
		m.trigger(idx, id)
	}

	if len(next) == 0 && len(prev) > 0 {
		p := m.ordered[idx]
		m.violations = append(m.violations, contracts.Finding{
			PolicyID: p.ID,
			RuleID:   ruleIDs[0],
			Field:    FieldAllowedServers,
			Severity: contracts.SeverityError,
			Message: fmt.Sprintf("allow-lists conflict: policy %q admits none of %s; no server can be selected",
				p.ID, strings.Join(prev.Sorted(), ", ")),
		})
	}
}

// applyAgent folds the agent's self-declared data constraints into the
// merged result, raising violations where they contradict a policy.
func (m *merger) applyAgent(agent *contracts.AgentConstraints) {
	if r := agent.Residency(); r != "" {
		switch {
		case m.residency == nil:
			m.residency = &r
		case *m.residency == r, r == contracts.ResidencyAny:
		case *m.residency == contracts.ResidencyAny:
			m.residency = &r
		default:
			m.violate(m.residencyFrom, FieldResidency,
				fmt.Sprintf("agent declares residency %q but policy requires %q", r, *m.residency))
		}
	}

	if s := agent.Sensitivity(); s != "" {
		switch {
		case m.sensitivity == nil:
			m.sensitivity = &s
		case contracts.SensitivityExceeds(s, *m.sensitivity):
			m.sensitivity = &s
		case contracts.SensitivityExceeds(*m.sensitivity, s):
			m.violate(m.sensFrom, FieldSensitivity,
				fmt.Sprintf("agent declares sensitivity %q below policy requirement %q", s, *m.sensitivity))
		}
	}
}

func (m *merger) violate(o origin, field, fallback string) {
	msg := o.rule.Message
	if msg == "" {
		msg = fallback
	}
	m.violations = append(m.violations, contracts.Finding{
		PolicyID: m.ordered[o.policy].ID,
		RuleID:   o.rule.ID,
		Field:    field,
		Severity: severityOf(o.rule),
		Message:  msg,
	})
	m.trigger(o.policy, o.rule.ID)
}

func (m *merger) warn(idx int, r contracts.Rule, field, msg string) {
	m.warnings = append(m.warnings, contracts.Finding{
		PolicyID: m.ordered[idx].ID,
		RuleID:   r.ID,
		Field:    field,
		Severity: contracts.SeverityWarning,
		Message:  msg,
	})
	m.trigger(idx, r.ID)
}

func (m *merger) superseded(winner origin, asserted, kept string) string {
	return fmt.Sprintf("superseded by higher-priority policy %q (rule %q): asserted %s, effective %s",
		m.ordered[winner.policy].ID, winner.rule.ID, asserted, kept)
}

func (m *merger) trigger(idx int, ruleID string) {
	if !slices.Contains(m.triggered[idx], ruleID) {
		m.triggered[idx] = append(m.triggered[idx], ruleID)
	}
}

func (m *merger) result() contracts.PolicyResult {
	eff := contracts.NewEffectiveConstraints()
	eff.RequireSigned = m.requireSigned
	eff.Residency = m.residency
	eff.Sensitivity = m.sensitivity
	eff.ForbiddenServers = m.forbidden.Sorted()
	if m.allowed != nil {
		eff.AllowedServers = m.allowed.Sorted()
	}

	applied := []contracts.AppliedPolicy{}
	for i, p := range m.ordered {
		if len(m.triggered[i]) == 0 {
			continue
		}
		applied = append(applied, contracts.AppliedPolicy{
			PolicyID:       p.ID,
			PolicyName:     p.Name,
			Version:        p.Version,
			Priority:       p.Priority,
			RulesTriggered: m.triggered[i],
		})
	}

	success := true
	for _, v := range m.violations {
		if v.Severity == contracts.SeverityError {
			success = false
			break
		}
	}

	return contracts.PolicyResult{
		Success:              success,
		EffectiveConstraints: eff.Clone(),
		PoliciesApplied:      applied,
		Violations:           m.violations,
		Warnings:             m.warnings,
	}
}

func severityOf(r contracts.Rule) contracts.Severity {
	if r.Severity == contracts.SeverityWarning {
		return contracts.SeverityWarning
	}
	return contracts.SeverityError
}
