package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Severity classifies a policy finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// RuleType names a policy rule kind.
type RuleType string

const (
	RuleRequireSigned      RuleType = "require-signed"
	RuleRequireResidency   RuleType = "require-residency"
	RuleRequireSensitivity RuleType = "require-sensitivity"
	RuleForbidServer       RuleType = "forbid-server"
	RuleAllowServer        RuleType = "allow-server"
)

// Policy is an externally supplied, prioritised rule set.
type Policy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Priority    int    `json:"priority"` // Higher = merged first
	Rules       []Rule `json:"rules"`
}

// Rule is one constraint assertion inside a policy.
type Rule struct {
	ID       string    `json:"id"`
	Type     RuleType  `json:"type"`
	Value    RuleValue `json:"value"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	When     string    `json:"when,omitempty"` // CEL condition over `agent`
}

// RuleValue holds a rule argument: a bool, a string, or a list of strings.
type RuleValue struct {
	Bool   *bool
	String string
	List   []string
}

func BoolValue(b bool) RuleValue          { return RuleValue{Bool: &b} }
func StringValue(s string) RuleValue      { return RuleValue{String: s} }
func ListValue(items ...string) RuleValue {
	if items == nil {
		items = []string{}
	}
	return RuleValue{List: items}
}

// AsBool returns the boolean form, if the value holds one.
func (v RuleValue) AsBool() (bool, bool) {
	if v.Bool == nil {
		return false, false
	}
	return *v.Bool, true
}

// AsString returns the string form, if the value holds one.
func (v RuleValue) AsString() (string, bool) {
	if v.Bool != nil || v.List != nil || v.String == "" {
		return "", false
	}
	return v.String, true
}

// AsList returns the value as a list of ids; a single string becomes a
// one-element list.
func (v RuleValue) AsList() []string {
	if v.List != nil {
		return v.List
	}
	if s, ok := v.AsString(); ok {
		return []string{s}
	}
	return nil
}

func (v RuleValue) IsZero() bool {
	return v.Bool == nil && v.List == nil && v.String == ""
}

func (v RuleValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Bool != nil:
		return json.Marshal(*v.Bool)
	case v.List != nil:
		return json.Marshal(v.List)
	case v.String != "":
		return json.Marshal(v.String)
	}
	return []byte("null"), nil
}

func (v *RuleValue) UnmarshalJSON(data []byte) error {
	*v = RuleValue{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("rule value: %w", err)
		}
		v.Bool = &b
	case '"':
		if err := json.Unmarshal(data, &v.String); err != nil {
			return fmt.Errorf("rule value: %w", err)
		}
	case '[':
		v.List = []string{}
		if err := json.Unmarshal(data, &v.List); err != nil {
			return fmt.Errorf("rule value: %w", err)
		}
	default:
		return fmt.Errorf("rule value: expected bool, string or list of strings, got %s", data)
	}
	return nil
}

// PolicyResult is the full output of a policy merge.
type PolicyResult struct {
	Success              bool                 `json:"success"`
	EffectiveConstraints EffectiveConstraints `json:"effectiveConstraints"`
	PoliciesApplied      []AppliedPolicy      `json:"policiesApplied"`
	Violations           []Finding            `json:"violations"`
	Warnings             []Finding            `json:"warnings"`
}

// AppliedPolicy records a policy that had at least one rule trigger.
type AppliedPolicy struct {
	PolicyID       string   `json:"policyId"`
	PolicyName     string   `json:"policyName"`
	Version        string   `json:"version"`
	Priority       int      `json:"priority"`
	RulesTriggered []string `json:"rulesTriggered"`
}

// Finding is a violation or warning raised during a merge.
type Finding struct {
	PolicyID string   `json:"policyId"`
	RuleID   string   `json:"ruleId"`
	Field    string   `json:"field,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}
