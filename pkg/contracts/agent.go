package contracts

// Requirement is one capability category an agent needs, with the permission
// scopes it must be granted.
type Requirement struct {
	Category    string   `json:"category"`
	Permissions []string `json:"permissions"`
}

// AgentManifest is the validated agent declaration consumed by the resolver.
type AgentManifest struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description,omitempty"`
	Requires    AgentRequires     `json:"requires"`
	Constraints *AgentConstraints `json:"constraints,omitempty"`
}

type AgentRequires struct {
	MCP []Requirement `json:"mcp"`
}

// AgentConstraints are the limits an agent declares for itself.
type AgentConstraints struct {
	Data    *DataConstraints   `json:"data,omitempty"`
	Actions *ActionConstraints `json:"actions,omitempty"`
}

type DataConstraints struct {
	Sensitivity SensitivityLevel `json:"sensitivity,omitempty"`
	Residency   ResidencyLevel   `json:"residency,omitempty"`
}

// ActionConstraints lists permission scopes the agent forbids itself.
type ActionConstraints struct {
	Forbid []string `json:"forbid,omitempty"`
}

// Residency returns the declared residency, or "" when absent.
func (c *AgentConstraints) Residency() ResidencyLevel {
	if c == nil || c.Data == nil {
		return ""
	}
	return c.Data.Residency
}

// Sensitivity returns the declared sensitivity, or "" when absent.
func (c *AgentConstraints) Sensitivity() SensitivityLevel {
	if c == nil || c.Data == nil {
		return ""
	}
	return c.Data.Sensitivity
}

// ForbiddenActions returns the declared forbidden actions, sorted.
func (c *AgentConstraints) ForbiddenActions() []string {
	if c == nil || c.Actions == nil {
		return []string{}
	}
	return SortedUnique(c.Actions.Forbid)
}

// Categories returns the sorted, distinct categories the manifest requires.
func (m *AgentManifest) Categories() []string {
	cats := make([]string, 0, len(m.Requires.MCP))
	for _, r := range m.Requires.MCP {
		cats = append(cats, r.Category)
	}
	return SortedUnique(cats)
}
