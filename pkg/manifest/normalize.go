package manifest

import (
	"golang.org/x/text/unicode/norm"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
)

// Normalize rewrites every identifier in m to Unicode NFC so that visually
// identical categories and scopes compare equal during resolution.
func Normalize(m *contracts.AgentManifest) {
	m.Name = norm.NFC.String(m.Name)
	m.Version = norm.NFC.String(m.Version)
	for i := range m.Requires.MCP {
		r := &m.Requires.MCP[i]
		r.Category = norm.NFC.String(r.Category)
		nfcAll(r.Permissions)
		if r.Permissions == nil {
			r.Permissions = []string{}
		}
	}
	if m.Constraints != nil && m.Constraints.Actions != nil {
		nfcAll(m.Constraints.Actions.Forbid)
	}
}

func nfcAll(values []string) {
	for i, v := range values {
		values[i] = norm.NFC.String(v)
	}
}
