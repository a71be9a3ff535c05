package contracts

import "time"

// ReasonCode is the machine-readable cause of a candidate rejection.
type ReasonCode string

const (
	ReasonMissingCategory     ReasonCode = "MISSING_CATEGORY"
	ReasonMissingScope        ReasonCode = "MISSING_SCOPE"
	ReasonResidencyMismatch   ReasonCode = "RESIDENCY_MISMATCH"
	ReasonSensitivityExceeded ReasonCode = "SENSITIVITY_EXCEEDED"
	ReasonUnsignedNotAllowed  ReasonCode = "UNSIGNED_NOT_ALLOWED"
	ReasonForbiddenServer     ReasonCode = "FORBIDDEN_SERVER"
	ReasonNotAllowlisted      ReasonCode = "NOT_ALLOWLISTED"
	ReasonLostTieBreak        ReasonCode = "LOST_TIE_BREAK"
)

type RejectionReason struct {
	Code    ReasonCode `json:"code"`
	Message string     `json:"message"`
}

// RejectedCandidate is a provider considered for a requirement and not chosen.
type RejectedCandidate struct {
	ServerID string          `json:"serverId"`
	Version  string          `json:"version"`
	Reason   RejectionReason `json:"reason"`
}

// LockedServer pins one requirement to one provider.
type LockedServer struct {
	Category string   `json:"category"`
	ServerID string   `json:"serverId"`
	Version  string   `json:"version"`
	Endpoint string   `json:"endpoint"`
	Scopes   []string `json:"scopes"`
	Hash     string   `json:"hash"`
}

// Lockfile is the reproducible output of a successful resolution.
type Lockfile struct {
	AgentName    string         `json:"agentName"`
	AgentVersion string         `json:"agentVersion"`
	ResolvedAt   string         `json:"resolvedAt"`
	Servers      []LockedServer `json:"servers"`
}

// ResolutionExplanation is the audit trail of a resolution run.
type ResolutionExplanation struct {
	AgentName    string                   `json:"agentName"`
	AgentVersion string                   `json:"agentVersion"`
	ResolvedAt   string                   `json:"resolvedAt"`
	Success      bool                     `json:"success"`
	Requirements []RequirementExplanation `json:"requirements"`
}

type RequirementExplanation struct {
	Category            string              `json:"category"`
	RequiredPermissions []string            `json:"requiredPermissions"`
	Selected            *Selection          `json:"selected"`
	Rejected            []RejectedCandidate `json:"rejected"`
	ConstraintsApplied  ConstraintsApplied  `json:"constraintsApplied"`
}

// Selection is the accepted provider for a requirement.
type Selection struct {
	ServerID        string   `json:"serverId"`
	Version         string   `json:"version"`
	Endpoint        string   `json:"endpoint"`
	Scopes          []string `json:"scopes"`
	SelectionReason string   `json:"selectionReason"`
}

type ConstraintsApplied struct {
	Residency     *ResidencyLevel   `json:"residency"`
	Sensitivity   *SensitivityLevel `json:"sensitivity"`
	RequireSigned *bool             `json:"requireSigned"`
}

// TimestampLayout is ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
