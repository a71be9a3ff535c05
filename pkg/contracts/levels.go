package contracts

import "regexp"

// ResidencyLevel names a data residency region a provider can honour.
// The set is open; ResidencyAny is a wildcard that satisfies every requirement.
type ResidencyLevel string

const (
	ResidencyAny    ResidencyLevel = "any"
	ResidencyUSOnly ResidencyLevel = "us-only"
	ResidencyEUOnly ResidencyLevel = "eu-only"
)

var residencyPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Valid reports whether r is a well-formed residency token such as "eu-only".
func (r ResidencyLevel) Valid() bool {
	return residencyPattern.MatchString(string(r))
}

// SensitivityLevel classifies data handled by an agent. Levels are totally
// ordered by their index in SensitivityLevels.
type SensitivityLevel string

const (
	SensitivityPublic       SensitivityLevel = "public"
	SensitivityInternal     SensitivityLevel = "internal"
	SensitivityConfidential SensitivityLevel = "confidential"
	SensitivityPIILow       SensitivityLevel = "pii.low"
	SensitivityPIIModerate  SensitivityLevel = "pii.moderate"
	SensitivityPIIHigh      SensitivityLevel = "pii.high"
)

// SensitivityLevels lists every level from least to most sensitive.
var SensitivityLevels = []SensitivityLevel{
	SensitivityPublic,
	SensitivityInternal,
	SensitivityConfidential,
	SensitivityPIILow,
	SensitivityPIIModerate,
	SensitivityPIIHigh,
}

// Index returns the position of s in SensitivityLevels, or -1 if unknown.
func (s SensitivityLevel) Index() int {
	for i, l := range SensitivityLevels {
		if l == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is one of the canonical levels.
func (s SensitivityLevel) Valid() bool {
	return s.Index() >= 0
}

// SensitivityExceeds reports whether x is strictly more sensitive than y.
func SensitivityExceeds(x, y SensitivityLevel) bool {
	return x.Index() > y.Index()
}

// MoreRestrictive returns the more sensitive of a and b.
func MoreRestrictive(a, b SensitivityLevel) SensitivityLevel {
	if SensitivityExceeds(b, a) {
		return b
	}
	return a
}
