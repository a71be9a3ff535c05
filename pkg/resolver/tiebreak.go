package resolver

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
)

// OnlyCandidateReason is the rationale when exactly one candidate was accepted.
const OnlyCandidateReason = "Only matching candidate"

// tieBreakFactor names the step of the selection order that separated two candidates.
type tieBreakFactor int

const (
	factorSigned tieBreakFactor = iota
	factorID
	factorVersion
)

func (f tieBreakFactor) String() string {
	switch f {
	case factorSigned:
		return "signed before unsigned"
	case factorID:
		return "lower server id"
	default:
		return "lower version"
	}
}

// TieBreak is the outcome of selecting among accepted candidates.
type TieBreak struct {
	Winner contracts.ServiceProvider
	Reason string
	// Losers are the remaining accepted candidates, rejected with LOST_TIE_BREAK.
	Losers []contracts.RejectedCandidate
}

// Select picks exactly one winner with the total order: signed before
// unsigned, then smaller id, then smaller version. It reports false when
// accepted is empty.
func Select(accepted []contracts.ServiceProvider) (TieBreak, bool) {
	if len(accepted) == 0 {
		return TieBreak{}, false
	}

	ranked := slices.Clone(accepted)
	slices.SortStableFunc(ranked, compareTieBreak)
	winner := ranked[0]

	if len(ranked) == 1 {
		return TieBreak{Winner: winner, Reason: OnlyCandidateReason, Losers: []contracts.RejectedCandidate{}}, true
	}

	seen := map[tieBreakFactor]bool{}
	losers := make([]contracts.RejectedCandidate, 0, len(ranked)-1)
	for _, p := range ranked[1:] {
		f := decidingFactor(winner, p)
		seen[f] = true
		losers = append(losers, contracts.RejectedCandidate{
			ServerID: p.ID,
			Version:  p.Version,
			Reason: contracts.RejectionReason{
				Code:    contracts.ReasonLostTieBreak,
				Message: fmt.Sprintf("Lost tie-break to %s: %s", winner.Ref(), f),
			},
		})
	}

	var factors []string
	for _, f := range []tieBreakFactor{factorSigned, factorID, factorVersion} {
		if seen[f] {
			factors = append(factors, f.String())
		}
	}

	return TieBreak{
		Winner: winner,
		Reason: fmt.Sprintf("Selected from %d candidates by tie-break: %s", len(ranked), strings.Join(factors, ", ")),
		Losers: losers,
	}, true
}

func compareTieBreak(a, b contracts.ServiceProvider) int {
	if a.Trust.Signed != b.Trust.Signed {
		if a.Trust.Signed {
			return -1
		}
		return 1
	}
	return contracts.CompareProviders(a, b)
}

// decidingFactor assumes winner ranks before loser.
func decidingFactor(winner, loser contracts.ServiceProvider) tieBreakFactor {
	switch {
	case winner.Trust.Signed != loser.Trust.Signed:
		return factorSigned
	case winner.ID != loser.ID:
		return factorID
	default:
		return factorVersion
	}
}
