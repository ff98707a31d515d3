// Package election defines the election entity and its derived lifecycle.
package election

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
)

// Status is the derived lifecycle state of an election. It is never stored:
// it falls out of the allow flags plus whether the election has ever launched.
type Status string

const (
	// StatusDraft allows editing candidates and voters but not ballots.
	StatusDraft Status = "DRAFT"
	// StatusLaunched allows casting ballots; edits only when allowEdit is set.
	StatusLaunched Status = "LAUNCHED"
	// StatusFinalized closes voting after a launch; the tally stands.
	StatusFinalized Status = "FINALIZED"
)

// DeriveStatus computes the lifecycle state from the stored flags.
// An election that stopped allowing votes after launching is finalized.
func DeriveStatus(allowVote, launched bool) Status {
	if allowVote {
		return StatusLaunched
	}
	if launched {
		return StatusFinalized
	}
	return StatusDraft
}

// NormalizeName trims and validates an election name.
func NormalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", apperrors.New(apperrors.CodeElectionNameEmpty, "election name is required")
	}
	return trimmed, nil
}

// VotingWindowOpen reports whether now falls inside the optional voting window.
func VotingWindowOpen(now time.Time, notBefore, notAfter *time.Time) bool {
	if notBefore != nil && now.Before(*notBefore) {
		return false
	}
	if notAfter != nil && now.After(*notAfter) {
		return false
	}
	return true
}

// NormalizeCandidates trims candidate names and rejects empties and
// duplicates within the request.
func NormalizeCandidates(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return nil, apperrors.New(apperrors.CodeCandidateNameEmpty, "candidate name is required")
		}
		if seen[trimmed] {
			return nil, apperrors.WithMetadata(apperrors.CodeCandidateDuplicate,
				"duplicate candidate in request", map[string]string{"candidate": trimmed})
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out, nil
}

// NormalizeVoters trims voter names and rejects empties and duplicates
// within the request.
func NormalizeVoters(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return nil, apperrors.New(apperrors.CodeVoterNameEmpty, "voter name is required")
		}
		if seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out, nil
}
