// Package ballot validates ranked ballots against an election's candidate set.
package ballot

import (
	"sort"
	"strings"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
)

// NormalizeRankings validates a ranking list against the candidate set.
// Rules: at least one ranking, every candidate exists in the election, each
// candidate appears at most once, every rank is positive. Tied ranks across
// different candidates are permitted.
func NormalizeRankings(rankings []event.Ranking, candidates []string) ([]event.Ranking, error) {
	if len(rankings) == 0 {
		return nil, apperrors.New(apperrors.CodeBallotEmpty, "ballot must rank at least one candidate")
	}

	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c] = true
	}

	out := make([]event.Ranking, 0, len(rankings))
	seen := make(map[string]bool, len(rankings))
	for _, r := range rankings {
		candidate := strings.TrimSpace(r.Candidate)
		if candidate == "" {
			return nil, apperrors.New(apperrors.CodeCandidateNameEmpty, "ranked candidate name is required")
		}
		if !known[candidate] {
			return nil, apperrors.WithMetadata(apperrors.CodeBallotUnknownCandidate,
				"ranked candidate is not in the election", map[string]string{"candidate": candidate})
		}
		if seen[candidate] {
			return nil, apperrors.WithMetadata(apperrors.CodeBallotDuplicateCandidate,
				"candidate ranked more than once", map[string]string{"candidate": candidate})
		}
		if r.Rank <= 0 {
			return nil, apperrors.WithMetadata(apperrors.CodeBallotInvalidRank,
				"rank must be a positive integer", map[string]string{"candidate": candidate})
		}
		seen[candidate] = true
		out = append(out, event.Ranking{Candidate: candidate, Rank: r.Rank})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].Candidate < out[j].Candidate
	})
	return out, nil
}

// Equal reports whether two ranking lists are identical after normalization.
func Equal(a, b []event.Ranking) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
