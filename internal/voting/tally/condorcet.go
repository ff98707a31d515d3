// Package tally computes Condorcet results over ranked ballots.
//
// Lower rank means stronger preference. Candidates absent from a ballot are
// treated as tied behind every ranked candidate. When no candidate beats all
// others, the Smith set (the smallest set whose members beat everyone
// outside it) shares first place, and the remainder is ranked by recursing
// on the same procedure.
package tally

import (
	"sort"

	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
)

// Place is one row of the result: the candidates sharing a dense rank.
type Place struct {
	Rank       int      `json:"rank"`
	Candidates []string `json:"candidates"`
}

// Result is the full tally output.
type Result struct {
	// Places lists candidates in ascending rank; ties share a rank and
	// the next rank is previous+1 (dense ranking).
	Places []Place `json:"places"`
	// Pairwise[a][b] counts ballots preferring a over b.
	Pairwise map[string]map[string]int `json:"pairwise"`
}

// unrankedPosition sits behind every expressible rank so absent candidates
// lose every pairwise comparison against ranked ones and tie each other.
const unrankedPosition = int(^uint(0) >> 1)

// Tally computes the Condorcet result for the candidate set over the ballots.
func Tally(candidates []string, ballots [][]event.Ranking) Result {
	names := make([]string, len(candidates))
	copy(names, candidates)
	sort.Strings(names)

	pairwise := pairwiseCounts(names, ballots)
	result := Result{Pairwise: pairwise}

	remaining := names
	rank := 1
	for len(remaining) > 0 {
		smith := smithSet(remaining, pairwise)
		result.Places = append(result.Places, Place{Rank: rank, Candidates: smith})
		remaining = subtract(remaining, smith)
		rank++
	}
	return result
}

func pairwiseCounts(candidates []string, ballots [][]event.Ranking) map[string]map[string]int {
	counts := make(map[string]map[string]int, len(candidates))
	for _, a := range candidates {
		counts[a] = make(map[string]int, len(candidates)-1)
		for _, b := range candidates {
			if a != b {
				counts[a][b] = 0
			}
		}
	}

	for _, ballot := range ballots {
		positions := make(map[string]int, len(ballot))
		for _, r := range ballot {
			positions[r.Candidate] = r.Rank
		}
		for _, a := range candidates {
			for _, b := range candidates {
				if a == b {
					continue
				}
				if position(positions, a) < position(positions, b) {
					counts[a][b]++
				}
			}
		}
	}
	return counts
}

func position(positions map[string]int, candidate string) int {
	if rank, ok := positions[candidate]; ok {
		return rank
	}
	return unrankedPosition
}

// beats reports whether a pairwise-beats b.
func beats(pairwise map[string]map[string]int, a, b string) bool {
	return pairwise[a][b] > pairwise[b][a]
}

// smithSet returns the smallest non-empty set S within candidates such that
// every member of S beats every candidate outside S. Seeded with the
// Copeland maximizers (all of which belong to the Smith set) and closed by
// pulling in any outsider some member fails to beat.
func smithSet(candidates []string, pairwise map[string]map[string]int) []string {
	if len(candidates) == 0 {
		return nil
	}

	copeland := make(map[string]int, len(candidates))
	best := candidates[0]
	for _, a := range candidates {
		score := 0
		for _, b := range candidates {
			if a == b {
				continue
			}
			if beats(pairwise, a, b) {
				score++
			}
			if beats(pairwise, b, a) {
				score--
			}
		}
		copeland[a] = score
		if score > copeland[best] {
			best = a
		}
	}

	in := make(map[string]bool, len(candidates))
	for _, a := range candidates {
		if copeland[a] == copeland[best] {
			in[a] = true
		}
	}

	for changed := true; changed; {
		changed = false
		for _, outsider := range candidates {
			if in[outsider] {
				continue
			}
			for _, member := range candidates {
				if !in[member] {
					continue
				}
				if !beats(pairwise, member, outsider) {
					in[outsider] = true
					changed = true
					break
				}
			}
		}
	}

	smith := make([]string, 0, len(in))
	for _, a := range candidates {
		if in[a] {
			smith = append(smith, a)
		}
	}
	sort.Strings(smith)
	return smith
}

func subtract(candidates, removed []string) []string {
	drop := make(map[string]bool, len(removed))
	for _, r := range removed {
		drop[r] = true
	}
	var out []string
	for _, c := range candidates {
		if !drop[c] {
			out = append(out, c)
		}
	}
	return out
}
