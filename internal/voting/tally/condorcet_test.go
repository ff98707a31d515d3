package tally

import (
	"reflect"
	"testing"

	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
)

func rankings(pairs ...any) []event.Ranking {
	var out []event.Ranking
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, event.Ranking{Candidate: pairs[i].(string), Rank: pairs[i+1].(int)})
	}
	return out
}

func TestTallyCondorcetWinner(t *testing.T) {
	// Spec scenario: Apple beats Banana 2-1 and Cherry 3-0; Banana beats Cherry 2-1.
	candidates := []string{"Apple", "Banana", "Cherry"}
	ballots := [][]event.Ranking{
		rankings("Apple", 1, "Banana", 2, "Cherry", 3),
		rankings("Apple", 1, "Cherry", 2, "Banana", 3),
		rankings("Banana", 1, "Apple", 2, "Cherry", 3),
	}

	result := Tally(candidates, ballots)

	want := []Place{
		{Rank: 1, Candidates: []string{"Apple"}},
		{Rank: 2, Candidates: []string{"Banana"}},
		{Rank: 3, Candidates: []string{"Cherry"}},
	}
	if !reflect.DeepEqual(result.Places, want) {
		t.Fatalf("places = %v, want %v", result.Places, want)
	}
	if result.Pairwise["Apple"]["Banana"] != 2 || result.Pairwise["Banana"]["Apple"] != 1 {
		t.Fatalf("unexpected pairwise counts: %v", result.Pairwise)
	}
}

func TestTallyCycleSharesFirstPlace(t *testing.T) {
	// Rock-paper-scissors cycle: the Smith set is all three.
	candidates := []string{"A", "B", "C"}
	ballots := [][]event.Ranking{
		rankings("A", 1, "B", 2, "C", 3),
		rankings("B", 1, "C", 2, "A", 3),
		rankings("C", 1, "A", 2, "B", 3),
	}

	result := Tally(candidates, ballots)

	if len(result.Places) != 1 {
		t.Fatalf("places = %v, want a single shared rank", result.Places)
	}
	if result.Places[0].Rank != 1 || !reflect.DeepEqual(result.Places[0].Candidates, []string{"A", "B", "C"}) {
		t.Fatalf("unexpected first place: %v", result.Places[0])
	}
}

func TestTallyAbsentCandidatesRankLast(t *testing.T) {
	// D is never ranked: every ranked candidate beats it, and it loses to all.
	candidates := []string{"A", "B", "D"}
	ballots := [][]event.Ranking{
		rankings("A", 1, "B", 2),
		rankings("A", 1, "B", 2),
	}

	result := Tally(candidates, ballots)

	last := result.Places[len(result.Places)-1]
	if !reflect.DeepEqual(last.Candidates, []string{"D"}) {
		t.Fatalf("expected D last, got %v", result.Places)
	}
	if result.Pairwise["A"]["D"] != 2 || result.Pairwise["D"]["A"] != 0 {
		t.Fatalf("unexpected pairwise vs absent candidate: %v", result.Pairwise)
	}
}

func TestTallyTiedRanksWithinBallot(t *testing.T) {
	// Two ballots tie A and B at rank 1; neither gains a pairwise edge.
	candidates := []string{"A", "B"}
	ballots := [][]event.Ranking{
		rankings("A", 1, "B", 1),
		rankings("A", 1, "B", 1),
	}

	result := Tally(candidates, ballots)

	if len(result.Places) != 1 || result.Places[0].Rank != 1 {
		t.Fatalf("expected shared rank 1, got %v", result.Places)
	}
	if !reflect.DeepEqual(result.Places[0].Candidates, []string{"A", "B"}) {
		t.Fatalf("unexpected tied candidates: %v", result.Places[0].Candidates)
	}
}

func TestTallyDenseRanking(t *testing.T) {
	// A wins; B and C cycle with D... construct: B,C,D tie pairwise below A.
	candidates := []string{"A", "B", "C"}
	ballots := [][]event.Ranking{
		rankings("A", 1, "B", 2, "C", 2),
		rankings("A", 1, "B", 2, "C", 2),
	}

	result := Tally(candidates, ballots)

	want := []Place{
		{Rank: 1, Candidates: []string{"A"}},
		{Rank: 2, Candidates: []string{"B", "C"}},
	}
	if !reflect.DeepEqual(result.Places, want) {
		t.Fatalf("places = %v, want %v", result.Places, want)
	}
}

func TestTallyIdempotent(t *testing.T) {
	candidates := []string{"Apple", "Banana", "Cherry"}
	ballots := [][]event.Ranking{
		rankings("Apple", 1, "Banana", 2, "Cherry", 3),
		rankings("Banana", 1, "Apple", 2),
	}

	first := Tally(candidates, ballots)
	second := Tally(candidates, ballots)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("tally is not deterministic:\nfirst  %v\nsecond %v", first, second)
	}
}

func TestTallyNoBallots(t *testing.T) {
	result := Tally([]string{"A", "B"}, nil)
	if len(result.Places) != 1 {
		t.Fatalf("expected all candidates tied, got %v", result.Places)
	}
	if !reflect.DeepEqual(result.Places[0].Candidates, []string{"A", "B"}) {
		t.Fatalf("unexpected candidates: %v", result.Places[0].Candidates)
	}
}

func TestTallyNoCandidates(t *testing.T) {
	result := Tally(nil, nil)
	if len(result.Places) != 0 {
		t.Fatalf("expected no places, got %v", result.Places)
	}
}
