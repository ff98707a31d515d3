package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

func TestAppendEventAssignsGapFreeIDs(t *testing.T) {
	store := New()
	ctx := context.Background()
	stamp := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		env, err := store.AppendEvent(ctx, event.Envelope{
			Authority:  "alice",
			OccurredAt: stamp,
			Type:       event.TypeUserRegistered,
			Payload:    []byte(`{"name":"alice"}`),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if env.ID != uint64(i) {
			t.Fatalf("event id = %d, want %d", env.ID, i)
		}
	}

	count, err := store.CountEvents(ctx)
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestAppendEventConcurrentIDsUnique(t *testing.T) {
	store := New()
	ctx := context.Background()

	const appends = 50
	ids := make(chan uint64, appends)
	var wg sync.WaitGroup
	for i := 0; i < appends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env, err := store.AppendEvent(ctx, event.Envelope{
				Authority: "system",
				Type:      event.TypeUserRegistered,
				Payload:   []byte(`{}`),
			})
			if err != nil {
				t.Errorf("append: %v", err)
				return
			}
			ids <- env.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool, appends)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate event id %d", id)
		}
		seen[id] = true
	}
	for i := uint64(1); i <= appends; i++ {
		if !seen[i] {
			t.Fatalf("missing event id %d", i)
		}
	}
}

func TestEventsAfterReturnsAscendingTail(t *testing.T) {
	store := New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := store.AppendEvent(ctx, event.Envelope{
			Authority: "system",
			Type:      event.TypeUserRegistered,
			Payload:   []byte(`{}`),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	tail, err := store.EventsAfter(ctx, 2)
	if err != nil {
		t.Fatalf("events after: %v", err)
	}
	if len(tail) != 3 {
		t.Fatalf("tail length = %d, want 3", len(tail))
	}
	for i, env := range tail {
		if env.ID != uint64(3+i) {
			t.Fatalf("tail[%d].ID = %d, want %d", i, env.ID, 3+i)
		}
	}

	empty, err := store.EventsAfter(ctx, 10)
	if err != nil {
		t.Fatalf("events after end: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty tail, got %d", len(empty))
	}
}

func TestDeleteUserCascades(t *testing.T) {
	store := New()
	ctx := context.Background()

	seedUser(t, store, "alice")
	seedUser(t, store, "bob")
	if err := store.PutElection(ctx, storage.ElectionRecord{Name: "langs", OwnerName: "alice"}); err != nil {
		t.Fatalf("put election: %v", err)
	}
	if err := store.AddCandidates(ctx, "langs", []string{"Go", "Rust"}); err != nil {
		t.Fatalf("add candidates: %v", err)
	}
	if err := store.AddVoters(ctx, "langs", []string{"bob"}); err != nil {
		t.Fatalf("add voters: %v", err)
	}
	if err := store.PutBallot(ctx, storage.BallotRecord{
		ElectionName: "langs", VoterName: "bob", Confirmation: "c1",
		Rankings: []event.Ranking{{Candidate: "Go", Rank: 1}},
	}); err != nil {
		t.Fatalf("put ballot: %v", err)
	}

	if err := store.DeleteUser(ctx, "alice"); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	if _, ok, _ := store.SearchElectionByName(ctx, "langs"); ok {
		t.Fatal("expected owned election to be deleted")
	}
	candidates, _ := store.ListCandidates(ctx, "langs")
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %v", candidates)
	}
	ballots, _ := store.ListBallots(ctx, "langs")
	if len(ballots) != 0 {
		t.Fatalf("expected no ballots, got %d", len(ballots))
	}
	if count, _ := store.BallotCount(ctx); count != 0 {
		t.Fatalf("ballot count = %d, want 0", count)
	}
}

func TestRenameUserCascades(t *testing.T) {
	store := New()
	ctx := context.Background()

	seedUser(t, store, "bob")
	seedUser(t, store, "alice")
	if err := store.PutElection(ctx, storage.ElectionRecord{Name: "langs", OwnerName: "bob"}); err != nil {
		t.Fatalf("put election: %v", err)
	}
	if err := store.AddVoters(ctx, "langs", []string{"bob"}); err != nil {
		t.Fatalf("add voters: %v", err)
	}
	if err := store.PutBallot(ctx, storage.BallotRecord{
		ElectionName: "langs", VoterName: "bob", Confirmation: "c1",
	}); err != nil {
		t.Fatalf("put ballot: %v", err)
	}

	if err := store.RenameUser(ctx, "bob", "robert"); err != nil {
		t.Fatalf("rename user: %v", err)
	}

	if _, err := store.FindUserByName(ctx, "bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected old name gone, got %v", err)
	}
	if _, err := store.FindUserByName(ctx, "robert"); err != nil {
		t.Fatalf("find renamed user: %v", err)
	}
	e, ok, _ := store.SearchElectionByName(ctx, "langs")
	if !ok || e.OwnerName != "robert" {
		t.Fatalf("expected owner renamed, got %+v", e)
	}
	voters, _ := store.ListVotersForElection(ctx, "langs")
	if len(voters) != 1 || voters[0] != "robert" {
		t.Fatalf("expected renamed voter, got %v", voters)
	}
	if _, ok, _ := store.SearchBallot(ctx, "langs", "robert"); !ok {
		t.Fatal("expected ballot under new voter name")
	}
}

func TestSetLastSyncedRejectsBackwardMove(t *testing.T) {
	store := New()
	ctx := context.Background()
	if err := store.SetLastSynced(ctx, 5); err != nil {
		t.Fatalf("set last synced: %v", err)
	}
	if err := store.SetLastSynced(ctx, 3); err == nil {
		t.Fatal("expected error moving cursor backward")
	}
	cursor, err := store.LastSynced(ctx)
	if err != nil {
		t.Fatalf("last synced: %v", err)
	}
	if cursor != 5 {
		t.Fatalf("cursor = %d, want 5", cursor)
	}
}

func seedUser(t *testing.T, store *Store, name string) {
	t.Helper()
	if err := store.PutUser(context.Background(), storage.UserRecord{
		Name:  name,
		Email: name + "@example.com",
	}); err != nil {
		t.Fatalf("put user %s: %v", name, err)
	}
}
