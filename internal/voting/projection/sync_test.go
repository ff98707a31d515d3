package projection

import (
	"context"
	"reflect"
	"testing"

	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/storage/memory"
)

func appendEnvelope(t *testing.T, store *memory.Store, typ event.Type, payload any) event.Envelope {
	t.Helper()
	env := mustEnvelope(t, typ, payload)
	appended, err := store.AppendEvent(context.Background(), env)
	if err != nil {
		t.Fatalf("append %s: %v", typ, err)
	}
	return appended
}

func TestSyncAdvancesCursor(t *testing.T) {
	store := memory.New()
	sync := NewSynchronizer(store, store)
	ctx := context.Background()

	appendEnvelope(t, store, event.TypeUserRegistered, event.UserRegistered{Name: "alice", Email: "a@example.com"})
	appendEnvelope(t, store, event.TypeUserRegistered, event.UserRegistered{Name: "bob", Email: "b@example.com"})

	cursor, err := sync.Sync(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if cursor != 2 {
		t.Fatalf("cursor = %d, want 2", cursor)
	}

	stored, err := store.LastSynced(ctx)
	if err != nil {
		t.Fatalf("last synced: %v", err)
	}
	if stored != 2 {
		t.Fatalf("stored cursor = %d, want 2", stored)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	store := memory.New()
	sync := NewSynchronizer(store, store)
	ctx := context.Background()

	appendEnvelope(t, store, event.TypeUserRegistered, event.UserRegistered{Name: "alice", Email: "a@example.com"})

	if _, err := sync.Sync(ctx); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	usersAfterFirst, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}

	if _, err := sync.Sync(ctx); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	usersAfterSecond, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}

	if !reflect.DeepEqual(usersAfterFirst, usersAfterSecond) {
		t.Fatalf("state changed on re-sync: %v vs %v", usersAfterFirst, usersAfterSecond)
	}
	// Alice stays OWNER: the registration event was not re-applied on top
	// of a non-empty user table.
	if usersAfterSecond[0].Role != "OWNER" {
		t.Fatalf("role = %s, want OWNER", usersAfterSecond[0].Role)
	}
}

func TestSyncStopsAtFirstFailure(t *testing.T) {
	store := memory.New()
	sync := NewSynchronizer(store, store)
	ctx := context.Background()

	appendEnvelope(t, store, event.TypeUserRegistered, event.UserRegistered{Name: "alice", Email: "a@example.com"})
	// Role change for a user that does not exist fails to apply.
	appendEnvelope(t, store, event.TypeUserRoleChanged, event.UserRoleChanged{Name: "ghost", Role: "ADMIN"})
	appendEnvelope(t, store, event.TypeUserRegistered, event.UserRegistered{Name: "bob", Email: "b@example.com"})

	cursor, err := sync.Sync(ctx)
	if err == nil {
		t.Fatal("expected sync to fail on the broken event")
	}
	if cursor != 1 {
		t.Fatalf("cursor = %d, want 1 (last applied)", cursor)
	}
	stored, _ := store.LastSynced(ctx)
	if stored != 1 {
		t.Fatalf("stored cursor = %d, want 1", stored)
	}
}

func TestReplayFromZeroMatchesLiveState(t *testing.T) {
	live := memory.New()
	sync := NewSynchronizer(live, live)
	ctx := context.Background()

	yes := true
	appendEnvelope(t, live, event.TypeUserRegistered, event.UserRegistered{Name: "alice", Email: "a@example.com"})
	appendEnvelope(t, live, event.TypeUserRegistered, event.UserRegistered{Name: "bob", Email: "b@example.com"})
	appendEnvelope(t, live, event.TypeElectionCreated, event.ElectionCreated{Name: "langs", OwnerName: "alice", SecretBallot: true})
	appendEnvelope(t, live, event.TypeCandidatesAdded, event.CandidatesAdded{ElectionName: "langs", Candidates: []string{"Go", "Rust"}})
	appendEnvelope(t, live, event.TypeVotersAdded, event.VotersAdded{ElectionName: "langs", Voters: []string{"bob"}})
	appendEnvelope(t, live, event.TypeElectionUpdated, event.ElectionUpdated{Name: "langs", AllowVote: &yes})
	appendEnvelope(t, live, event.TypeBallotCast, event.BallotCast{
		ElectionName: "langs", VoterName: "bob", Confirmation: "conf-1", WhenCast: testStamp,
		Rankings: []event.Ranking{{Candidate: "Go", Rank: 1}, {Candidate: "Rust", Rank: 2}},
	})
	if _, err := sync.Sync(ctx); err != nil {
		t.Fatalf("live sync: %v", err)
	}

	// Stream the same journal into a fresh command model.
	replayed := memory.New()
	applier := Applier{Model: replayed}
	envelopes, err := live.EventsAfter(ctx, 0)
	if err != nil {
		t.Fatalf("events after 0: %v", err)
	}
	for _, env := range envelopes {
		if err := applier.Apply(ctx, env); err != nil {
			t.Fatalf("replay apply %d: %v", env.ID, err)
		}
	}

	liveUsers, _ := live.ListUsers(ctx)
	replayUsers, _ := replayed.ListUsers(ctx)
	if !reflect.DeepEqual(liveUsers, replayUsers) {
		t.Fatalf("users diverge:\nlive   %v\nreplay %v", liveUsers, replayUsers)
	}
	liveElections, _ := live.ListElections(ctx)
	replayElections, _ := replayed.ListElections(ctx)
	if !reflect.DeepEqual(liveElections, replayElections) {
		t.Fatalf("elections diverge:\nlive   %v\nreplay %v", liveElections, replayElections)
	}
	liveBallots, _ := live.ListBallots(ctx, "langs")
	replayBallots, _ := replayed.ListBallots(ctx, "langs")
	if !reflect.DeepEqual(liveBallots, replayBallots) {
		t.Fatalf("ballots diverge:\nlive   %v\nreplay %v", liveBallots, replayBallots)
	}
}
