package dynamo

import (
	"reflect"
	"testing"
	"time"

	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/domain/user"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

func TestKeyLayout(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{userPK("alice"), "USER#alice"},
		{electionPK("lunch"), "ELECTION#lunch"},
		{candidateSK("Pizza"), "CANDIDATE#Pizza"},
		{eligibleSK("bob"), "ELIGIBLE#bob"},
		{ballotSK("bob"), "BALLOT#bob"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("key = %s, want %s", c.got, c.want)
		}
	}
}

func TestUserItemRoundTrip(t *testing.T) {
	rec := storage.UserRecord{
		Name:      "alice",
		Email:     "alice@example.com",
		Salt:      "salt",
		Hash:      "hash",
		Role:      user.RoleOwner,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	got := userFromItem(userToItem(rec))
	if !reflect.DeepEqual(got, rec) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, rec)
	}
}

func TestElectionItemRoundTripOptionalWindow(t *testing.T) {
	notAfter := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	rec := storage.ElectionRecord{
		Name:          "lunch",
		OwnerName:     "bob",
		SecretBallot:  true,
		AllowVote:     true,
		Launched:      true,
		NoVotingAfter: &notAfter,
		CreatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	got := electionFromItem(electionToItem(rec))
	if !reflect.DeepEqual(got, rec) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, rec)
	}
	if got.NoVotingBefore != nil {
		t.Fatal("absent window bound should stay nil")
	}
}

func TestBallotItemRoundTrip(t *testing.T) {
	rec := storage.BallotRecord{
		ElectionName: "lunch",
		VoterName:    "bob",
		Confirmation: "conf-1",
		WhenCast:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Rankings: []event.Ranking{
			{Candidate: "Pizza", Rank: 1},
			{Candidate: "Sushi", Rank: 2},
		},
	}
	got := ballotFromItem(ballotToItem(rec))
	if !reflect.DeepEqual(got, rec) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, rec)
	}

	item := ballotToItem(rec)
	if item.PK != "ELECTION#lunch" || item.SK != "BALLOT#bob" {
		t.Fatalf("unexpected keys: %s / %s", item.PK, item.SK)
	}
}

func TestChunkBounds(t *testing.T) {
	cases := []struct {
		n    int
		want [][2]int
	}{
		{0, nil},
		{1, [][2]int{{0, 1}}},
		{transactMaxItems, [][2]int{{0, 100}}},
		{transactMaxItems + 1, [][2]int{{0, 100}, {100, 101}}},
		{250, [][2]int{{0, 100}, {100, 200}, {200, 250}}},
	}
	for _, c := range cases {
		if got := chunkBounds(c.n); !reflect.DeepEqual(got, c.want) {
			t.Errorf("chunkBounds(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}

func TestMillisTruncation(t *testing.T) {
	precise := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	rec := storage.UserRecord{Name: "alice", CreatedAt: precise, UpdatedAt: precise}
	got := userFromItem(userToItem(rec))
	want := precise.Truncate(time.Millisecond)
	if !got.CreatedAt.Equal(want) {
		t.Fatalf("created_at = %s, want %s", got.CreatedAt, want)
	}
}
