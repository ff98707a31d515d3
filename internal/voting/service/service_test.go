package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/domain/user"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
	"github.com/louisbranch/ballotbox/internal/voting/storage/memory"
	"github.com/louisbranch/ballotbox/internal/voting/token"
)

type fixture struct {
	svc    *Service
	store  *memory.Store
	tokens *token.Issuer
	now    time.Time
	confs  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	issuer, err := token.NewIssuer(token.Config{
		SigningKey: []byte("fixture-key"),
		Issuer:     "ballotbox-test",
		Now:        clock,
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	f.store = memory.New()
	f.tokens = issuer
	f.svc, err = New(Config{
		Store:  f.store,
		Tokens: issuer,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    clock,
		NewConfirmation: func() string {
			f.confs++
			return fmt.Sprintf("conf-%d", f.confs)
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return f
}

func (f *fixture) register(t *testing.T, name string) token.Identity {
	t.Helper()
	pair, err := f.svc.Register(context.Background(), name, name+"@example.com", "pw-"+name)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	identity, err := f.tokens.Decode(pair.Access)
	if err != nil {
		t.Fatalf("decode %s token: %v", name, err)
	}
	return identity
}

// launchedElection registers the voters, creates the election, fills in
// candidates and eligibility, and launches it.
func (f *fixture) launchedElection(t *testing.T, owner token.Identity, name string, secret, allowEdit bool, candidates, voters []string) {
	t.Helper()
	ctx := context.Background()
	if err := f.svc.CreateElection(ctx, owner, name, secret); err != nil {
		t.Fatalf("create election: %v", err)
	}
	if err := f.svc.AddCandidates(ctx, owner, name, candidates); err != nil {
		t.Fatalf("add candidates: %v", err)
	}
	if err := f.svc.AddVoters(ctx, owner, name, voters); err != nil {
		t.Fatalf("add voters: %v", err)
	}
	if err := f.svc.LaunchElection(ctx, owner, name, allowEdit); err != nil {
		t.Fatalf("launch election: %v", err)
	}
}

func assertCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if got := apperrors.CodeOf(err); got != code {
		t.Fatalf("error code = %s, want %s (err: %v)", got, code, err)
	}
}

func TestRegisterFirstUserBecomesOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	aliceView, err := f.svc.GetUser(ctx, alice, "alice")
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}
	if aliceView.Role != user.RoleOwner {
		t.Fatalf("first registrant role = %s, want OWNER", aliceView.Role)
	}
	bobView, err := f.svc.GetUser(ctx, bob, "bob")
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	if bobView.Role != user.RoleUser {
		t.Fatalf("second registrant role = %s, want USER", bobView.Role)
	}
}

func TestRegisterUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	_, err := f.svc.Register(ctx, "alice", "other@example.com", "pw")
	assertCode(t, err, apperrors.CodeUserNameTaken)

	_, err = f.svc.Register(ctx, "alice2", "alice@example.com", "pw")
	assertCode(t, err, apperrors.CodeUserEmailTaken)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	pair, err := f.svc.Login(ctx, "alice", "pw-alice")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	identity, err := f.tokens.Decode(pair.Access)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if identity.UserName != "alice" || identity.Role != user.RoleOwner {
		t.Fatalf("identity = %+v", identity)
	}

	_, err = f.svc.Login(ctx, "alice", "wrong")
	assertCode(t, err, apperrors.CodeBadCredentials)
	_, err = f.svc.Login(ctx, "nobody", "pw")
	assertCode(t, err, apperrors.CodeBadCredentials)
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	f.register(t, "bob")

	pair, err := f.svc.Login(ctx, "bob", "pw-bob")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := f.svc.SetRole(ctx, alice, "bob", "ADMIN"); err != nil {
		t.Fatalf("set role: %v", err)
	}

	f.now = f.now.Add(time.Minute)
	rotated, err := f.svc.Refresh(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	identity, err := f.tokens.Decode(rotated.Access)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if identity.Role != user.RoleAdmin {
		t.Fatalf("refreshed role = %s, want ADMIN", identity.Role)
	}
}

func TestSetRoleRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice") // OWNER
	bob := f.register(t, "bob")
	f.register(t, "carol")

	// Regular users cannot manage roles.
	assertCode(t, f.svc.SetRole(ctx, bob, "carol", "ADMIN"), apperrors.CodeForbidden)

	// The OWNER role cannot be granted.
	assertCode(t, f.svc.SetRole(ctx, alice, "bob", "OWNER"), apperrors.CodeUserInvalidRole)
	// Nor revoked.
	assertCode(t, f.svc.SetRole(ctx, alice, "alice", "USER"), apperrors.CodeForbidden)

	if err := f.svc.SetRole(ctx, alice, "bob", "ADMIN"); err != nil {
		t.Fatalf("promote bob: %v", err)
	}
	// Admins cannot demote other admins; only the owner can.
	if err := f.svc.SetRole(ctx, alice, "carol", "ADMIN"); err != nil {
		t.Fatalf("promote carol: %v", err)
	}
	bobAdmin := token.Identity{UserName: "bob", Role: user.RoleAdmin}
	assertCode(t, f.svc.SetRole(ctx, bobAdmin, "carol", "USER"), apperrors.CodeForbidden)
	if err := f.svc.SetRole(ctx, alice, "carol", "USER"); err != nil {
		t.Fatalf("owner demotes carol: %v", err)
	}
}

func TestSetUserNameCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")
	bob := f.register(t, "bob")

	f.launchedElection(t, bob, "lunch", false, true, []string{"Pizza", "Sushi"}, []string{"bob"})
	if _, err := f.svc.CastBallot(ctx, bob, "lunch", []event.Ranking{{Candidate: "Pizza", Rank: 1}}); err != nil {
		t.Fatalf("cast: %v", err)
	}

	pair, err := f.svc.SetUserName(ctx, bob, "bob", "robert")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	robert, err := f.tokens.Decode(pair.Access)
	if err != nil {
		t.Fatalf("decode fresh token: %v", err)
	}
	if robert.UserName != "robert" {
		t.Fatalf("fresh token names %s, want robert", robert.UserName)
	}

	view, err := f.svc.GetElection(ctx, robert, "lunch")
	if err != nil {
		t.Fatalf("get election: %v", err)
	}
	if view.OwnerName != "robert" {
		t.Fatalf("election owner = %s, want robert", view.OwnerName)
	}
	b, err := f.svc.GetBallot(ctx, robert, "lunch", "robert")
	if err != nil {
		t.Fatalf("get ballot: %v", err)
	}
	if b.VoterName != "robert" {
		t.Fatalf("ballot voter = %s, want robert", b.VoterName)
	}
}

func TestRemoveUserCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")

	f.launchedElection(t, bob, "lunch", false, true, []string{"Pizza", "Sushi"}, []string{"bob", "carol"})
	if _, err := f.svc.CastBallot(ctx, carol, "lunch", []event.Ranking{{Candidate: "Sushi", Rank: 1}}); err != nil {
		t.Fatalf("cast: %v", err)
	}

	// Removing bob deletes the election he owns, ballots included.
	if err := f.svc.RemoveUser(ctx, alice, "bob"); err != nil {
		t.Fatalf("remove bob: %v", err)
	}
	_, err := f.svc.GetElection(ctx, carol, "lunch")
	assertCode(t, err, apperrors.CodeNotFound)

	count, err := f.store.BallotCount(ctx)
	if err != nil {
		t.Fatalf("ballot count: %v", err)
	}
	if count != 0 {
		t.Fatalf("ballot count = %d after cascade, want 0", count)
	}
}

func TestRemoveOwnerBlocked(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	assertCode(t, f.svc.RemoveUser(context.Background(), alice, "alice"), apperrors.CodeOwnerRemoval)
}

func TestElectionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	if err := f.svc.CreateElection(ctx, bob, "lunch", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	assertCode(t, f.svc.CreateElection(ctx, alice, "lunch", false), apperrors.CodeElectionNameTaken)

	view, err := f.svc.GetElection(ctx, bob, "lunch")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Status != "DRAFT" {
		t.Fatalf("status = %s, want DRAFT", view.Status)
	}

	if err := f.svc.AddCandidates(ctx, bob, "lunch", []string{"Pizza", "Sushi"}); err != nil {
		t.Fatalf("add candidates: %v", err)
	}
	assertCode(t, f.svc.AddCandidates(ctx, bob, "lunch", []string{"Pizza"}), apperrors.CodeCandidateDuplicate)

	if err := f.svc.AddVoters(ctx, bob, "lunch", []string{"bob"}); err != nil {
		t.Fatalf("add voters: %v", err)
	}
	assertCode(t, f.svc.AddVoters(ctx, bob, "lunch", []string{"ghost"}), apperrors.CodeNotFound)

	if err := f.svc.LaunchElection(ctx, bob, "lunch", false); err != nil {
		t.Fatalf("launch: %v", err)
	}
	assertCode(t, f.svc.LaunchElection(ctx, bob, "lunch", false), apperrors.CodeElectionNotDraft)
	assertCode(t, f.svc.AddCandidates(ctx, bob, "lunch", []string{"Tacos"}), apperrors.CodeElectionNotDraft)
	assertCode(t, f.svc.AddVoters(ctx, bob, "lunch", []string{"alice"}), apperrors.CodeElectionNotDraft)
	assertCode(t, f.svc.RemoveVoters(ctx, bob, "lunch", []string{"bob"}), apperrors.CodeElectionNotDraft)

	if err := f.svc.FinalizeElection(ctx, bob, "lunch"); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	view, err = f.svc.GetElection(ctx, bob, "lunch")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Status != "FINALIZED" {
		t.Fatalf("status = %s, want FINALIZED", view.Status)
	}
	assertCode(t, f.svc.FinalizeElection(ctx, bob, "lunch"), apperrors.CodeElectionNotLaunched)
}

func TestElectionManagementAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice") // OWNER can manage any election
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")

	if err := f.svc.CreateElection(ctx, bob, "lunch", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	assertCode(t, f.svc.AddCandidates(ctx, carol, "lunch", []string{"Pizza"}), apperrors.CodeForbidden)
	if err := f.svc.AddCandidates(ctx, alice, "lunch", []string{"Pizza"}); err != nil {
		t.Fatalf("admin-side add: %v", err)
	}
}

// A rejected command must leave the journal untouched.
func TestRejectedCastLeavesStorageUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.register(t, "bob")
	if err := f.svc.CreateElection(ctx, bob, "lunch", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.AddCandidates(ctx, bob, "lunch", []string{"Pizza"}); err != nil {
		t.Fatalf("add candidates: %v", err)
	}
	before, err := f.store.CountEvents(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}

	// Still a draft: the cast must fail with a precondition error.
	_, err = f.svc.CastBallot(ctx, bob, "lunch", []event.Ranking{{Candidate: "Pizza", Rank: 1}})
	assertCode(t, err, apperrors.CodeElectionNotLaunched)

	after, err := f.store.CountEvents(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if after != before {
		t.Fatalf("event count changed %d -> %d on a rejected command", before, after)
	}
}

func TestCastBallotEligibilityAndWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")
	f.launchedElection(t, bob, "lunch", false, false, []string{"Pizza", "Sushi"}, []string{"bob"})

	_, err := f.svc.CastBallot(ctx, carol, "lunch", []event.Ranking{{Candidate: "Pizza", Rank: 1}})
	assertCode(t, err, apperrors.CodeVoterNotEligible)

	// Close the window and the eligible voter is shut out too.
	after := f.now.Add(-time.Hour)
	if err := f.svc.UpdateElection(ctx, bob, "lunch", ElectionChanges{NoVotingAfter: &after}); err != nil {
		t.Fatalf("update: %v", err)
	}
	_, err = f.svc.CastBallot(ctx, bob, "lunch", []event.Ranking{{Candidate: "Pizza", Rank: 1}})
	assertCode(t, err, apperrors.CodeElectionVotingClosed)
}

func TestCastBallotEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.register(t, "bob")
	f.launchedElection(t, bob, "lunch", false, true, []string{"Pizza", "Sushi"}, []string{"bob"})

	first, err := f.svc.CastBallot(ctx, bob, "lunch", []event.Ranking{{Candidate: "Pizza", Rank: 1}})
	if err != nil {
		t.Fatalf("cast: %v", err)
	}
	if first.Confirmation == "" {
		t.Fatal("expected a confirmation on first cast")
	}

	f.now = f.now.Add(time.Hour)
	second, err := f.svc.CastBallot(ctx, bob, "lunch", []event.Ranking{{Candidate: "Sushi", Rank: 1}})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if second.Confirmation != first.Confirmation {
		t.Fatalf("confirmation changed %s -> %s across edit", first.Confirmation, second.Confirmation)
	}
	if !second.WhenCast.After(first.WhenCast) {
		t.Fatalf("cast time not refreshed: %s -> %s", first.WhenCast, second.WhenCast)
	}
	if second.Rankings[0].Candidate != "Sushi" {
		t.Fatalf("rankings not updated: %v", second.Rankings)
	}
}

func TestCastBallotEditsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.register(t, "bob")
	f.launchedElection(t, bob, "lunch", false, false, []string{"Pizza", "Sushi"}, []string{"bob"})

	if _, err := f.svc.CastBallot(ctx, bob, "lunch", []event.Ranking{{Candidate: "Pizza", Rank: 1}}); err != nil {
		t.Fatalf("cast: %v", err)
	}
	_, err := f.svc.CastBallot(ctx, bob, "lunch", []event.Ranking{{Candidate: "Sushi", Rank: 1}})
	assertCode(t, err, apperrors.CodeElectionEditsClosed)
}

func TestSecretBallotRedaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice") // OWNER: ballot-any privileged
	bob := f.register(t, "bob")     // election owner
	carol := f.register(t, "carol")
	dave := f.register(t, "dave")
	f.launchedElection(t, bob, "lunch", true, false, []string{"Pizza", "Sushi"}, []string{"carol", "dave"})

	if _, err := f.svc.CastBallot(ctx, carol, "lunch", []event.Ranking{{Candidate: "Pizza", Rank: 1}}); err != nil {
		t.Fatalf("cast: %v", err)
	}

	// Another voter sees the rankings but not the identity.
	views, err := f.svc.ListBallots(ctx, dave, "lunch")
	if err != nil {
		t.Fatalf("list as dave: %v", err)
	}
	if len(views) != 1 || views[0].VoterName != "" || views[0].Confirmation != "" {
		t.Fatalf("expected redacted ballot, got %+v", views)
	}
	if len(views[0].Rankings) != 1 {
		t.Fatalf("rankings should stay visible, got %+v", views[0])
	}

	// The voter, the election owner, and ballot-any holders see identity.
	for _, viewer := range []token.Identity{carol, bob, alice} {
		views, err := f.svc.ListBallots(ctx, viewer, "lunch")
		if err != nil {
			t.Fatalf("list as %s: %v", viewer.UserName, err)
		}
		if views[0].VoterName != "carol" {
			t.Fatalf("viewer %s: voter = %q, want carol", viewer.UserName, views[0].VoterName)
		}
	}

	// Direct lookup by another voter is refused outright.
	_, err = f.svc.GetBallot(ctx, dave, "lunch", "carol")
	assertCode(t, err, apperrors.CodeForbidden)

	// The confirmation receipt is a bearer secret.
	b, err := f.svc.GetBallotByConfirmation(ctx, dave, "conf-1")
	if err != nil {
		t.Fatalf("get by confirmation: %v", err)
	}
	if b.VoterName != "carol" {
		t.Fatalf("receipt lookup voter = %s, want carol", b.VoterName)
	}
}

func TestTallyEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")
	dave := f.register(t, "dave")
	f.launchedElection(t, bob, "fruit", false, false,
		[]string{"Apple", "Banana", "Cherry"}, []string{"bob", "carol", "dave"})

	cast := func(id token.Identity, ranked ...string) {
		t.Helper()
		var rankings []event.Ranking
		for i, c := range ranked {
			rankings = append(rankings, event.Ranking{Candidate: c, Rank: i + 1})
		}
		if _, err := f.svc.CastBallot(ctx, id, "fruit", rankings); err != nil {
			t.Fatalf("cast for %s: %v", id.UserName, err)
		}
	}
	cast(bob, "Apple", "Banana", "Cherry")
	cast(carol, "Apple", "Cherry", "Banana")
	cast(dave, "Banana", "Apple", "Cherry")

	if err := f.svc.FinalizeElection(ctx, bob, "fruit"); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	result, err := f.svc.TallyElection(ctx, dave, "fruit")
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if !reflect.DeepEqual(result.Places[0].Candidates, []string{"Apple"}) {
		t.Fatalf("winner = %v, want Apple", result.Places[0])
	}
}

func TestTallyDraftRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.register(t, "bob")
	if err := f.svc.CreateElection(ctx, bob, "lunch", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := f.svc.TallyElection(ctx, bob, "lunch")
	assertCode(t, err, apperrors.CodeElectionNotLaunched)
}

func TestAdminTables(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	_, err := f.svc.ListTables(ctx, bob)
	assertCode(t, err, apperrors.CodeForbidden)

	names, err := f.svc.ListTables(ctx, alice)
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if !reflect.DeepEqual(names, storage.TableNames()) {
		t.Fatalf("tables = %v", names)
	}
	table, err := f.svc.TableData(ctx, alice, storage.TableUsers)
	if err != nil {
		t.Fatalf("table data: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("users table rows = %d, want 2", len(table.Rows))
	}
}

func TestRevokedCallerUnauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	if err := f.svc.RemoveUser(ctx, alice, "bob"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Bob still holds a syntactically valid token, but he no longer exists.
	_, err := f.svc.ListElections(ctx, bob)
	if !errors.Is(err, apperrors.New(apperrors.CodeUnauthorized, "")) {
		t.Fatalf("expected CodeUnauthorized, got %v", err)
	}
}
