package event

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
)

func TestDecodePayloadRoundTrip(t *testing.T) {
	payload := BallotCast{
		ElectionName: "best-language",
		VoterName:    "bob",
		Confirmation: "2PzQ8sXn",
		WhenCast:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Rankings: []Ranking{
			{Candidate: "Kotlin", Rank: 1},
			{Candidate: "Rust", Rank: 2},
			{Candidate: "Go", Rank: 3},
		},
	}
	data, err := EncodePayload(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	decoded, err := DecodePayload(Envelope{Type: TypeBallotCast, Payload: data})
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	cast, ok := decoded.(*BallotCast)
	if !ok {
		t.Fatalf("decoded payload has type %T", decoded)
	}
	if cast.VoterName != "bob" || len(cast.Rankings) != 3 {
		t.Fatalf("unexpected decoded payload: %+v", cast)
	}
	if cast.Rankings[0] != (Ranking{Candidate: "Kotlin", Rank: 1}) {
		t.Fatalf("unexpected first ranking: %+v", cast.Rankings[0])
	}
}

func TestDecodePayloadUnknownTypeFails(t *testing.T) {
	_, err := DecodePayload(Envelope{ID: 7, Type: "user.promoted", Payload: []byte(`{}`)})
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
	if !errors.Is(err, apperrors.New(apperrors.CodeInternal, "")) {
		t.Fatalf("expected CodeInternal, got %v", err)
	}
}

func TestValidateForAppend(t *testing.T) {
	valid := Envelope{
		Authority: "alice",
		Type:      TypeUserRegistered,
		Payload:   []byte(`{"name":"alice"}`),
	}
	if err := ValidateForAppend(valid); err != nil {
		t.Fatalf("validate valid envelope: %v", err)
	}

	cases := []struct {
		name string
		env  Envelope
	}{
		{"missing type", Envelope{Authority: "alice", Payload: []byte(`{}`)}},
		{"unknown type", Envelope{Authority: "alice", Type: "user.banned", Payload: []byte(`{}`)}},
		{"missing authority", Envelope{Type: TypeUserRegistered, Payload: []byte(`{}`)}},
		{"invalid payload", Envelope{Authority: "alice", Type: TypeUserRegistered, Payload: []byte(`{`)}},
	}
	for _, tc := range cases {
		if err := ValidateForAppend(tc.env); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

// The journal is language-independent: serialized tags are a wire contract
// and must not drift with Go identifier renames.
func TestWireTagsAreStable(t *testing.T) {
	tags := map[Type]string{
		TypeUserRegistered:         "user.registered",
		TypeUserRoleChanged:        "user.role_changed",
		TypeUserPasswordChanged:    "user.password_changed",
		TypeUserEmailChanged:       "user.email_changed",
		TypeUserNameChanged:        "user.name_changed",
		TypeUserRemoved:            "user.removed",
		TypeElectionCreated:        "election.created",
		TypeElectionUpdated:        "election.updated",
		TypeElectionDeleted:        "election.deleted",
		TypeCandidatesAdded:        "election.candidates_added",
		TypeCandidatesRemoved:      "election.candidates_removed",
		TypeVotersAdded:            "election.voters_added",
		TypeVotersRemoved:          "election.voters_removed",
		TypeBallotCast:             "ballot.cast",
		TypeBallotRankingsChanged:  "ballot.rankings_changed",
		TypeBallotTimestampUpdated: "ballot.timestamp_updated",
	}
	for typ, want := range tags {
		if string(typ) != want {
			t.Errorf("tag = %q, want %q", typ, want)
		}
	}
}

func TestKnownTypesCoversClosedSet(t *testing.T) {
	types := KnownTypes()
	if len(types) != 16 {
		t.Fatalf("expected 16 event types, got %d", len(types))
	}
	for _, typ := range types {
		if !IsKnown(typ) {
			t.Errorf("type %s not reported as known", typ)
		}
		if typ.Domain() != "user" && typ.Domain() != "election" && typ.Domain() != "ballot" {
			t.Errorf("unexpected domain %q for type %s", typ.Domain(), typ)
		}
	}
}
