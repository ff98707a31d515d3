// Package storage defines the contracts shared by every voting backend.
//
// A backend is the triple {event log, command-side mutations, query reads}.
// The in-memory, SQLite, and DynamoDB implementations must be observationally
// indistinguishable through the Query interface given the same event history.
package storage

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/domain/user"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such entity"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// UserRecord captures the materialized user state read by queries.
type UserRecord struct {
	Name      string
	Email     string
	Salt      string
	Hash      string
	Role      user.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ElectionRecord captures the materialized election state.
//
// Launched is set once allowVote first becomes true; together with AllowVote
// it derives the draft/launched/finalized lifecycle.
type ElectionRecord struct {
	Name           string
	OwnerName      string
	SecretBallot   bool
	AllowVote      bool
	AllowEdit      bool
	Launched       bool
	NoVotingBefore *time.Time
	NoVotingAfter  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BallotRecord captures a cast ballot. Confirmation is the opaque stable
// identifier assigned at first cast and preserved across edits.
type BallotRecord struct {
	ElectionName string
	VoterName    string
	Confirmation string
	WhenCast     time.Time
	Rankings     []event.Ranking
}

// EventLog is the append-only, totally ordered, durable source of truth.
type EventLog interface {
	// AppendEvent atomically assigns the next event id (starting at 1),
	// persists the envelope, and returns it with the id set.
	AppendEvent(ctx context.Context, env event.Envelope) (event.Envelope, error)
	// EventsAfter returns all envelopes with id > cursor in ascending order.
	EventsAfter(ctx context.Context, cursor uint64) ([]event.Envelope, error)
	// CountEvents returns the total number of persisted events.
	CountEvents(ctx context.Context) (int, error)
}

// Mutations is the command-side write surface the projection applier uses.
// Each method is an absolute assignment or set operation so reapplying an
// event is harmless, and each cascading method is atomic per call.
type Mutations interface {
	// PutUser upserts a user by name.
	PutUser(ctx context.Context, rec UserRecord) error
	// RenameUser renames a user and cascades the new name across owned
	// elections, eligibility entries, and ballots.
	RenameUser(ctx context.Context, oldName, newName string) error
	// DeleteUser removes a user and cascades: owned elections (with their
	// candidates, eligibility, and ballots), the user's ballots, and the
	// user's eligibility entries.
	DeleteUser(ctx context.Context, name string) error

	// PutElection upserts an election by name.
	PutElection(ctx context.Context, rec ElectionRecord) error
	// DeleteElection removes an election and all candidate, eligibility,
	// and ballot rows keyed by it.
	DeleteElection(ctx context.Context, name string) error

	// AddCandidates unions names into the election's candidate set.
	AddCandidates(ctx context.Context, electionName string, names []string) error
	// RemoveCandidates subtracts names from the election's candidate set.
	RemoveCandidates(ctx context.Context, electionName string, names []string) error
	// AddVoters unions names into the election's eligibility set.
	AddVoters(ctx context.Context, electionName string, names []string) error
	// RemoveVoters subtracts names from the election's eligibility set.
	RemoveVoters(ctx context.Context, electionName string, names []string) error

	// PutBallot upserts a ballot by (election, voter).
	PutBallot(ctx context.Context, rec BallotRecord) error

	// SetLastSynced advances the applied-event cursor. Callers invoke it
	// only after the event's effect is durably stored.
	SetLastSynced(ctx context.Context, id uint64) error
}

// Query is the read-side natural-key interface. Find* methods fail with
// ErrNotFound when the entity is absent; Search* methods report absence
// through their bool return.
type Query interface {
	FindUserByName(ctx context.Context, name string) (UserRecord, error)
	SearchUserByEmail(ctx context.Context, email string) (UserRecord, bool, error)
	// ListUsers returns all users ordered by name.
	ListUsers(ctx context.Context) ([]UserRecord, error)
	UserCount(ctx context.Context) (int, error)

	SearchElectionByName(ctx context.Context, name string) (ElectionRecord, bool, error)
	// ListElections returns all elections ordered by name.
	ListElections(ctx context.Context) ([]ElectionRecord, error)
	ElectionCount(ctx context.Context) (int, error)

	// ListCandidates returns the election's candidates ordered by name.
	ListCandidates(ctx context.Context, electionName string) ([]string, error)
	CandidateCount(ctx context.Context) (int, error)

	// ListVotersForElection returns the eligibility set ordered by name.
	ListVotersForElection(ctx context.Context, electionName string) ([]string, error)
	VoterCount(ctx context.Context) (int, error)

	SearchBallot(ctx context.Context, electionName, voterName string) (BallotRecord, bool, error)
	SearchBallotByConfirmation(ctx context.Context, confirmation string) (BallotRecord, bool, error)
	// ListBallots returns the election's ballots ordered by voter name,
	// unredacted. Secret-ballot masking is viewer-dependent and applied
	// by the service, not by storage.
	ListBallots(ctx context.Context, electionName string) ([]BallotRecord, error)
	BallotCount(ctx context.Context) (int, error)

	// LastSynced returns the highest applied event id, 0 if none.
	LastSynced(ctx context.Context) (uint64, error)
}

// CommandModel combines the write surface with the reads the applier needs
// for read-modify-write effects.
type CommandModel interface {
	Mutations
	Query
}

// Store is one complete backend: event log, command model, and query model.
type Store interface {
	EventLog
	CommandModel
	Close() error
}
