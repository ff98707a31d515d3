// Package event defines the closed set of domain events that make up the
// voting service's append-only journal.
package event

import (
	"strings"
	"time"
)

// Type identifies the type of a domain event.
type Type string

// User lifecycle events.
const (
	// TypeUserRegistered records a new user registration.
	TypeUserRegistered Type = "user.registered"
	// TypeUserRoleChanged records a role assignment.
	TypeUserRoleChanged Type = "user.role_changed"
	// TypeUserPasswordChanged records a password change.
	TypeUserPasswordChanged Type = "user.password_changed"
	// TypeUserEmailChanged records an email change.
	TypeUserEmailChanged Type = "user.email_changed"
	// TypeUserNameChanged records a user name change.
	TypeUserNameChanged Type = "user.name_changed"
	// TypeUserRemoved records a user removal.
	TypeUserRemoved Type = "user.removed"
)

// Election lifecycle events.
const (
	// TypeElectionCreated records the creation of an election.
	TypeElectionCreated Type = "election.created"
	// TypeElectionUpdated records updates to election flags and windows.
	TypeElectionUpdated Type = "election.updated"
	// TypeElectionDeleted records the deletion of an election.
	TypeElectionDeleted Type = "election.deleted"
	// TypeCandidatesAdded records candidates added to an election.
	TypeCandidatesAdded Type = "election.candidates_added"
	// TypeCandidatesRemoved records candidates removed from an election.
	TypeCandidatesRemoved Type = "election.candidates_removed"
	// TypeVotersAdded records voters added to an election's eligibility set.
	TypeVotersAdded Type = "election.voters_added"
	// TypeVotersRemoved records voters removed from an election's eligibility set.
	TypeVotersRemoved Type = "election.voters_removed"
)

// Ballot events.
const (
	// TypeBallotCast records the first cast of a ballot.
	TypeBallotCast Type = "ballot.cast"
	// TypeBallotRankingsChanged records an edit to a ballot's rankings.
	TypeBallotRankingsChanged Type = "ballot.rankings_changed"
	// TypeBallotTimestampUpdated records a refresh of a ballot's cast time.
	TypeBallotTimestampUpdated Type = "ballot.timestamp_updated"
)

// Envelope wraps a serialized domain event with its journal metadata.
//
// ID is assigned by storage on append, starting at 1 with no gaps.
type Envelope struct {
	// ID is the monotonically increasing event id within the log.
	ID uint64
	// Authority is the principal responsible for the event.
	Authority string
	// OccurredAt is when the event occurred.
	OccurredAt time.Time
	// Type identifies the kind of event.
	Type Type
	// Payload holds event-specific data as JSON.
	Payload []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g., "user", "ballot").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}
