package event

import "time"

// Ranking is one (candidate, rank) pair inside a ballot payload.
// Lower rank means stronger preference; ties are permitted.
type Ranking struct {
	Candidate string `json:"candidate"`
	Rank      int    `json:"rank"`
}

// UserRegistered is the payload for TypeUserRegistered.
//
// Role is optional: when empty, the projection assigns OWNER to the first
// registrant and USER to everyone else.
type UserRegistered struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Salt  string `json:"salt"`
	Hash  string `json:"hash"`
	Role  string `json:"role,omitempty"`
}

// UserRoleChanged is the payload for TypeUserRoleChanged.
type UserRoleChanged struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// UserPasswordChanged is the payload for TypeUserPasswordChanged.
type UserPasswordChanged struct {
	Name string `json:"name"`
	Salt string `json:"salt"`
	Hash string `json:"hash"`
}

// UserEmailChanged is the payload for TypeUserEmailChanged.
type UserEmailChanged struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserNameChanged is the payload for TypeUserNameChanged. The projection cascades
// the rename across elections owned, eligibility entries, and ballots.
type UserNameChanged struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

// UserRemoved is the payload for TypeUserRemoved.
type UserRemoved struct {
	Name string `json:"name"`
}

// ElectionCreated is the payload for TypeElectionCreated.
type ElectionCreated struct {
	Name         string `json:"name"`
	OwnerName    string `json:"owner_name"`
	SecretBallot bool   `json:"secret_ballot"`
}

// ElectionUpdated is the payload for TypeElectionUpdated.
// Nil fields are left unchanged by the projection.
type ElectionUpdated struct {
	Name           string     `json:"name"`
	SecretBallot   *bool      `json:"secret_ballot,omitempty"`
	AllowVote      *bool      `json:"allow_vote,omitempty"`
	AllowEdit      *bool      `json:"allow_edit,omitempty"`
	NoVotingBefore *time.Time `json:"no_voting_before,omitempty"`
	NoVotingAfter  *time.Time `json:"no_voting_after,omitempty"`
}

// ElectionDeleted is the payload for TypeElectionDeleted.
type ElectionDeleted struct {
	Name string `json:"name"`
}

// CandidatesAdded is the payload for TypeCandidatesAdded.
type CandidatesAdded struct {
	ElectionName string   `json:"election_name"`
	Candidates   []string `json:"candidates"`
}

// CandidatesRemoved is the payload for TypeCandidatesRemoved.
type CandidatesRemoved struct {
	ElectionName string   `json:"election_name"`
	Candidates   []string `json:"candidates"`
}

// VotersAdded is the payload for TypeVotersAdded.
type VotersAdded struct {
	ElectionName string   `json:"election_name"`
	Voters       []string `json:"voters"`
}

// VotersRemoved is the payload for TypeVotersRemoved.
type VotersRemoved struct {
	ElectionName string   `json:"election_name"`
	Voters       []string `json:"voters"`
}

// BallotCast is the payload for TypeBallotCast.
type BallotCast struct {
	ElectionName string    `json:"election_name"`
	VoterName    string    `json:"voter_name"`
	Confirmation string    `json:"confirmation"`
	WhenCast     time.Time `json:"when_cast"`
	Rankings     []Ranking `json:"rankings"`
}

// BallotRankingsChanged is the payload for TypeBallotRankingsChanged.
// The ballot is identified by its stable confirmation.
type BallotRankingsChanged struct {
	Confirmation string    `json:"confirmation"`
	Rankings     []Ranking `json:"rankings"`
}

// BallotTimestampUpdated is the payload for TypeBallotTimestampUpdated.
type BallotTimestampUpdated struct {
	Confirmation string    `json:"confirmation"`
	WhenCast     time.Time `json:"when_cast"`
}
