// Package errors provides structured error handling for the voting service.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeMalformedRequest         Code = "MALFORMED_REQUEST"
	CodeUserNameEmpty            Code = "USER_NAME_EMPTY"
	CodeUserEmailEmpty           Code = "USER_EMAIL_EMPTY"
	CodeUserPasswordEmpty        Code = "USER_PASSWORD_EMPTY"
	CodeUserInvalidRole          Code = "USER_INVALID_ROLE"
	CodeElectionNameEmpty        Code = "ELECTION_NAME_EMPTY"
	CodeCandidateNameEmpty       Code = "CANDIDATE_NAME_EMPTY"
	CodeCandidateDuplicate       Code = "CANDIDATE_DUPLICATE"
	CodeVoterNameEmpty           Code = "VOTER_NAME_EMPTY"
	CodeBallotUnknownCandidate   Code = "BALLOT_UNKNOWN_CANDIDATE"
	CodeBallotDuplicateCandidate Code = "BALLOT_DUPLICATE_CANDIDATE"
	CodeBallotInvalidRank        Code = "BALLOT_INVALID_RANK"
	CodeBallotEmpty              Code = "BALLOT_EMPTY"

	// Lookup errors
	CodeNotFound Code = "NOT_FOUND"

	// Uniqueness errors
	CodeUserNameTaken     Code = "USER_NAME_TAKEN"
	CodeUserEmailTaken    Code = "USER_EMAIL_TAKEN"
	CodeElectionNameTaken Code = "ELECTION_NAME_TAKEN"

	// Authorization errors
	CodeForbidden      Code = "FORBIDDEN"
	CodeUnauthorized   Code = "UNAUTHORIZED"
	CodeTokenExpired   Code = "TOKEN_EXPIRED"
	CodeTokenInvalid   Code = "TOKEN_INVALID"
	CodeBadCredentials Code = "BAD_CREDENTIALS"

	// State machine errors
	CodeElectionNotDraft     Code = "ELECTION_NOT_DRAFT"
	CodeElectionNotLaunched  Code = "ELECTION_NOT_LAUNCHED"
	CodeElectionEditsClosed  Code = "ELECTION_EDITS_CLOSED"
	CodeElectionVotingClosed Code = "ELECTION_VOTING_CLOSED"
	CodeVoterNotEligible     Code = "VOTER_NOT_ELIGIBLE"
	CodeOwnerRemoval         Code = "OWNER_REMOVAL"

	// Storage errors
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeTimeout            Code = "TIMEOUT"

	// Invariant violations
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps domain codes to HTTP status codes for the REST surface.
func (c Code) HTTPStatus() int {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeMalformedRequest,
		CodeUserNameEmpty,
		CodeUserEmailEmpty,
		CodeUserPasswordEmpty,
		CodeUserInvalidRole,
		CodeElectionNameEmpty,
		CodeCandidateNameEmpty,
		CodeCandidateDuplicate,
		CodeVoterNameEmpty,
		CodeBallotUnknownCandidate,
		CodeBallotDuplicateCandidate,
		CodeBallotInvalidRank,
		CodeBallotEmpty:
		return http.StatusBadRequest

	case CodeNotFound:
		return http.StatusNotFound

	case CodeUserNameTaken,
		CodeUserEmailTaken,
		CodeElectionNameTaken:
		return http.StatusConflict

	case CodeForbidden:
		return http.StatusForbidden

	case CodeUnauthorized,
		CodeTokenExpired,
		CodeTokenInvalid,
		CodeBadCredentials:
		return http.StatusUnauthorized

	// Precondition failures - election state machine violations
	case CodeElectionNotDraft,
		CodeElectionNotLaunched,
		CodeElectionEditsClosed,
		CodeElectionVotingClosed,
		CodeVoterNotEligible,
		CodeOwnerRemoval:
		return http.StatusPreconditionFailed

	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable

	case CodeTimeout:
		return http.StatusGatewayTimeout

	case CodeInternal, CodeUnknown:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
