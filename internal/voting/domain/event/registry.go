package event

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
)

// payloadPrototypes maps each event type to a factory for its payload struct.
// The set is closed: a serialized event with a tag outside this map is a
// corruption signal, not a skippable record.
var payloadPrototypes = map[Type]func() any{
	TypeUserRegistered:         func() any { return &UserRegistered{} },
	TypeUserRoleChanged:        func() any { return &UserRoleChanged{} },
	TypeUserPasswordChanged:    func() any { return &UserPasswordChanged{} },
	TypeUserEmailChanged:       func() any { return &UserEmailChanged{} },
	TypeUserNameChanged:        func() any { return &UserNameChanged{} },
	TypeUserRemoved:            func() any { return &UserRemoved{} },
	TypeElectionCreated:        func() any { return &ElectionCreated{} },
	TypeElectionUpdated:        func() any { return &ElectionUpdated{} },
	TypeElectionDeleted:        func() any { return &ElectionDeleted{} },
	TypeCandidatesAdded:        func() any { return &CandidatesAdded{} },
	TypeCandidatesRemoved:      func() any { return &CandidatesRemoved{} },
	TypeVotersAdded:            func() any { return &VotersAdded{} },
	TypeVotersRemoved:          func() any { return &VotersRemoved{} },
	TypeBallotCast:             func() any { return &BallotCast{} },
	TypeBallotRankingsChanged:  func() any { return &BallotRankingsChanged{} },
	TypeBallotTimestampUpdated: func() any { return &BallotTimestampUpdated{} },
}

// KnownTypes returns every registered event type.
func KnownTypes() []Type {
	types := make([]Type, 0, len(payloadPrototypes))
	for t := range payloadPrototypes {
		types = append(types, t)
	}
	return types
}

// IsKnown reports whether the type belongs to the closed event set.
func IsKnown(t Type) bool {
	_, ok := payloadPrototypes[t]
	return ok
}

// DecodePayload unmarshals the envelope payload into its registered struct.
// An unknown tag fails with CodeInternal rather than being silently skipped.
func DecodePayload(env Envelope) (any, error) {
	proto, ok := payloadPrototypes[env.Type]
	if !ok {
		return nil, apperrors.New(apperrors.CodeInternal,
			fmt.Sprintf("unknown event type %q at event %d", env.Type, env.ID))
	}
	payload := proto()
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal,
			fmt.Sprintf("decode %s payload at event %d", env.Type, env.ID), err)
	}
	return payload, nil
}

// EncodePayload marshals a payload struct for storage in an envelope.
func EncodePayload(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "encode event payload", err)
	}
	return data, nil
}

// ValidateForAppend checks an envelope before it enters the journal.
func ValidateForAppend(env Envelope) error {
	if !env.Type.IsValid() {
		return apperrors.New(apperrors.CodeInternal, "event type is required")
	}
	if !IsKnown(env.Type) {
		return apperrors.New(apperrors.CodeInternal,
			fmt.Sprintf("unknown event type %q", env.Type))
	}
	if env.Authority == "" {
		return apperrors.New(apperrors.CodeInternal, "event authority is required")
	}
	if !json.Valid(env.Payload) {
		return apperrors.New(apperrors.CodeInternal, "event payload is not valid JSON")
	}
	return nil
}
