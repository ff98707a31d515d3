package projection

import (
	"context"

	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

func (a Applier) applyElectionCreated(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.ElectionCreated](env)
	if err != nil {
		return err
	}
	// Owner existence was validated by the service before the append; the
	// projection re-checks so a replayed journal surfaces inconsistencies.
	if _, err := a.Model.FindUserByName(ctx, payload.OwnerName); err != nil {
		return err
	}
	createdAt := ensureTimestamp(env.OccurredAt)
	return a.Model.PutElection(ctx, storage.ElectionRecord{
		Name:         payload.Name,
		OwnerName:    payload.OwnerName,
		SecretBallot: payload.SecretBallot,
		AllowVote:    false,
		AllowEdit:    false,
		Launched:     false,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	})
}

func (a Applier) applyElectionUpdated(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.ElectionUpdated](env)
	if err != nil {
		return err
	}
	rec, ok, err := a.Model.SearchElectionByName(ctx, payload.Name)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}

	if payload.SecretBallot != nil {
		rec.SecretBallot = *payload.SecretBallot
	}
	if payload.AllowVote != nil {
		rec.AllowVote = *payload.AllowVote
		if rec.AllowVote {
			rec.Launched = true
		}
	}
	if payload.AllowEdit != nil {
		rec.AllowEdit = *payload.AllowEdit
	}
	if payload.NoVotingBefore != nil {
		t := payload.NoVotingBefore.UTC()
		rec.NoVotingBefore = &t
	}
	if payload.NoVotingAfter != nil {
		t := payload.NoVotingAfter.UTC()
		rec.NoVotingAfter = &t
	}
	rec.UpdatedAt = ensureTimestamp(env.OccurredAt)
	return a.Model.PutElection(ctx, rec)
}

func (a Applier) applyElectionDeleted(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.ElectionDeleted](env)
	if err != nil {
		return err
	}
	return a.Model.DeleteElection(ctx, payload.Name)
}

func (a Applier) applyCandidatesAdded(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.CandidatesAdded](env)
	if err != nil {
		return err
	}
	return a.Model.AddCandidates(ctx, payload.ElectionName, payload.Candidates)
}

func (a Applier) applyCandidatesRemoved(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.CandidatesRemoved](env)
	if err != nil {
		return err
	}
	return a.Model.RemoveCandidates(ctx, payload.ElectionName, payload.Candidates)
}

func (a Applier) applyVotersAdded(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.VotersAdded](env)
	if err != nil {
		return err
	}
	return a.Model.AddVoters(ctx, payload.ElectionName, payload.Voters)
}

func (a Applier) applyVotersRemoved(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.VotersRemoved](env)
	if err != nil {
		return err
	}
	return a.Model.RemoveVoters(ctx, payload.ElectionName, payload.Voters)
}
