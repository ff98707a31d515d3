package projection

import (
	"context"

	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

func (a Applier) applyBallotCast(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.BallotCast](env)
	if err != nil {
		return err
	}
	rec := storage.BallotRecord{
		ElectionName: payload.ElectionName,
		VoterName:    payload.VoterName,
		Confirmation: payload.Confirmation,
		WhenCast:     ensureTimestamp(payload.WhenCast),
		Rankings:     payload.Rankings,
	}
	// The first cast stamps whenCast and the confirmation; both survive a
	// re-applied cast for the same (election, voter).
	if existing, ok, err := a.Model.SearchBallot(ctx, payload.ElectionName, payload.VoterName); err != nil {
		return err
	} else if ok {
		rec.Confirmation = existing.Confirmation
		rec.WhenCast = existing.WhenCast
	}
	return a.Model.PutBallot(ctx, rec)
}

func (a Applier) applyBallotRankingsChanged(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.BallotRankingsChanged](env)
	if err != nil {
		return err
	}
	rec, ok, err := a.Model.SearchBallotByConfirmation(ctx, payload.Confirmation)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}
	rec.Rankings = payload.Rankings
	return a.Model.PutBallot(ctx, rec)
}

func (a Applier) applyBallotTimestampUpdated(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.BallotTimestampUpdated](env)
	if err != nil {
		return err
	}
	rec, ok, err := a.Model.SearchBallotByConfirmation(ctx, payload.Confirmation)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}
	rec.WhenCast = ensureTimestamp(payload.WhenCast)
	return a.Model.PutBallot(ctx, rec)
}
