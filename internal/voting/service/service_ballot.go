package service

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
	"github.com/louisbranch/ballotbox/internal/voting/authz"
	"github.com/louisbranch/ballotbox/internal/voting/domain/ballot"
	"github.com/louisbranch/ballotbox/internal/voting/domain/election"
	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
	"github.com/louisbranch/ballotbox/internal/voting/tally"
	"github.com/louisbranch/ballotbox/internal/voting/token"
)

// BallotView is the viewer-dependent projection of a ballot. On secret
// elections the voter name and confirmation are blanked for viewers who are
// neither the voter, the election owner, nor ballot-any privileged.
type BallotView struct {
	ElectionName string          `json:"election_name"`
	VoterName    string          `json:"voter_name"`
	Confirmation string          `json:"confirmation"`
	WhenCast     time.Time       `json:"when_cast"`
	Rankings     []event.Ranking `json:"rankings"`
}

// CastBallot casts or revises the caller's ballot. The first cast assigns a
// stable confirmation; revisions require the election's allowEdit flag and
// keep the confirmation while refreshing the cast time.
func (s *Service) CastBallot(ctx context.Context, caller token.Identity, electionName string, rankings []event.Ranking) (BallotView, error) {
	callerRec, err := s.requirePermission(ctx, caller, authz.PermVote)
	if err != nil {
		return BallotView{}, err
	}
	rec, err := s.findElection(ctx, electionName)
	if err != nil {
		return BallotView{}, err
	}
	if election.DeriveStatus(rec.AllowVote, rec.Launched) != election.StatusLaunched {
		return BallotView{}, apperrors.New(apperrors.CodeElectionNotLaunched, "election is not open for voting")
	}
	now := s.now().UTC()
	if !election.VotingWindowOpen(now, rec.NoVotingBefore, rec.NoVotingAfter) {
		return BallotView{}, apperrors.New(apperrors.CodeElectionVotingClosed, "outside the voting window")
	}

	voters, err := s.store.ListVotersForElection(ctx, rec.Name)
	if err != nil {
		return BallotView{}, err
	}
	eligible := false
	for _, v := range voters {
		if v == callerRec.Name {
			eligible = true
			break
		}
	}
	if !eligible {
		return BallotView{}, apperrors.New(apperrors.CodeVoterNotEligible, "caller is not an eligible voter")
	}

	candidates, err := s.store.ListCandidates(ctx, rec.Name)
	if err != nil {
		return BallotView{}, err
	}
	rankings, err = ballot.NormalizeRankings(rankings, candidates)
	if err != nil {
		return BallotView{}, err
	}

	existing, found, err := s.store.SearchBallot(ctx, rec.Name, callerRec.Name)
	if err != nil {
		return BallotView{}, err
	}
	if !found {
		confirmation := s.newConfirmation()
		err = s.append(ctx, callerRec.Name, event.TypeBallotCast, event.BallotCast{
			ElectionName: rec.Name,
			VoterName:    callerRec.Name,
			Confirmation: confirmation,
			WhenCast:     now,
			Rankings:     rankings,
		})
		if err != nil {
			return BallotView{}, err
		}
		return BallotView{
			ElectionName: rec.Name,
			VoterName:    callerRec.Name,
			Confirmation: confirmation,
			WhenCast:     now,
			Rankings:     rankings,
		}, nil
	}

	if !rec.AllowEdit {
		return BallotView{}, apperrors.New(apperrors.CodeElectionEditsClosed, "ballot edits are closed for this election")
	}
	if !ballot.Equal(existing.Rankings, rankings) {
		err = s.append(ctx, callerRec.Name, event.TypeBallotRankingsChanged, event.BallotRankingsChanged{
			Confirmation: existing.Confirmation,
			Rankings:     rankings,
		})
		if err != nil {
			return BallotView{}, err
		}
	}
	err = s.append(ctx, callerRec.Name, event.TypeBallotTimestampUpdated, event.BallotTimestampUpdated{
		Confirmation: existing.Confirmation,
		WhenCast:     now,
	})
	if err != nil {
		return BallotView{}, err
	}
	return BallotView{
		ElectionName: rec.Name,
		VoterName:    callerRec.Name,
		Confirmation: existing.Confirmation,
		WhenCast:     now,
		Rankings:     rankings,
	}, nil
}

// GetBallot returns one ballot by election and voter. On secret elections
// only the voter, the election owner, and ballot-any privileged callers may
// see it at all.
func (s *Service) GetBallot(ctx context.Context, caller token.Identity, electionName, voterName string) (BallotView, error) {
	callerRec, err := s.requireCaller(ctx, caller)
	if err != nil {
		return BallotView{}, err
	}
	rec, err := s.findElection(ctx, electionName)
	if err != nil {
		return BallotView{}, err
	}
	b, found, err := s.store.SearchBallot(ctx, rec.Name, voterName)
	if err != nil {
		return BallotView{}, err
	}
	if !found {
		return BallotView{}, storage.ErrNotFound
	}
	if rec.SecretBallot && !s.canSeeIdentity(callerRec, rec, b) {
		return BallotView{}, apperrors.New(apperrors.CodeForbidden, "ballots in this election are secret")
	}
	return ballotView(b), nil
}

// GetBallotByConfirmation returns the ballot behind a confirmation receipt.
// The receipt is a bearer secret: whoever presents it may see the ballot.
func (s *Service) GetBallotByConfirmation(ctx context.Context, caller token.Identity, confirmation string) (BallotView, error) {
	if _, err := s.requireCaller(ctx, caller); err != nil {
		return BallotView{}, err
	}
	b, found, err := s.store.SearchBallotByConfirmation(ctx, confirmation)
	if err != nil {
		return BallotView{}, err
	}
	if !found {
		return BallotView{}, storage.ErrNotFound
	}
	return ballotView(b), nil
}

// ListBallots returns the election's ballots. On secret elections, rows the
// caller is not privileged to attribute have voter name and confirmation
// blanked; the rankings stay visible so any voter can audit the tally.
func (s *Service) ListBallots(ctx context.Context, caller token.Identity, electionName string) ([]BallotView, error) {
	callerRec, err := s.requireCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	rec, err := s.findElection(ctx, electionName)
	if err != nil {
		return nil, err
	}
	ballots, err := s.store.ListBallots(ctx, rec.Name)
	if err != nil {
		return nil, err
	}
	views := make([]BallotView, 0, len(ballots))
	for _, b := range ballots {
		view := ballotView(b)
		if rec.SecretBallot && !s.canSeeIdentity(callerRec, rec, b) {
			view.VoterName = ""
			view.Confirmation = ""
		}
		views = append(views, view)
	}
	return views, nil
}

// TallyElection computes the Condorcet result over every cast ballot. Draft
// elections have nothing to tally.
func (s *Service) TallyElection(ctx context.Context, caller token.Identity, electionName string) (tally.Result, error) {
	if _, err := s.requirePermission(ctx, caller, authz.PermViewTally); err != nil {
		return tally.Result{}, err
	}
	rec, err := s.findElection(ctx, electionName)
	if err != nil {
		return tally.Result{}, err
	}
	if election.DeriveStatus(rec.AllowVote, rec.Launched) == election.StatusDraft {
		return tally.Result{}, apperrors.New(apperrors.CodeElectionNotLaunched, "election has not launched")
	}
	candidates, err := s.store.ListCandidates(ctx, rec.Name)
	if err != nil {
		return tally.Result{}, err
	}
	ballots, err := s.store.ListBallots(ctx, rec.Name)
	if err != nil {
		return tally.Result{}, err
	}
	rankings := make([][]event.Ranking, 0, len(ballots))
	for _, b := range ballots {
		rankings = append(rankings, b.Rankings)
	}
	return tally.Tally(candidates, rankings), nil
}

func ballotView(b storage.BallotRecord) BallotView {
	return BallotView{
		ElectionName: b.ElectionName,
		VoterName:    b.VoterName,
		Confirmation: b.Confirmation,
		WhenCast:     b.WhenCast,
		Rankings:     b.Rankings,
	}
}

// canSeeIdentity reports whether the caller may attribute a secret ballot:
// the voter themselves, the election owner, or anyone holding the ballot-any
// permission.
func (s *Service) canSeeIdentity(callerRec storage.UserRecord, rec storage.ElectionRecord, b storage.BallotRecord) bool {
	if callerRec.Name == b.VoterName {
		return true
	}
	if callerRec.Name == rec.OwnerName {
		return true
	}
	return authz.HasPermission(callerRec.Role, authz.PermViewBallotAny)
}
