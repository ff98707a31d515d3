package service

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
	"github.com/louisbranch/ballotbox/internal/voting/authz"
	"github.com/louisbranch/ballotbox/internal/voting/domain/election"
	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
	"github.com/louisbranch/ballotbox/internal/voting/token"
)

// ElectionView is the public projection of an election. Status is derived,
// never stored.
type ElectionView struct {
	Name           string          `json:"name"`
	OwnerName      string          `json:"owner_name"`
	SecretBallot   bool            `json:"secret_ballot"`
	Status         election.Status `json:"status"`
	AllowEdit      bool            `json:"allow_edit"`
	NoVotingBefore *time.Time      `json:"no_voting_before,omitempty"`
	NoVotingAfter  *time.Time      `json:"no_voting_after,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ElectionChanges carries the optional fields of an election update. Nil
// fields are left unchanged.
type ElectionChanges struct {
	SecretBallot   *bool
	NoVotingBefore *time.Time
	NoVotingAfter  *time.Time
}

func electionView(rec storage.ElectionRecord) ElectionView {
	return ElectionView{
		Name:           rec.Name,
		OwnerName:      rec.OwnerName,
		SecretBallot:   rec.SecretBallot,
		Status:         election.DeriveStatus(rec.AllowVote, rec.Launched),
		AllowEdit:      rec.AllowEdit,
		NoVotingBefore: rec.NoVotingBefore,
		NoVotingAfter:  rec.NoVotingAfter,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

// CreateElection creates a draft election owned by the caller.
func (s *Service) CreateElection(ctx context.Context, caller token.Identity, name string, secretBallot bool) error {
	callerRec, err := s.requirePermission(ctx, caller, authz.PermManageOwnElection)
	if err != nil {
		return err
	}
	name, err = election.NormalizeName(name)
	if err != nil {
		return err
	}
	if _, found, err := s.store.SearchElectionByName(ctx, name); err != nil {
		return err
	} else if found {
		return apperrors.WithMetadata(apperrors.CodeElectionNameTaken,
			"election name is taken", map[string]string{"name": name})
	}
	return s.append(ctx, callerRec.Name, event.TypeElectionCreated, event.ElectionCreated{
		Name:         name,
		OwnerName:    callerRec.Name,
		SecretBallot: secretBallot,
	})
}

// GetElection returns one election by name.
func (s *Service) GetElection(ctx context.Context, caller token.Identity, name string) (ElectionView, error) {
	if _, err := s.requireCaller(ctx, caller); err != nil {
		return ElectionView{}, err
	}
	rec, found, err := s.store.SearchElectionByName(ctx, name)
	if err != nil {
		return ElectionView{}, err
	}
	if !found {
		return ElectionView{}, storage.ErrNotFound
	}
	return electionView(rec), nil
}

// ListElections returns every election ordered by name.
func (s *Service) ListElections(ctx context.Context, caller token.Identity) ([]ElectionView, error) {
	if _, err := s.requireCaller(ctx, caller); err != nil {
		return nil, err
	}
	records, err := s.store.ListElections(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ElectionView, 0, len(records))
	for _, rec := range records {
		views = append(views, electionView(rec))
	}
	return views, nil
}

// ListCandidates returns the election's candidates ordered by name.
func (s *Service) ListCandidates(ctx context.Context, caller token.Identity, electionName string) ([]string, error) {
	if _, err := s.requireCaller(ctx, caller); err != nil {
		return nil, err
	}
	if _, err := s.findElection(ctx, electionName); err != nil {
		return nil, err
	}
	return s.store.ListCandidates(ctx, electionName)
}

// ListVoters returns the election's eligibility set ordered by name.
func (s *Service) ListVoters(ctx context.Context, caller token.Identity, electionName string) ([]string, error) {
	if _, err := s.requireCaller(ctx, caller); err != nil {
		return nil, err
	}
	if _, err := s.findElection(ctx, electionName); err != nil {
		return nil, err
	}
	return s.store.ListVotersForElection(ctx, electionName)
}

// UpdateElection changes the election's optional settings. Finalized
// elections are immutable; the secret-ballot flag is fixed once the election
// leaves draft.
func (s *Service) UpdateElection(ctx context.Context, caller token.Identity, name string, changes ElectionChanges) error {
	callerRec, rec, err := s.manageableElection(ctx, caller, name)
	if err != nil {
		return err
	}
	status := election.DeriveStatus(rec.AllowVote, rec.Launched)
	if status == election.StatusFinalized {
		return apperrors.New(apperrors.CodeElectionNotDraft, "finalized elections cannot be changed")
	}
	if changes.SecretBallot != nil && status != election.StatusDraft {
		return apperrors.New(apperrors.CodeElectionNotDraft, "ballot secrecy is fixed once the election launches")
	}
	if changes.SecretBallot == nil && changes.NoVotingBefore == nil && changes.NoVotingAfter == nil {
		return nil
	}
	return s.append(ctx, callerRec.Name, event.TypeElectionUpdated, event.ElectionUpdated{
		Name:           rec.Name,
		SecretBallot:   changes.SecretBallot,
		NoVotingBefore: changes.NoVotingBefore,
		NoVotingAfter:  changes.NoVotingAfter,
	})
}

// LaunchElection opens the election for voting. Only drafts can launch.
// The allowEdit flag fixes whether voters may revise cast ballots.
func (s *Service) LaunchElection(ctx context.Context, caller token.Identity, name string, allowEdit bool) error {
	callerRec, rec, err := s.manageableElection(ctx, caller, name)
	if err != nil {
		return err
	}
	if election.DeriveStatus(rec.AllowVote, rec.Launched) != election.StatusDraft {
		return apperrors.New(apperrors.CodeElectionNotDraft, "only a draft election can launch")
	}
	allowVote := true
	return s.append(ctx, callerRec.Name, event.TypeElectionUpdated, event.ElectionUpdated{
		Name:      rec.Name,
		AllowVote: &allowVote,
		AllowEdit: &allowEdit,
	})
}

// FinalizeElection permanently closes voting on a launched election.
func (s *Service) FinalizeElection(ctx context.Context, caller token.Identity, name string) error {
	callerRec, rec, err := s.manageableElection(ctx, caller, name)
	if err != nil {
		return err
	}
	if election.DeriveStatus(rec.AllowVote, rec.Launched) != election.StatusLaunched {
		return apperrors.New(apperrors.CodeElectionNotLaunched, "only a launched election can finalize")
	}
	allowVote := false
	return s.append(ctx, callerRec.Name, event.TypeElectionUpdated, event.ElectionUpdated{
		Name:      rec.Name,
		AllowVote: &allowVote,
	})
}

// DeleteElection removes the election with its candidates, eligibility
// entries, and ballots.
func (s *Service) DeleteElection(ctx context.Context, caller token.Identity, name string) error {
	callerRec, rec, err := s.manageableElection(ctx, caller, name)
	if err != nil {
		return err
	}
	return s.append(ctx, callerRec.Name, event.TypeElectionDeleted, event.ElectionDeleted{Name: rec.Name})
}

// AddCandidates adds candidates to a draft election. Candidates already on
// the ballot are rejected rather than silently deduplicated, since a
// duplicate usually signals a typo in the request.
func (s *Service) AddCandidates(ctx context.Context, caller token.Identity, electionName string, names []string) error {
	callerRec, rec, err := s.manageableElection(ctx, caller, electionName)
	if err != nil {
		return err
	}
	if election.DeriveStatus(rec.AllowVote, rec.Launched) != election.StatusDraft {
		return apperrors.New(apperrors.CodeElectionNotDraft, "candidates are fixed once the election launches")
	}
	names, err = election.NormalizeCandidates(names)
	if err != nil {
		return err
	}
	existing, err := s.store.ListCandidates(ctx, rec.Name)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(existing))
	for _, c := range existing {
		present[c] = true
	}
	for _, name := range names {
		if present[name] {
			return apperrors.WithMetadata(apperrors.CodeCandidateDuplicate,
				"candidate is already on the ballot", map[string]string{"candidate": name})
		}
	}
	return s.append(ctx, callerRec.Name, event.TypeCandidatesAdded, event.CandidatesAdded{
		ElectionName: rec.Name,
		Candidates:   names,
	})
}

// RemoveCandidates removes candidates from a draft election. Absent names
// are a no-op.
func (s *Service) RemoveCandidates(ctx context.Context, caller token.Identity, electionName string, names []string) error {
	callerRec, rec, err := s.manageableElection(ctx, caller, electionName)
	if err != nil {
		return err
	}
	if election.DeriveStatus(rec.AllowVote, rec.Launched) != election.StatusDraft {
		return apperrors.New(apperrors.CodeElectionNotDraft, "candidates are fixed once the election launches")
	}
	names, err = election.NormalizeCandidates(names)
	if err != nil {
		return err
	}
	return s.append(ctx, callerRec.Name, event.TypeCandidatesRemoved, event.CandidatesRemoved{
		ElectionName: rec.Name,
		Candidates:   names,
	})
}

// AddVoters adds registered users to a draft election's eligibility set.
func (s *Service) AddVoters(ctx context.Context, caller token.Identity, electionName string, names []string) error {
	callerRec, rec, err := s.manageableElection(ctx, caller, electionName)
	if err != nil {
		return err
	}
	if election.DeriveStatus(rec.AllowVote, rec.Launched) != election.StatusDraft {
		return apperrors.New(apperrors.CodeElectionNotDraft, "the eligibility set is fixed once the election launches")
	}
	names, err = election.NormalizeVoters(names)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := s.store.FindUserByName(ctx, name); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.WithMetadata(apperrors.CodeNotFound,
					"voter is not a registered user", map[string]string{"voter": name})
			}
			return err
		}
	}
	return s.append(ctx, callerRec.Name, event.TypeVotersAdded, event.VotersAdded{
		ElectionName: rec.Name,
		Voters:       names,
	})
}

// RemoveVoters removes users from a draft election's eligibility set.
func (s *Service) RemoveVoters(ctx context.Context, caller token.Identity, electionName string, names []string) error {
	callerRec, rec, err := s.manageableElection(ctx, caller, electionName)
	if err != nil {
		return err
	}
	if election.DeriveStatus(rec.AllowVote, rec.Launched) != election.StatusDraft {
		return apperrors.New(apperrors.CodeElectionNotDraft, "the eligibility set is fixed once the election launches")
	}
	names, err = election.NormalizeVoters(names)
	if err != nil {
		return err
	}
	return s.append(ctx, callerRec.Name, event.TypeVotersRemoved, event.VotersRemoved{
		ElectionName: rec.Name,
		Voters:       names,
	})
}

// findElection looks an election up by name, mapping absence to ErrNotFound.
func (s *Service) findElection(ctx context.Context, name string) (storage.ElectionRecord, error) {
	rec, found, err := s.store.SearchElectionByName(ctx, name)
	if err != nil {
		return storage.ElectionRecord{}, err
	}
	if !found {
		return storage.ElectionRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

// manageableElection resolves the caller and the election, and allows the
// operation for the election's owner or anyone holding the any-election
// permission.
func (s *Service) manageableElection(ctx context.Context, caller token.Identity, name string) (storage.UserRecord, storage.ElectionRecord, error) {
	callerRec, err := s.requireCaller(ctx, caller)
	if err != nil {
		return storage.UserRecord{}, storage.ElectionRecord{}, err
	}
	rec, err := s.findElection(ctx, name)
	if err != nil {
		return storage.UserRecord{}, storage.ElectionRecord{}, err
	}
	if rec.OwnerName == callerRec.Name && authz.HasPermission(callerRec.Role, authz.PermManageOwnElection) {
		return callerRec, rec, nil
	}
	if authz.HasPermission(callerRec.Role, authz.PermManageAnyElection) {
		return callerRec, rec, nil
	}
	return storage.UserRecord{}, storage.ElectionRecord{}, apperrors.New(apperrors.CodeForbidden,
		"only the election owner or an admin can manage this election")
}
