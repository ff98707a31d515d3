// Package memory provides the in-memory backend. State is lost on restart;
// it exists for tests and for running the service without external storage.
package memory

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

// Store implements storage.Store with maps keyed by natural keys and a
// single slice for the event log. One mutex serializes all mutation,
// which also serializes event id assignment.
type Store struct {
	mu sync.RWMutex

	events     []event.Envelope
	users      map[string]storage.UserRecord
	elections  map[string]storage.ElectionRecord
	candidates map[string]map[string]bool // election -> candidate set
	voters     map[string]map[string]bool // election -> eligibility set
	ballots    map[ballotKey]storage.BallotRecord
	lastSynced uint64
}

type ballotKey struct {
	election string
	voter    string
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		users:      make(map[string]storage.UserRecord),
		elections:  make(map[string]storage.ElectionRecord),
		candidates: make(map[string]map[string]bool),
		voters:     make(map[string]map[string]bool),
		ballots:    make(map[ballotKey]storage.BallotRecord),
	}
}

// Close satisfies storage.Store. The in-memory store holds no resources.
func (s *Store) Close() error {
	return nil
}

// AppendEvent assigns the next event id under the store mutex.
func (s *Store) AppendEvent(ctx context.Context, env event.Envelope) (event.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return event.Envelope{}, err
	}
	if err := event.ValidateForAppend(env); err != nil {
		return event.Envelope{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	env.ID = uint64(len(s.events)) + 1
	env.OccurredAt = env.OccurredAt.UTC()
	s.events = append(s.events, env)
	return env, nil
}

// EventsAfter returns envelopes with id > cursor in ascending id order.
func (s *Store) EventsAfter(ctx context.Context, cursor uint64) ([]event.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cursor >= uint64(len(s.events)) {
		return nil, nil
	}
	tail := s.events[cursor:]
	out := make([]event.Envelope, len(tail))
	copy(out, tail)
	return out, nil
}

// CountEvents returns the total number of appended events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

// Mutations

func (s *Store) PutUser(ctx context.Context, rec storage.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[rec.Name] = cloneUser(rec)
	return nil
}

func (s *Store) RenameUser(ctx context.Context, oldName, newName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[oldName]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.users, oldName)
	rec.Name = newName
	s.users[newName] = rec

	for name, e := range s.elections {
		if e.OwnerName == oldName {
			e.OwnerName = newName
			s.elections[name] = e
		}
	}
	for _, set := range s.voters {
		if set[oldName] {
			delete(set, oldName)
			set[newName] = true
		}
	}
	for key, b := range s.ballots {
		if key.voter == oldName {
			delete(s.ballots, key)
			b.VoterName = newName
			s.ballots[ballotKey{election: key.election, voter: newName}] = b
		}
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, name)

	for electionName, e := range s.elections {
		if e.OwnerName == name {
			s.deleteElectionLocked(electionName)
		}
	}
	for _, set := range s.voters {
		delete(set, name)
	}
	for key := range s.ballots {
		if key.voter == name {
			delete(s.ballots, key)
		}
	}
	return nil
}

func (s *Store) PutElection(ctx context.Context, rec storage.ElectionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elections[rec.Name] = cloneElection(rec)
	return nil
}

func (s *Store) DeleteElection(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteElectionLocked(name)
	return nil
}

func (s *Store) deleteElectionLocked(name string) {
	delete(s.elections, name)
	delete(s.candidates, name)
	delete(s.voters, name)
	for key := range s.ballots {
		if key.election == name {
			delete(s.ballots, key)
		}
	}
}

func (s *Store) AddCandidates(ctx context.Context, electionName string, names []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.candidates[electionName]
	if set == nil {
		set = make(map[string]bool)
		s.candidates[electionName] = set
	}
	for _, n := range names {
		set[n] = true
	}
	return nil
}

func (s *Store) RemoveCandidates(ctx context.Context, electionName string, names []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.candidates[electionName]
	for _, n := range names {
		delete(set, n)
	}
	return nil
}

func (s *Store) AddVoters(ctx context.Context, electionName string, names []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.voters[electionName]
	if set == nil {
		set = make(map[string]bool)
		s.voters[electionName] = set
	}
	for _, n := range names {
		set[n] = true
	}
	return nil
}

func (s *Store) RemoveVoters(ctx context.Context, electionName string, names []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.voters[electionName]
	for _, n := range names {
		delete(set, n)
	}
	return nil
}

func (s *Store) PutBallot(ctx context.Context, rec storage.BallotRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ballots[ballotKey{election: rec.ElectionName, voter: rec.VoterName}] = cloneBallot(rec)
	return nil
}

func (s *Store) SetLastSynced(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < s.lastSynced {
		return apperrors.New(apperrors.CodeInternal, "sync cursor moved backward")
	}
	s.lastSynced = id
	return nil
}

// Query

func (s *Store) FindUserByName(ctx context.Context, name string) (storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[name]
	if !ok {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	return cloneUser(rec), nil
}

func (s *Store) SearchUserByEmail(ctx context.Context, email string) (storage.UserRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserRecord{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.users {
		if rec.Email == email {
			return cloneUser(rec), true, nil
		}
	}
	return storage.UserRecord{}, false, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.UserRecord, 0, len(s.users))
	for _, rec := range s.users {
		out = append(out, cloneUser(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UserCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *Store) SearchElectionByName(ctx context.Context, name string) (storage.ElectionRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return storage.ElectionRecord{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.elections[name]
	if !ok {
		return storage.ElectionRecord{}, false, nil
	}
	return cloneElection(rec), true, nil
}

func (s *Store) ListElections(ctx context.Context) ([]storage.ElectionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.ElectionRecord, 0, len(s.elections))
	for _, rec := range s.elections {
		out = append(out, cloneElection(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ElectionCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elections), nil
}

func (s *Store) ListCandidates(ctx context.Context, electionName string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedSet(s.candidates[electionName]), nil
}

func (s *Store) CandidateCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, set := range s.candidates {
		count += len(set)
	}
	return count, nil
}

func (s *Store) ListVotersForElection(ctx context.Context, electionName string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedSet(s.voters[electionName]), nil
}

func (s *Store) VoterCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, set := range s.voters {
		count += len(set)
	}
	return count, nil
}

func (s *Store) SearchBallot(ctx context.Context, electionName, voterName string) (storage.BallotRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return storage.BallotRecord{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.ballots[ballotKey{election: electionName, voter: voterName}]
	if !ok {
		return storage.BallotRecord{}, false, nil
	}
	return cloneBallot(rec), true, nil
}

func (s *Store) SearchBallotByConfirmation(ctx context.Context, confirmation string) (storage.BallotRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return storage.BallotRecord{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.ballots {
		if rec.Confirmation == confirmation {
			return cloneBallot(rec), true, nil
		}
	}
	return storage.BallotRecord{}, false, nil
}

func (s *Store) ListBallots(ctx context.Context, electionName string) ([]storage.BallotRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []storage.BallotRecord
	for key, rec := range s.ballots {
		if key.election == electionName {
			out = append(out, cloneBallot(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VoterName < out[j].VoterName })
	return out, nil
}

func (s *Store) BallotCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ballots), nil
}

func (s *Store) LastSynced(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSynced, nil
}

func sortedSet(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func cloneUser(rec storage.UserRecord) storage.UserRecord {
	return rec
}

func cloneElection(rec storage.ElectionRecord) storage.ElectionRecord {
	if rec.NoVotingBefore != nil {
		t := *rec.NoVotingBefore
		rec.NoVotingBefore = &t
	}
	if rec.NoVotingAfter != nil {
		t := *rec.NoVotingAfter
		rec.NoVotingAfter = &t
	}
	return rec
}

func cloneBallot(rec storage.BallotRecord) storage.BallotRecord {
	if rec.Rankings != nil {
		rankings := make([]event.Ranking, len(rec.Rankings))
		copy(rankings, rec.Rankings)
		rec.Rankings = rankings
	}
	return rec
}
