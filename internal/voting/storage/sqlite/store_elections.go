package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

const electionColumns = `name, owner_name, secret_ballot, allow_vote, allow_edit,
	launched, no_voting_before, no_voting_after, created_at, updated_at`

// PutElection upserts an election record by name.
func (s *Store) PutElection(ctx context.Context, rec storage.ElectionRecord) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO elections (name, owner_name, secret_ballot, allow_vote, allow_edit,
		     launched, no_voting_before, no_voting_after, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		     owner_name = excluded.owner_name,
		     secret_ballot = excluded.secret_ballot,
		     allow_vote = excluded.allow_vote,
		     allow_edit = excluded.allow_edit,
		     launched = excluded.launched,
		     no_voting_before = excluded.no_voting_before,
		     no_voting_after = excluded.no_voting_after,
		     created_at = excluded.created_at,
		     updated_at = excluded.updated_at`,
		rec.Name, rec.OwnerName, rec.SecretBallot, rec.AllowVote, rec.AllowEdit,
		rec.Launched, toNullMillis(rec.NoVotingBefore), toNullMillis(rec.NoVotingAfter),
		toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put election: %w", err)
	}
	return nil
}

// DeleteElection removes an election. The foreign keys cascade candidate,
// eligibility, and ballot rows.
func (s *Store) DeleteElection(ctx context.Context, name string) error {
	res, err := s.sqlDB.ExecContext(ctx, "DELETE FROM elections WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete election: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete election rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AddCandidates unions names into the election's candidate set.
func (s *Store) AddCandidates(ctx context.Context, electionName string, names []string) error {
	return s.insertSetMembers(ctx, "candidates", "candidate_name", electionName, names)
}

// RemoveCandidates subtracts names from the election's candidate set.
func (s *Store) RemoveCandidates(ctx context.Context, electionName string, names []string) error {
	return s.deleteSetMembers(ctx, "candidates", "candidate_name", electionName, names)
}

// AddVoters unions names into the election's eligibility set.
func (s *Store) AddVoters(ctx context.Context, electionName string, names []string) error {
	return s.insertSetMembers(ctx, "eligible_voters", "voter_name", electionName, names)
}

// RemoveVoters subtracts names from the election's eligibility set. Ballots
// already cast by removed voters stand.
func (s *Store) RemoveVoters(ctx context.Context, electionName string, names []string) error {
	return s.deleteSetMembers(ctx, "eligible_voters", "voter_name", electionName, names)
}

// insertSetMembers inserts membership rows in one transaction, ignoring rows
// already present so event replay stays idempotent.
func (s *Store) insertSetMembers(ctx context.Context, table, column, electionName string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (election_name, %s) VALUES (?, ?)", table, column)
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, query, electionName, name); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (s *Store) deleteSetMembers(ctx context.Context, table, column, electionName string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	args := make([]any, 0, len(names)+1)
	args = append(args, electionName)
	for _, name := range names {
		args = append(args, name)
	}
	query := fmt.Sprintf(
		"DELETE FROM %s WHERE election_name = ? AND %s IN (%s)", table, column, placeholders)
	if _, err := s.sqlDB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

func scanElection(row interface{ Scan(dest ...any) error }) (storage.ElectionRecord, error) {
	var (
		rec       storage.ElectionRecord
		notBefore sql.NullInt64
		notAfter  sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&rec.Name, &rec.OwnerName, &rec.SecretBallot, &rec.AllowVote,
		&rec.AllowEdit, &rec.Launched, &notBefore, &notAfter, &createdAt, &updatedAt)
	if err != nil {
		return storage.ElectionRecord{}, err
	}
	rec.NoVotingBefore = fromNullMillis(notBefore)
	rec.NoVotingAfter = fromNullMillis(notAfter)
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

// SearchElectionByName returns one election, if present.
func (s *Store) SearchElectionByName(ctx context.Context, name string) (storage.ElectionRecord, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+electionColumns+" FROM elections WHERE name = ?", name)
	rec, err := scanElection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ElectionRecord{}, false, nil
	}
	if err != nil {
		return storage.ElectionRecord{}, false, fmt.Errorf("search election: %w", err)
	}
	return rec, true, nil
}

// ListElections returns all elections ordered by name.
func (s *Store) ListElections(ctx context.Context) ([]storage.ElectionRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+electionColumns+" FROM elections ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list elections: %w", err)
	}
	defer rows.Close()

	var records []storage.ElectionRecord
	for rows.Next() {
		rec, err := scanElection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan election: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate elections: %w", err)
	}
	return records, nil
}

// ElectionCount returns the total number of elections.
func (s *Store) ElectionCount(ctx context.Context) (int, error) {
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM elections").Scan(&count); err != nil {
		return 0, fmt.Errorf("count elections: %w", err)
	}
	return count, nil
}

// ListCandidates returns the election's candidates ordered by name.
func (s *Store) ListCandidates(ctx context.Context, electionName string) ([]string, error) {
	return s.listSetMembers(ctx, "candidates", "candidate_name", electionName)
}

// CandidateCount returns the total number of candidate rows.
func (s *Store) CandidateCount(ctx context.Context) (int, error) {
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM candidates").Scan(&count); err != nil {
		return 0, fmt.Errorf("count candidates: %w", err)
	}
	return count, nil
}

// ListVotersForElection returns the eligibility set ordered by name.
func (s *Store) ListVotersForElection(ctx context.Context, electionName string) ([]string, error) {
	return s.listSetMembers(ctx, "eligible_voters", "voter_name", electionName)
}

// VoterCount returns the total number of eligibility rows.
func (s *Store) VoterCount(ctx context.Context) (int, error) {
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM eligible_voters").Scan(&count); err != nil {
		return 0, fmt.Errorf("count eligible voters: %w", err)
	}
	return count, nil
}

func (s *Store) listSetMembers(ctx context.Context, table, column, electionName string) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE election_name = ? ORDER BY %s", column, table, column)
	rows, err := s.sqlDB.QueryContext(ctx, query, electionName)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return names, nil
}
