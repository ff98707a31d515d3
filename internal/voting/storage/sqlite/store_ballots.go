package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

// PutBallot upserts a ballot and replaces its rankings in one transaction.
func (s *Store) PutBallot(ctx context.Context, rec storage.BallotRecord) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ballots (election_name, voter_name, confirmation, when_cast)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (election_name, voter_name) DO UPDATE SET
		     confirmation = excluded.confirmation,
		     when_cast = excluded.when_cast`,
		rec.ElectionName, rec.VoterName, rec.Confirmation, toMillis(rec.WhenCast),
	); err != nil {
		return fmt.Errorf("put ballot: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM rankings WHERE election_name = ? AND voter_name = ?",
		rec.ElectionName, rec.VoterName,
	); err != nil {
		return fmt.Errorf("clear rankings: %w", err)
	}
	for _, r := range rec.Rankings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rankings (election_name, voter_name, candidate_name, position)
			 VALUES (?, ?, ?, ?)`,
			rec.ElectionName, rec.VoterName, r.Candidate, r.Rank,
		); err != nil {
			return fmt.Errorf("insert ranking: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) loadRankings(ctx context.Context, electionName, voterName string) ([]event.Ranking, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT candidate_name, position FROM rankings
		 WHERE election_name = ? AND voter_name = ?
		 ORDER BY position, candidate_name`,
		electionName, voterName,
	)
	if err != nil {
		return nil, fmt.Errorf("list rankings: %w", err)
	}
	defer rows.Close()

	var rankings []event.Ranking
	for rows.Next() {
		var r event.Ranking
		if err := rows.Scan(&r.Candidate, &r.Rank); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		rankings = append(rankings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rankings: %w", err)
	}
	return rankings, nil
}

func (s *Store) searchBallotRow(ctx context.Context, query string, args ...any) (storage.BallotRecord, bool, error) {
	var (
		rec      storage.BallotRecord
		whenCast int64
	)
	err := s.sqlDB.QueryRowContext(ctx, query, args...).Scan(
		&rec.ElectionName, &rec.VoterName, &rec.Confirmation, &whenCast)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.BallotRecord{}, false, nil
	}
	if err != nil {
		return storage.BallotRecord{}, false, fmt.Errorf("search ballot: %w", err)
	}
	rec.WhenCast = fromMillis(whenCast)
	rec.Rankings, err = s.loadRankings(ctx, rec.ElectionName, rec.VoterName)
	if err != nil {
		return storage.BallotRecord{}, false, err
	}
	return rec, true, nil
}

// SearchBallot returns the ballot for (election, voter), if any.
func (s *Store) SearchBallot(ctx context.Context, electionName, voterName string) (storage.BallotRecord, bool, error) {
	return s.searchBallotRow(ctx,
		`SELECT election_name, voter_name, confirmation, when_cast
		 FROM ballots WHERE election_name = ? AND voter_name = ?`,
		electionName, voterName)
}

// SearchBallotByConfirmation returns the ballot behind a confirmation, if any.
func (s *Store) SearchBallotByConfirmation(ctx context.Context, confirmation string) (storage.BallotRecord, bool, error) {
	return s.searchBallotRow(ctx,
		`SELECT election_name, voter_name, confirmation, when_cast
		 FROM ballots WHERE confirmation = ?`,
		confirmation)
}

// ListBallots returns the election's ballots ordered by voter name.
func (s *Store) ListBallots(ctx context.Context, electionName string) ([]storage.BallotRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT election_name, voter_name, confirmation, when_cast
		 FROM ballots WHERE election_name = ? ORDER BY voter_name`,
		electionName,
	)
	if err != nil {
		return nil, fmt.Errorf("list ballots: %w", err)
	}
	defer rows.Close()

	var records []storage.BallotRecord
	for rows.Next() {
		var (
			rec      storage.BallotRecord
			whenCast int64
		)
		if err := rows.Scan(&rec.ElectionName, &rec.VoterName, &rec.Confirmation, &whenCast); err != nil {
			return nil, fmt.Errorf("scan ballot: %w", err)
		}
		rec.WhenCast = fromMillis(whenCast)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ballots: %w", err)
	}
	for i := range records {
		records[i].Rankings, err = s.loadRankings(ctx, records[i].ElectionName, records[i].VoterName)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

// BallotCount returns the total number of ballots across all elections.
func (s *Store) BallotCount(ctx context.Context) (int, error) {
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM ballots").Scan(&count); err != nil {
		return 0, fmt.Errorf("count ballots: %w", err)
	}
	return count, nil
}
