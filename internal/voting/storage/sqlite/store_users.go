package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/ballotbox/internal/voting/domain/user"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

const userColumns = "name, email, salt, hash, role, created_at, updated_at"

// PutUser upserts a user record by name.
func (s *Store) PutUser(ctx context.Context, rec storage.UserRecord) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (name, email, salt, hash, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		     email = excluded.email,
		     salt = excluded.salt,
		     hash = excluded.hash,
		     role = excluded.role,
		     created_at = excluded.created_at,
		     updated_at = excluded.updated_at`,
		rec.Name, rec.Email, rec.Salt, rec.Hash, string(rec.Role),
		toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// RenameUser renames a user. The foreign keys cascade the new name across
// owned elections, eligibility entries, and ballots.
func (s *Store) RenameUser(ctx context.Context, oldName, newName string) error {
	res, err := s.sqlDB.ExecContext(ctx,
		"UPDATE users SET name = ? WHERE name = ?",
		newName, oldName,
	)
	if err != nil {
		return fmt.Errorf("rename user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename user rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteUser removes a user. The foreign keys cascade: owned elections with
// their candidates, eligibility, and ballots, plus the user's own ballots and
// eligibility entries.
func (s *Store) DeleteUser(ctx context.Context, name string) error {
	res, err := s.sqlDB.ExecContext(ctx, "DELETE FROM users WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanUser(row interface{ Scan(dest ...any) error }) (storage.UserRecord, error) {
	var (
		rec       storage.UserRecord
		role      string
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&rec.Name, &rec.Email, &rec.Salt, &rec.Hash, &role, &createdAt, &updatedAt)
	if err != nil {
		return storage.UserRecord{}, err
	}
	rec.Role = user.Role(role)
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

// FindUserByName returns one user or ErrNotFound.
func (s *Store) FindUserByName(ctx context.Context, name string) (storage.UserRecord, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE name = ?", name)
	rec, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.UserRecord{}, fmt.Errorf("find user: %w", err)
	}
	return rec, nil
}

// SearchUserByEmail returns the user holding an email, if any.
func (s *Store) SearchUserByEmail(ctx context.Context, email string) (storage.UserRecord, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email)
	rec, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.UserRecord{}, false, nil
	}
	if err != nil {
		return storage.UserRecord{}, false, fmt.Errorf("search user by email: %w", err)
	}
	return rec, true, nil
}

// ListUsers returns all users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]storage.UserRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var records []storage.UserRecord
	for rows.Next() {
		rec, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return records, nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
