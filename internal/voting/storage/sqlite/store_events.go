package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
)

// appendRetries bounds id-claim attempts when concurrent appends race for
// the same MAX(id)+1.
const appendRetries = 8

// AppendEvent atomically assigns the next event id and persists the envelope.
// The id is MAX(id)+1 inside the same transaction, so committed ids are
// gap-free and strictly increasing. A concurrent writer can claim the same
// id first; the losing insert hits the primary key and is retried with a
// fresh read.
func (s *Store) AppendEvent(ctx context.Context, env event.Envelope) (event.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return event.Envelope{}, err
	}
	if err := event.ValidateForAppend(env); err != nil {
		return event.Envelope{}, err
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}
	env.OccurredAt = env.OccurredAt.UTC().Truncate(time.Millisecond)

	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		id, err := s.insertEvent(ctx, env)
		if err == nil {
			env.ID = id
			return env, nil
		}
		if !isAppendConflict(err) {
			return event.Envelope{}, err
		}
		lastErr = err
	}
	return event.Envelope{}, fmt.Errorf("append event: id contention persisted after %d attempts: %w", appendRetries, lastErr)
}

func (s *Store) insertEvent(ctx context.Context, env event.Envelope) (uint64, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(id), 0) + 1 FROM events",
	).Scan(&next); err != nil {
		return 0, fmt.Errorf("next event id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (id, authority, occurred_at, event_type, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		next, env.Authority, toMillis(env.OccurredAt), string(env.Type), string(env.Payload),
	); err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return uint64(next), nil
}

// isAppendConflict reports whether the insert lost an id race and a retry
// can succeed: a duplicate id claim, or lock contention past the busy
// timeout.
func isAppendConflict(err error) bool {
	var serr *sqlitedriver.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE,
		sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// EventsAfter returns all envelopes with id > cursor in ascending order.
func (s *Store) EventsAfter(ctx context.Context, cursor uint64) ([]event.Envelope, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, authority, occurred_at, event_type, payload
		 FROM events WHERE id > ? ORDER BY id`,
		int64(cursor),
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var envelopes []event.Envelope
	for rows.Next() {
		var (
			id         int64
			authority  string
			occurredAt int64
			eventType  string
			payload    string
		)
		if err := rows.Scan(&id, &authority, &occurredAt, &eventType, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		envelopes = append(envelopes, event.Envelope{
			ID:         uint64(id),
			Authority:  authority,
			OccurredAt: fromMillis(occurredAt),
			Type:       event.Type(eventType),
			Payload:    []byte(payload),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return envelopes, nil
}

// CountEvents returns the total number of persisted events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// SetLastSynced advances the applied-event cursor. Backward moves are an
// invariant violation and rejected.
func (s *Store) SetLastSynced(ctx context.Context, id uint64) error {
	current, err := s.LastSynced(ctx)
	if err != nil {
		return err
	}
	if id < current {
		return apperrors.New(apperrors.CodeInternal, "sync cursor moved backward")
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sync_cursor (id, last_synced) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET last_synced = excluded.last_synced`,
		int64(id),
	); err != nil {
		return fmt.Errorf("set last synced: %w", err)
	}
	return nil
}

// LastSynced returns the highest applied event id, 0 if none.
func (s *Store) LastSynced(ctx context.Context) (uint64, error) {
	var cursor int64
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(last_synced), 0) FROM sync_cursor",
	).Scan(&cursor)
	if err != nil {
		return 0, fmt.Errorf("get last synced: %w", err)
	}
	return uint64(cursor), nil
}
