// Package projection is the command model: it applies journal events to the
// materialized state and owns the lastSynced cursor.
package projection

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

// Applier applies event journal entries to a backend's command model.
type Applier struct {
	// Model is the backend's write surface plus the reads needed for
	// read-modify-write effects.
	Model storage.CommandModel
}

// Apply routes one envelope to its handler. Unknown event types fail with
// CodeInternal: an unreadable journal entry is corruption, never skippable.
func (a Applier) Apply(ctx context.Context, env event.Envelope) error {
	entry, ok := handlers[env.Type]
	if !ok {
		return apperrors.New(apperrors.CodeInternal,
			fmt.Sprintf("no projection handler for event type %q at event %d", env.Type, env.ID))
	}
	if a.Model == nil {
		return apperrors.New(apperrors.CodeInternal, "projection model is not configured")
	}
	if err := entry.apply(a, ctx, env); err != nil {
		return fmt.Errorf("apply %s at event %d: %w", env.Type, env.ID, err)
	}
	return nil
}

// ensureTimestamp normalizes a payload timestamp to UTC. Zero timestamps
// fall back to now; validated appends never produce them.
func ensureTimestamp(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts.UTC()
}

// decodeAs decodes the envelope payload and asserts its registered type.
func decodeAs[T any](env event.Envelope) (T, error) {
	var zero T
	decoded, err := event.DecodePayload(env)
	if err != nil {
		return zero, err
	}
	payload, ok := decoded.(T)
	if !ok {
		return zero, apperrors.New(apperrors.CodeInternal,
			fmt.Sprintf("payload for %s decoded as %T", env.Type, decoded))
	}
	return payload, nil
}
