package projection

import (
	"context"
	"sync"

	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

// Synchronizer drains the event log into the command model. One synchronizer
// runs per process; its mutex guarantees a single apply loop over the cursor.
type Synchronizer struct {
	mu      sync.Mutex
	log     storage.EventLog
	model   storage.CommandModel
	applier Applier
}

// NewSynchronizer wires a synchronizer over one backend.
func NewSynchronizer(log storage.EventLog, model storage.CommandModel) *Synchronizer {
	return &Synchronizer{
		log:     log,
		model:   model,
		applier: Applier{Model: model},
	}
}

// Sync applies every event past the lastSynced cursor and advances the
// cursor after each successfully applied event. On a mid-batch failure the
// cursor stays at the last applied id, so the next Sync resumes there.
// Returns the cursor after the run.
func (s *Synchronizer) Sync(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor, err := s.model.LastSynced(ctx)
	if err != nil {
		return 0, err
	}

	envelopes, err := s.log.EventsAfter(ctx, cursor)
	if err != nil {
		return cursor, err
	}

	for _, env := range envelopes {
		if env.ID <= cursor {
			// Already applied; at-most-once per event id.
			continue
		}
		if err := s.applier.Apply(ctx, env); err != nil {
			return cursor, err
		}
		if err := s.model.SetLastSynced(ctx, env.ID); err != nil {
			return cursor, err
		}
		cursor = env.ID
	}
	return cursor, nil
}
