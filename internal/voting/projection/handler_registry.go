package projection

import (
	"context"
	"sort"

	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
)

// handlerEntry declares the apply function for one event type.
type handlerEntry struct {
	apply func(Applier, context.Context, event.Envelope) error
}

// handlers maps each journal event type to its projection handler.
var handlers = map[event.Type]handlerEntry{
	// user
	event.TypeUserRegistered: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyUserRegistered(ctx, env) },
	},
	event.TypeUserRoleChanged: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyUserRoleChanged(ctx, env) },
	},
	event.TypeUserPasswordChanged: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyUserPasswordChanged(ctx, env) },
	},
	event.TypeUserEmailChanged: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyUserEmailChanged(ctx, env) },
	},
	event.TypeUserNameChanged: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyUserNameChanged(ctx, env) },
	},
	event.TypeUserRemoved: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyUserRemoved(ctx, env) },
	},

	// election
	event.TypeElectionCreated: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyElectionCreated(ctx, env) },
	},
	event.TypeElectionUpdated: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyElectionUpdated(ctx, env) },
	},
	event.TypeElectionDeleted: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyElectionDeleted(ctx, env) },
	},
	event.TypeCandidatesAdded: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyCandidatesAdded(ctx, env) },
	},
	event.TypeCandidatesRemoved: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyCandidatesRemoved(ctx, env) },
	},
	event.TypeVotersAdded: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyVotersAdded(ctx, env) },
	},
	event.TypeVotersRemoved: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyVotersRemoved(ctx, env) },
	},

	// ballot
	event.TypeBallotCast: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyBallotCast(ctx, env) },
	},
	event.TypeBallotRankingsChanged: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyBallotRankingsChanged(ctx, env) },
	},
	event.TypeBallotTimestampUpdated: {
		apply: func(a Applier, ctx context.Context, env event.Envelope) error { return a.applyBallotTimestampUpdated(ctx, env) },
	},
}

// HandledTypes returns the event types with projection handlers, sorted.
// The handler map is the single source of truth for coverage checks.
func HandledTypes() []event.Type {
	types := make([]event.Type, 0, len(handlers))
	for t := range handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
