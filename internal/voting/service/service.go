// Package service orchestrates the voting domain: it validates commands,
// appends events to the journal, and synchronizes the query model so every
// caller reads their own writes.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/ksuid"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
	"github.com/louisbranch/ballotbox/internal/voting/authz"
	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/projection"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
	"github.com/louisbranch/ballotbox/internal/voting/token"
)

// Config carries the service dependencies.
type Config struct {
	Store  storage.Store
	Tokens *token.Issuer
	Logger *slog.Logger

	// Now and NewConfirmation are injectable for tests. They default to
	// time.Now and ksuid generation.
	Now             func() time.Time
	NewConfirmation func() string
}

// Service is the single entry point for every voting operation. All writes
// go through the event log; all reads go through the synchronized query model.
type Service struct {
	store        storage.Store
	synchronizer *projection.Synchronizer
	tokens       *token.Issuer
	logger       *slog.Logger

	now             func() time.Time
	newConfirmation func() string
}

// New wires a service over one backend.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("service store is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("service token issuer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewConfirmation == nil {
		cfg.NewConfirmation = func() string { return ksuid.New().String() }
	}
	return &Service{
		store:           cfg.Store,
		synchronizer:    projection.NewSynchronizer(cfg.Store, cfg.Store),
		tokens:          cfg.Tokens,
		logger:          cfg.Logger,
		now:             cfg.Now,
		newConfirmation: cfg.NewConfirmation,
	}, nil
}

// refresh drains pending events into the query model before a read. A sync
// failure is surfaced: serving a knowingly stale read would break the
// read-your-writes guarantee.
func (s *Service) refresh(ctx context.Context) error {
	if _, err := s.synchronizer.Sync(ctx); err != nil {
		return err
	}
	return nil
}

// append journals one event and synchronizes the query model. The append is
// the commit point; a sync failure afterwards is logged and retried by the
// next operation's refresh, not surfaced to the caller whose write is already
// durable.
func (s *Service) append(ctx context.Context, authority string, typ event.Type, payload any) error {
	data, err := event.EncodePayload(payload)
	if err != nil {
		return err
	}
	env := event.Envelope{
		Authority:  authority,
		OccurredAt: s.now().UTC(),
		Type:       typ,
		Payload:    data,
	}
	if err := event.ValidateForAppend(env); err != nil {
		return err
	}
	appended, err := s.store.AppendEvent(ctx, env)
	if err != nil {
		return err
	}
	if _, err := s.synchronizer.Sync(ctx); err != nil {
		s.logger.Error("projection sync failed after append",
			"event_id", appended.ID, "event_type", string(appended.Type), "error", err)
	}
	return nil
}

// requireCaller refreshes the query model and resolves the token identity to
// its current stored record. The stored role wins over the token claim, so a
// role change takes effect without waiting for token expiry.
func (s *Service) requireCaller(ctx context.Context, caller token.Identity) (storage.UserRecord, error) {
	if err := s.refresh(ctx); err != nil {
		return storage.UserRecord{}, err
	}
	rec, err := s.store.FindUserByName(ctx, caller.UserName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.UserRecord{}, apperrors.New(apperrors.CodeUnauthorized, "caller is no longer registered")
		}
		return storage.UserRecord{}, err
	}
	return rec, nil
}

// requirePermission resolves the caller and checks one permission.
func (s *Service) requirePermission(ctx context.Context, caller token.Identity, perm authz.Permission) (storage.UserRecord, error) {
	rec, err := s.requireCaller(ctx, caller)
	if err != nil {
		return storage.UserRecord{}, err
	}
	if !authz.HasPermission(rec.Role, perm) {
		return storage.UserRecord{}, apperrors.WithMetadata(apperrors.CodeForbidden,
			"missing permission", map[string]string{"permission": string(perm)})
	}
	return rec, nil
}
