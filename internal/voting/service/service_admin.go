package service

import (
	"context"

	"github.com/louisbranch/ballotbox/internal/voting/authz"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
	"github.com/louisbranch/ballotbox/internal/voting/token"
)

// ListTables returns the logical table names available to the admin surface.
func (s *Service) ListTables(ctx context.Context, caller token.Identity) ([]string, error) {
	if _, err := s.requirePermission(ctx, caller, authz.PermViewAdminTables); err != nil {
		return nil, err
	}
	return storage.TableNames(), nil
}

// TableData dumps one logical table. Every backend produces identical dumps
// for identical event histories, which makes this the cross-backend
// compatibility check.
func (s *Service) TableData(ctx context.Context, caller token.Identity, name string) (storage.Table, error) {
	if _, err := s.requirePermission(ctx, caller, authz.PermViewAdminTables); err != nil {
		return storage.Table{}, err
	}
	return storage.TableData(ctx, s.store, name)
}
