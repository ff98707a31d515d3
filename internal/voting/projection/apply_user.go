package projection

import (
	"context"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/domain/user"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

func (a Applier) applyUserRegistered(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.UserRegistered](env)
	if err != nil {
		return err
	}

	role, ok := user.NormalizeRole(payload.Role)
	if !ok {
		// The first registrant becomes OWNER; everyone after is USER.
		count, err := a.Model.UserCount(ctx)
		if err != nil {
			return err
		}
		role = user.RoleUser
		if count == 0 {
			role = user.RoleOwner
		}
	}

	createdAt := ensureTimestamp(env.OccurredAt)
	return a.Model.PutUser(ctx, storage.UserRecord{
		Name:      payload.Name,
		Email:     payload.Email,
		Salt:      payload.Salt,
		Hash:      payload.Hash,
		Role:      role,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	})
}

func (a Applier) applyUserRoleChanged(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.UserRoleChanged](env)
	if err != nil {
		return err
	}
	rec, err := a.Model.FindUserByName(ctx, payload.Name)
	if err != nil {
		return err
	}
	role, ok := user.NormalizeRole(payload.Role)
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeInternal,
			"role change event carries an unknown role", map[string]string{"role": payload.Role})
	}
	rec.Role = role
	rec.UpdatedAt = ensureTimestamp(env.OccurredAt)
	return a.Model.PutUser(ctx, rec)
}

func (a Applier) applyUserPasswordChanged(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.UserPasswordChanged](env)
	if err != nil {
		return err
	}
	rec, err := a.Model.FindUserByName(ctx, payload.Name)
	if err != nil {
		return err
	}
	rec.Salt = payload.Salt
	rec.Hash = payload.Hash
	rec.UpdatedAt = ensureTimestamp(env.OccurredAt)
	return a.Model.PutUser(ctx, rec)
}

func (a Applier) applyUserEmailChanged(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.UserEmailChanged](env)
	if err != nil {
		return err
	}
	rec, err := a.Model.FindUserByName(ctx, payload.Name)
	if err != nil {
		return err
	}
	rec.Email = payload.Email
	rec.UpdatedAt = ensureTimestamp(env.OccurredAt)
	return a.Model.PutUser(ctx, rec)
}

func (a Applier) applyUserNameChanged(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.UserNameChanged](env)
	if err != nil {
		return err
	}
	return a.Model.RenameUser(ctx, payload.OldName, payload.NewName)
}

func (a Applier) applyUserRemoved(ctx context.Context, env event.Envelope) error {
	payload, err := decodeAs[*event.UserRemoved](env)
	if err != nil {
		return err
	}
	return a.Model.DeleteUser(ctx, payload.Name)
}
