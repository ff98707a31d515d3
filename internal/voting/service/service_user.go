package service

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
	"github.com/louisbranch/ballotbox/internal/voting/authz"
	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/domain/user"
	"github.com/louisbranch/ballotbox/internal/voting/password"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
	"github.com/louisbranch/ballotbox/internal/voting/token"
)

// UserView is the public projection of a user. Credentials never leave the
// service.
type UserView struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      user.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func userView(rec storage.UserRecord) UserView {
	return UserView{
		Name:      rec.Name,
		Email:     rec.Email,
		Role:      rec.Role,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// Register creates a user and returns a token pair. The first registrant
// becomes OWNER; everyone after is USER.
func (s *Service) Register(ctx context.Context, name, email, plaintext string) (token.Pair, error) {
	name, err := user.NormalizeName(name)
	if err != nil {
		return token.Pair{}, err
	}
	email, err = user.NormalizeEmail(email)
	if err != nil {
		return token.Pair{}, err
	}
	if err := user.ValidatePassword(plaintext); err != nil {
		return token.Pair{}, err
	}
	if err := s.refresh(ctx); err != nil {
		return token.Pair{}, err
	}

	if _, err := s.store.FindUserByName(ctx, name); err == nil {
		return token.Pair{}, apperrors.WithMetadata(apperrors.CodeUserNameTaken,
			"user name is taken", map[string]string{"name": name})
	} else if !errors.Is(err, storage.ErrNotFound) {
		return token.Pair{}, err
	}
	if _, found, err := s.store.SearchUserByEmail(ctx, email); err != nil {
		return token.Pair{}, err
	} else if found {
		return token.Pair{}, apperrors.New(apperrors.CodeUserEmailTaken, "email is taken")
	}

	count, err := s.store.UserCount(ctx)
	if err != nil {
		return token.Pair{}, err
	}
	role := user.RoleUser
	if count == 0 {
		role = user.RoleOwner
	}

	salt, hash, err := password.CreateSaltAndHash(plaintext)
	if err != nil {
		return token.Pair{}, err
	}
	err = s.append(ctx, name, event.TypeUserRegistered, event.UserRegistered{
		Name:  name,
		Email: email,
		Salt:  salt,
		Hash:  hash,
	})
	if err != nil {
		return token.Pair{}, err
	}
	return s.tokens.Issue(name, role)
}

// Login verifies credentials and returns a token pair. Unknown names and bad
// passwords fail identically so the response does not leak which users exist.
func (s *Service) Login(ctx context.Context, name, plaintext string) (token.Pair, error) {
	if err := s.refresh(ctx); err != nil {
		return token.Pair{}, err
	}
	badCredentials := apperrors.New(apperrors.CodeBadCredentials, "unknown user or wrong password")

	rec, err := s.store.FindUserByName(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return token.Pair{}, badCredentials
		}
		return token.Pair{}, err
	}
	if !password.Verify(plaintext, rec.Salt, rec.Hash) {
		return token.Pair{}, badCredentials
	}
	return s.tokens.Issue(rec.Name, rec.Role)
}

// Refresh rotates a refresh token into a new pair carrying the user's
// current role.
func (s *Service) Refresh(ctx context.Context, refresh string) (token.Pair, error) {
	pair, err := s.tokens.Refresh(refresh)
	if err != nil {
		return token.Pair{}, err
	}
	identity, err := s.tokens.Decode(pair.Access)
	if err != nil {
		return token.Pair{}, err
	}
	rec, err := s.requireCaller(ctx, identity)
	if err != nil {
		return token.Pair{}, err
	}
	if rec.Role != identity.Role {
		return s.tokens.Issue(rec.Name, rec.Role)
	}
	return pair, nil
}

// GetUser returns one user. Callers may view themselves; viewing others
// requires user management permission.
func (s *Service) GetUser(ctx context.Context, caller token.Identity, name string) (UserView, error) {
	callerRec, err := s.requireCaller(ctx, caller)
	if err != nil {
		return UserView{}, err
	}
	if callerRec.Name == name {
		return userView(callerRec), nil
	}
	if !authz.HasPermission(callerRec.Role, authz.PermManageUsers) {
		return UserView{}, apperrors.New(apperrors.CodeForbidden, "cannot view other users")
	}
	rec, err := s.store.FindUserByName(ctx, name)
	if err != nil {
		return UserView{}, err
	}
	return userView(rec), nil
}

// ListUsers returns every user ordered by name.
func (s *Service) ListUsers(ctx context.Context, caller token.Identity) ([]UserView, error) {
	if _, err := s.requirePermission(ctx, caller, authz.PermManageUsers); err != nil {
		return nil, err
	}
	records, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]UserView, 0, len(records))
	for _, rec := range records {
		views = append(views, userView(rec))
	}
	return views, nil
}

// SetRole assigns a new role to a user. The OWNER role is fixed at
// registration: it can neither be granted nor revoked here, and only the
// OWNER may change an ADMIN's role.
func (s *Service) SetRole(ctx context.Context, caller token.Identity, name, roleValue string) error {
	callerRec, err := s.requirePermission(ctx, caller, authz.PermManageUsers)
	if err != nil {
		return err
	}
	role, ok := user.NormalizeRole(roleValue)
	if !ok || role == user.RoleOwner {
		return apperrors.WithMetadata(apperrors.CodeUserInvalidRole,
			"role must be ADMIN or USER", map[string]string{"role": roleValue})
	}
	target, err := s.store.FindUserByName(ctx, name)
	if err != nil {
		return err
	}
	if target.Role == user.RoleOwner {
		return apperrors.New(apperrors.CodeForbidden, "the owner's role cannot be changed")
	}
	if target.Role == user.RoleAdmin && callerRec.Role != user.RoleOwner {
		return apperrors.New(apperrors.CodeForbidden, "only the owner may change an admin's role")
	}
	if target.Role == role {
		return nil
	}
	return s.append(ctx, callerRec.Name, event.TypeUserRoleChanged, event.UserRoleChanged{
		Name: target.Name,
		Role: string(role),
	})
}

// SetPassword changes a user's password. Callers may change their own;
// changing another user's requires user management permission.
func (s *Service) SetPassword(ctx context.Context, caller token.Identity, name, plaintext string) error {
	callerRec, err := s.requireManageOrSelf(ctx, caller, name, "cannot change another user's password")
	if err != nil {
		return err
	}
	if err := user.ValidatePassword(plaintext); err != nil {
		return err
	}
	target, err := s.store.FindUserByName(ctx, name)
	if err != nil {
		return err
	}
	salt, hash, err := password.CreateSaltAndHash(plaintext)
	if err != nil {
		return err
	}
	return s.append(ctx, callerRec.Name, event.TypeUserPasswordChanged, event.UserPasswordChanged{
		Name: target.Name,
		Salt: salt,
		Hash: hash,
	})
}

// SetEmail changes a user's email address.
func (s *Service) SetEmail(ctx context.Context, caller token.Identity, name, email string) error {
	callerRec, err := s.requireManageOrSelf(ctx, caller, name, "cannot change another user's email")
	if err != nil {
		return err
	}
	email, err = user.NormalizeEmail(email)
	if err != nil {
		return err
	}
	target, err := s.store.FindUserByName(ctx, name)
	if err != nil {
		return err
	}
	if existing, found, err := s.store.SearchUserByEmail(ctx, email); err != nil {
		return err
	} else if found && existing.Name != target.Name {
		return apperrors.New(apperrors.CodeUserEmailTaken, "email is taken")
	}
	return s.append(ctx, callerRec.Name, event.TypeUserEmailChanged, event.UserEmailChanged{
		Name:  target.Name,
		Email: email,
	})
}

// SetUserName renames a user. The rename cascades across owned elections,
// eligibility entries, and ballots. Renaming yourself returns a fresh token
// pair since the old token names a user that no longer exists.
func (s *Service) SetUserName(ctx context.Context, caller token.Identity, oldName, newName string) (token.Pair, error) {
	callerRec, err := s.requireManageOrSelf(ctx, caller, oldName, "cannot rename another user")
	if err != nil {
		return token.Pair{}, err
	}
	newName, err = user.NormalizeName(newName)
	if err != nil {
		return token.Pair{}, err
	}
	target, err := s.store.FindUserByName(ctx, oldName)
	if err != nil {
		return token.Pair{}, err
	}
	if newName == target.Name {
		return token.Pair{}, nil
	}
	if _, err := s.store.FindUserByName(ctx, newName); err == nil {
		return token.Pair{}, apperrors.WithMetadata(apperrors.CodeUserNameTaken,
			"user name is taken", map[string]string{"name": newName})
	} else if !errors.Is(err, storage.ErrNotFound) {
		return token.Pair{}, err
	}

	err = s.append(ctx, callerRec.Name, event.TypeUserNameChanged, event.UserNameChanged{
		OldName: target.Name,
		NewName: newName,
	})
	if err != nil {
		return token.Pair{}, err
	}
	if callerRec.Name == target.Name {
		return s.tokens.Issue(newName, target.Role)
	}
	return token.Pair{}, nil
}

// RemoveUser deletes a user and cascades: owned elections with their ballots,
// the user's own ballots, and their eligibility entries. The OWNER cannot be
// removed.
func (s *Service) RemoveUser(ctx context.Context, caller token.Identity, name string) error {
	callerRec, err := s.requireManageOrSelf(ctx, caller, name, "cannot remove another user")
	if err != nil {
		return err
	}
	target, err := s.store.FindUserByName(ctx, name)
	if err != nil {
		return err
	}
	if target.Role == user.RoleOwner {
		return apperrors.New(apperrors.CodeOwnerRemoval, "the owner cannot be removed")
	}
	if target.Role == user.RoleAdmin && callerRec.Name != target.Name && callerRec.Role != user.RoleOwner {
		return apperrors.New(apperrors.CodeForbidden, "only the owner may remove an admin")
	}
	return s.append(ctx, callerRec.Name, event.TypeUserRemoved, event.UserRemoved{Name: target.Name})
}

// requireManageOrSelf resolves the caller and allows the operation when the
// caller targets themselves or holds user management permission.
func (s *Service) requireManageOrSelf(ctx context.Context, caller token.Identity, targetName, denial string) (storage.UserRecord, error) {
	callerRec, err := s.requireCaller(ctx, caller)
	if err != nil {
		return storage.UserRecord{}, err
	}
	if callerRec.Name == targetName {
		return callerRec, nil
	}
	if !authz.HasPermission(callerRec.Role, authz.PermManageUsers) {
		return storage.UserRecord{}, apperrors.New(apperrors.CodeForbidden, denial)
	}
	return callerRec, nil
}
