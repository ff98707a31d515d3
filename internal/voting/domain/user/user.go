// Package user defines the user entity, its roles, and input validation.
package user

import (
	"strings"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
)

// Role determines a user's permissions.
type Role string

const (
	// RoleUnspecified indicates the role has not been set.
	RoleUnspecified Role = ""
	// RoleOwner is held by exactly one user: the first registrant.
	RoleOwner Role = "OWNER"
	// RoleAdmin can manage users and any election.
	RoleAdmin Role = "ADMIN"
	// RoleUser can vote and manage their own elections.
	RoleUser Role = "USER"
)

// NormalizeRole parses a role value case-insensitively.
func NormalizeRole(value string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleOwner:
		return RoleOwner, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	}
	return RoleUnspecified, false
}

// IsValid reports whether the role is one of the three known roles.
func (r Role) IsValid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleUser
}

// NormalizeName trims and validates a user name.
func NormalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", apperrors.New(apperrors.CodeUserNameEmpty, "user name is required")
	}
	return trimmed, nil
}

// NormalizeEmail trims and validates an email address. Shape-only validation:
// deliverability is the mail system's problem, uniqueness is the query model's.
func NormalizeEmail(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", apperrors.New(apperrors.CodeUserEmailEmpty, "email is required")
	}
	at := strings.Index(trimmed, "@")
	if at < 1 || at == len(trimmed)-1 {
		return "", apperrors.New(apperrors.CodeUserEmailEmpty, "email must contain a local part and a domain")
	}
	return trimmed, nil
}

// ValidatePassword rejects empty passwords before hashing.
func ValidatePassword(password string) error {
	if password == "" {
		return apperrors.New(apperrors.CodeUserPasswordEmpty, "password is required")
	}
	return nil
}
