// Package token mints and verifies access and refresh tokens.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
	"github.com/louisbranch/ballotbox/internal/platform/id"
	"github.com/louisbranch/ballotbox/internal/voting/domain/user"
)

const (
	useAccess  = "access"
	useRefresh = "refresh"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// Identity is the caller identity carried by every token.
type Identity struct {
	UserName string
	Role     user.Role
}

// Pair is an access/refresh token pair.
type Pair struct {
	Access  string
	Refresh string
}

// claims is the internal claims type used for JWT signing and parsing.
type claims struct {
	jwt.RegisteredClaims
	UserName string `json:"user_name"`
	Role     string `json:"role"`
	TokenUse string `json:"token_use"`
}

// Config defines how tokens are signed and validated.
type Config struct {
	SigningKey []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// Issuer signs and verifies HS256 token pairs.
type Issuer struct {
	cfg Config
}

// NewIssuer validates the config and returns an issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("token signing key is required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("token issuer name is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{cfg: cfg}, nil
}

// Issue mints an access/refresh pair for the identity.
func (i *Issuer) Issue(name string, role user.Role) (Pair, error) {
	access, err := i.sign(name, role, useAccess, i.cfg.AccessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.sign(name, role, useRefresh, i.cfg.RefreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

// Decode verifies an access token and returns the caller identity.
func (i *Issuer) Decode(access string) (Identity, error) {
	return i.parse(access, useAccess)
}

// Refresh verifies a refresh token and rotates a new pair.
func (i *Issuer) Refresh(refresh string) (Pair, error) {
	identity, err := i.parse(refresh, useRefresh)
	if err != nil {
		return Pair{}, err
	}
	return i.Issue(identity.UserName, identity.Role)
}

func (i *Issuer) sign(name string, role user.Role, use string, ttl time.Duration) (string, error) {
	now := i.cfg.Now().UTC()
	jti, err := id.NewID()
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "generate token id", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    i.cfg.Issuer,
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserName: name,
		Role:     string(role),
		TokenUse: use,
	})
	signed, err := token.SignedString(i.cfg.SigningKey)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "sign token", err)
	}
	return signed, nil
}

func (i *Issuer) parse(raw, expectedUse string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, apperrors.New(apperrors.CodeUnauthorized, "token is required")
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(token *jwt.Token) (any, error) {
		return i.cfg.SigningKey, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithTimeFunc(func() time.Time { return i.cfg.Now().UTC() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperrors.Wrap(apperrors.CodeTokenExpired, "token expired", err)
		}
		return Identity{}, apperrors.Wrap(apperrors.CodeTokenInvalid, "token is invalid", err)
	}

	if parsed.TokenUse != expectedUse {
		return Identity{}, apperrors.New(apperrors.CodeTokenInvalid, "token use mismatch")
	}
	role, ok := user.NormalizeRole(parsed.Role)
	if !ok {
		return Identity{}, apperrors.New(apperrors.CodeTokenInvalid, "token carries an unknown role")
	}
	if strings.TrimSpace(parsed.UserName) == "" {
		return Identity{}, apperrors.New(apperrors.CodeTokenInvalid, "token carries no user name")
	}
	return Identity{UserName: parsed.UserName, Role: role}, nil
}
