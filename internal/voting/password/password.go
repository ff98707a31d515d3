// Package password hashes and verifies user passwords with argon2id.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"golang.org/x/crypto/argon2"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
)

// argon2id parameters. Changing them invalidates stored hashes, so bump
// only alongside a rehash-on-login migration.
const (
	timeCost   = 1
	memoryCost = 64 * 1024
	threads    = 4
	saltLen    = 16
	keyLen     = 32
)

// CreateSaltAndHash derives a fresh salt and hash for a password.
// Both return values are base64 encoded for storage.
func CreateSaltAndHash(password string) (salt, hash string, err error) {
	if password == "" {
		return "", "", apperrors.New(apperrors.CodeUserPasswordEmpty, "password is required")
	}
	raw := make([]byte, saltLen)
	if _, err := rand.Read(raw); err != nil {
		return "", "", apperrors.Wrap(apperrors.CodeInternal, "generate salt", err)
	}
	key := argon2.IDKey([]byte(password), raw, timeCost, memoryCost, threads, keyLen)
	return base64.RawStdEncoding.EncodeToString(raw),
		base64.RawStdEncoding.EncodeToString(key), nil
}

// Verify reports whether the password matches the stored salt and hash.
// The comparison is constant time.
func Verify(password, salt, hash string) bool {
	rawSalt, err := base64.RawStdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	rawHash, err := base64.RawStdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(password), rawSalt, timeCost, memoryCost, threads, keyLen)
	return subtle.ConstantTimeCompare(key, rawHash) == 1
}
