package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for new hashes. Verification reads the parameters
// stored in the hash, so these can change without invalidating old passwords.
const (
	hashMemory      = 64 * 1024
	hashIterations  = 3
	hashParallelism = 4
	hashSaltLen     = 16
	hashKeyLen      = 32

	maxPasswordLength = 1024
)

// ErrPasswordEmpty and ErrPasswordTooLong reject unusable passwords before hashing.
var (
	ErrPasswordEmpty   = errors.New("password cannot be empty")
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
)

type hashParams struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
}

// HashPassword returns a PHC-formatted argon2id hash of password.
func HashPassword(password string) (string, error) {
	switch {
	case password == "":
		return "", ErrPasswordEmpty
	case len(password) > maxPasswordLength:
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, hashIterations, hashMemory, hashParallelism, hashKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, hashMemory, hashIterations, hashParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether password matches encoded.
// A malformed hash is treated as a mismatch.
func VerifyPassword(encoded, password string) bool {
	if len(password) > maxPasswordLength {
		return false
	}
	params, salt, want, err := parseHash(encoded)
	if err != nil {
		return false
	}
	//nolint:gosec // key length comes from a decoded 32-byte hash
	got := argon2.IDKey([]byte(password), salt, params.iterations, params.memory, params.parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

func parseHash(encoded string) (hashParams, []byte, []byte, error) {
	var p hashParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, errors.New("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("unsupported argon2 version %q", parts[2])
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("bad argon2 parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("bad salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("bad key: %w", err)
	}
	return p, salt, key, nil
}
