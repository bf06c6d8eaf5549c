// Package auth handles passwords, access tokens and refresh tokens.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// KeySize is the PASETO v4 local key size in bytes.
const KeySize = 32

// LoadOrCreateKey reads the hex-encoded token key at path, creating it with a
// fresh random key (mode 0600) if it does not exist yet.
func LoadOrCreateKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path) //#nosec G304 -- path comes from server configuration
	switch {
	case err == nil:
		key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("auth key %s is not hex: %w", path, err)
		}
		if len(key) != KeySize {
			return nil, fmt.Errorf("auth key %s must be %d bytes, got %d", path, KeySize, len(key))
		}
		return key, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read auth key: %w", err)
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate auth key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("write auth key: %w", err)
	}
	return key, nil
}
