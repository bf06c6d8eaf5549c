// Package id generates identifiers for catalog entities, users, sessions, and loans.
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Generate returns "prefix-<nanoid>", e.g. "loan-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	raw, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + raw, nil
}

// HasPrefix reports whether v was generated with prefix.
func HasPrefix(v, prefix string) bool {
	return strings.HasPrefix(v, prefix+"-") && len(v) > len(prefix)+1
}
