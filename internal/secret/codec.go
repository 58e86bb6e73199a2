// Package secret validates and canonicalizes TOTP shared secrets.
package secret

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidSecret is returned for empty or non-Base32 secrets.
var ErrInvalidSecret = errors.New("invalid secret")

// blockSize is the Base32 quantum: encoded output is always a multiple of 8 characters.
const blockSize = 8

// Normalize strips whitespace, uppercases and pads s to a multiple of 8
// characters, then checks that the result is valid standard Base32.
// It returns the canonical string, not the decoded bytes.
func Normalize(s string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSecret)
	}

	cleaned = strings.ToUpper(cleaned)
	if n := len(cleaned) % blockSize; n != 0 {
		cleaned += strings.Repeat("=", blockSize-n)
	}

	if _, err := base32.StdEncoding.DecodeString(cleaned); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return cleaned, nil
}
