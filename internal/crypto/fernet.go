package crypto

import (
	"bytes"
	"errors"

	"github.com/fernet/fernet-go"
)

// Legacy vault and backup files are Fernet tokens keyed by the same 32-byte
// key file (signing half first).

// ErrInvalidToken is returned for malformed or unauthenticated Fernet tokens.
var ErrInvalidToken = errors.New("invalid fernet token")

// IsFernetToken reports whether blob looks like a Fernet token.
func IsFernetToken(blob []byte) bool {
	// base64url of the leading 0x80 version byte always starts with "gA".
	return bytes.HasPrefix(bytes.TrimSpace(blob), []byte("gA"))
}

// OpenFernet decrypts a legacy Fernet token. Token age is not checked.
func OpenFernet(token, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	var k fernet.Key
	copy(k[:], key)
	defer Zero(k[:])

	plain := fernet.VerifyAndDecrypt(bytes.TrimSpace(token), -1, []*fernet.Key{&k})
	if plain == nil {
		return nil, ErrInvalidToken
	}
	return plain, nil
}
