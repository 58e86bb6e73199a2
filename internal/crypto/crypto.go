package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of every key handled by this package (AES-256).
const KeySize = 32

// ErrInvalidKey is returned when a key is not KeySize bytes long.
var ErrInvalidKey = errors.New("invalid key length")

// ErrCiphertextTooShort is returned when a sealed blob cannot hold a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// GenerateKey generates a 32-byte cryptographically secure random key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return key, nil
}

// DeriveKey derives a purpose-bound subkey from root using HKDF-SHA256.
func DeriveKey(root []byte, context string) ([]byte, error) {
	if len(root) != KeySize {
		return nil, ErrInvalidKey
	}
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, root, nil, []byte(context))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext with AES-256-GCM and returns nonce||ciphertext.
func Seal(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal. Tampered data or a wrong key fails.
func Open(blob, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(blob) < nonceSize+gcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := gcm.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return plaintext, nil
}

// Zero overwrites b in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}
