// Package qrcode renders provisioning URIs as QR codes, either as PNG images
// or as text suitable for a terminal.
package qrcode

import (
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrEmptyContent is returned when content is empty or only whitespace.
	ErrEmptyContent = errors.New("content cannot be empty")
	// ErrGenerate wraps failures from the QR encoder.
	ErrGenerate = errors.New("failed to generate QR code")
)

// DefaultSize is the PNG edge length used when size is not positive.
const DefaultSize = 256

// Generate returns a PNG image of content.
func Generate(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrGenerate, err)
	}
	return png, nil
}

// Terminal returns content as a block-character QR code for printing.
func Terminal(content string, inverse bool) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	q, err := skipqrcode.New(content, skipqrcode.Medium)
	if err != nil {
		return "", errors.Join(ErrGenerate, err)
	}
	return q.ToSmallString(inverse), nil
}
