package qrcode_test

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/org/authvault/internal/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uri = "otpauth://totp/AuthVault:alice?secret=JBSWY3DPEHPK3PXP&issuer=AuthVault"

func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("rejects empty content", func(t *testing.T) {
		t.Parallel()
		for _, content := range []string{"", "   \t\n"} {
			result, err := qrcode.Generate(content, 256)
			assert.ErrorIs(t, err, qrcode.ErrEmptyContent)
			assert.Nil(t, result)
		}
	})

	t.Run("renders png of requested size", func(t *testing.T) {
		t.Parallel()
		result, err := qrcode.Generate(uri, 320)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(result))
		require.NoError(t, err)
		assert.Equal(t, 320, img.Bounds().Dx())
		assert.Equal(t, 320, img.Bounds().Dy())
	})

	t.Run("defaults size", func(t *testing.T) {
		t.Parallel()
		result, err := qrcode.Generate(uri, 0)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(result))
		require.NoError(t, err)
		assert.Equal(t, qrcode.DefaultSize, img.Bounds().Dx())
	})
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	out, err := qrcode.Terminal(uri, false)
	require.NoError(t, err)
	assert.Greater(t, strings.Count(out, "\n"), 10)

	_, err = qrcode.Terminal(" ", false)
	assert.ErrorIs(t, err, qrcode.ErrEmptyContent)
}
