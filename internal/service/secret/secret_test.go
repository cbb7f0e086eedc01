package secret

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipher_RoundTrip(t *testing.T) {
	c := NewCipher(filepath.Join(t.TempDir(), "secrets", "app.key"))

	tests := []struct {
		name  string
		plain string
	}{
		{"empty", ""},
		{"ascii", "sk-test-1234567890"},
		{"multibyte", "密钥 🔑 ключ"},
		{"long", string(bytes.Repeat([]byte("x"), 4096))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := c.Encrypt(tt.plain)
			require.NoError(t, err)
			assert.NotContains(t, enc, "sk-test")

			dec, err := c.Decrypt(enc)
			require.NoError(t, err)
			assert.Equal(t, tt.plain, dec)
		})
	}
}

func TestCipher_KeyFileCreatedOnceAndReused(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "app.key")

	first := NewCipher(keyFile)
	enc, err := first.Encrypt("sk-persisted")
	require.NoError(t, err)

	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	before, err := os.ReadFile(keyFile)
	require.NoError(t, err)

	second := NewCipher(keyFile)
	dec, err := second.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "sk-persisted", dec)

	after, err := os.ReadFile(keyFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCipher_DecryptRejectsTampering(t *testing.T) {
	c, err := NewCipherWithKey(bytes.Repeat([]byte{7}, KeySize))
	require.NoError(t, err)

	enc, err := c.Encrypt("sk-test")
	require.NoError(t, err)

	other, err := NewCipherWithKey(bytes.Repeat([]byte{8}, KeySize))
	require.NoError(t, err)
	_, err = other.Decrypt(enc)
	assert.Error(t, err)

	_, err = c.Decrypt("not-base64!!")
	assert.Error(t, err)

	_, err = c.Decrypt("AQ")
	assert.Error(t, err)
}

func TestNewCipherWithKey_InvalidLength(t *testing.T) {
	_, err := NewCipherWithKey([]byte("short"))
	assert.Error(t, err)
}
