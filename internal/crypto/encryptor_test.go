package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e, err := NewEncryptor("test-passphrase")
	require.NoError(t, err)

	sealed, err := e.Encrypt("sk-very-secret")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "secret")

	plain, err := e.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-very-secret", plain)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	e, err := NewEncryptor("test-passphrase")
	require.NoError(t, err)

	a, err := e.Encrypt("same input")
	require.NoError(t, err)
	b, err := e.Encrypt("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "fresh nonce per call")
}

func TestDecryptWrongKey(t *testing.T) {
	e1, err := NewEncryptor("key-one")
	require.NoError(t, err)
	e2, err := NewEncryptor("key-two")
	require.NoError(t, err)

	sealed, err := e1.Encrypt("payload")
	require.NoError(t, err)

	_, err = e2.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestDecryptGarbage(t *testing.T) {
	e, err := NewEncryptor("key")
	require.NoError(t, err)

	_, err = e.Decrypt("not base64 at all!!!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = e.Decrypt("YWJj")
	assert.ErrorIs(t, err, ErrInvalidCiphertext, "too short for a nonce")
}

func TestNewEncryptorEmptyKey(t *testing.T) {
	_, err := NewEncryptor("")
	require.Error(t, err)
}
