package crypto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKEK(t *testing.T) {
	masterKey := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

	kek1, err := DeriveKEK(masterKey, []byte("tenant-a"))
	require.NoError(t, err)
	require.Len(t, kek1, 32)

	// deterministic per (key, salt)
	again, err := DeriveKEK(masterKey, []byte("tenant-a"))
	require.NoError(t, err)
	assert.Equal(t, kek1, again)

	// tenant-scoped
	kek2, err := DeriveKEK(masterKey, []byte("tenant-b"))
	require.NoError(t, err)
	assert.NotEqual(t, kek1, kek2)
}

func TestDeriveKEKInvalidMasterKey(t *testing.T) {
	_, err := DeriveKEK("not-hex", []byte("salt"))
	assert.Error(t, err)
}

func TestGenerateRandomToken(t *testing.T) {
	tok, err := GenerateRandomToken(16)
	require.NoError(t, err)
	assert.Len(t, tok, 32) // hex doubles the byte length

	other, err := GenerateRandomToken(16)
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}

func TestGenerateRandomTokenReadFailure(t *testing.T) {
	orig := randomRead
	randomRead = func([]byte) (int, error) { return 0, errors.New("entropy unavailable") }
	defer func() { randomRead = orig }()

	_, err := GenerateRandomToken(8)
	assert.Error(t, err)
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}
