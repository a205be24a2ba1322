package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

var randomRead = rand.Read

// scrypt parameters for KEK derivation. N is interactive-grade; the KEK is
// derived once per sweep cycle, not per request.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	kekKeyLength = 32
)

// DeriveKEK derives a tenant-scoped key-encryption key from the platform
// master encryption key and a tenant-unique salt. Deterministic for a given
// (key, salt) pair.
func DeriveKEK(masterKeyHex string, salt []byte) ([]byte, error) {
	masterKey, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid master encryption key: %w", err)
	}
	return scrypt.Key(masterKey, salt, scryptN, scryptR, scryptP, kekKeyLength)
}

// GenerateRandomToken generates a random token of specified byte length
func GenerateRandomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := randomRead(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// Zero overwrites key material in place. Call it as soon as a seed or
// private key scalar leaves the signing call stack.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
