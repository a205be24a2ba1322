package usecases

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"custody-sweep.backend/internal/domain/entities"
	domainerrors "custody-sweep.backend/internal/domain/errors"
	"custody-sweep.backend/internal/domain/repositories"
	pkgcrypto "custody-sweep.backend/pkg/crypto"
)

const masterSeedSize = 32

var vaultRandReader io.Reader = rand.Reader

// VaultUsecase owns the encrypted master seed per tenant. It hands decrypted
// seeds and derived keys only to callers inside the signing call stack;
// nothing here persists or logs key material.
type VaultUsecase struct {
	walletRepo    repositories.MasterWalletRepository
	encryptionKey string // hex master encryption key, KEK derived per tenant
}

// NewVaultUsecase creates a new vault usecase
func NewVaultUsecase(walletRepo repositories.MasterWalletRepository, encryptionKey string) *VaultUsecase {
	return &VaultUsecase{
		walletRepo:    walletRepo,
		encryptionKey: encryptionKey,
	}
}

// RegisterTenant onboards a tenant: generates a master seed, stores it
// encrypted and creates the wallet row with sweeping enabled. The plaintext
// seed never leaves this call.
func (u *VaultUsecase) RegisterTenant(ctx context.Context, input *entities.RegisterTenantInput) (*entities.MasterWallet, error) {
	tenantID, err := uuid.Parse(input.TenantID)
	if err != nil {
		return nil, domainerrors.BadRequest("invalid tenant ID")
	}
	if !common.IsHexAddress(input.CollectionAddress) {
		return nil, domainerrors.BadRequest("invalid collection address")
	}
	if _, ok := new(big.Int).SetString(input.MinSweepAmount, 10); !ok {
		return nil, domainerrors.BadRequest("minSweepAmount must be a base-unit integer")
	}

	seed := make([]byte, masterSeedSize)
	if _, err := io.ReadFull(vaultRandReader, seed); err != nil {
		return nil, err
	}
	defer pkgcrypto.Zero(seed)

	encrypted, err := u.EncryptSeed(tenantID, seed)
	if err != nil {
		return nil, err
	}

	wallet := &entities.MasterWallet{
		TenantID:          tenantID,
		EncryptedSeed:     encrypted,
		CollectionAddress: common.HexToAddress(input.CollectionAddress).Hex(),
		MinSweepAmount:    input.MinSweepAmount,
		SweepEnabled:      true,
	}
	if err := u.walletRepo.Create(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// GetWallet returns the tenant's wallet row. The encrypted seed is excluded
// from serialization.
func (u *VaultUsecase) GetWallet(ctx context.Context, tenantID uuid.UUID) (*entities.MasterWallet, error) {
	return u.walletRepo.GetByTenantID(ctx, tenantID)
}

// SetSweepEnabled toggles the tenant-level sweep gate
func (u *VaultUsecase) SetSweepEnabled(ctx context.Context, tenantID uuid.UUID, enabled bool) error {
	return u.walletRepo.SetSweepEnabled(ctx, tenantID, enabled)
}

// DecryptSeed decrypts the tenant's master seed. Callers must Zero the
// returned slice as soon as derivation is done. Decryption failure is fatal
// for the tenant's sweep cycle and is never retried automatically.
func (u *VaultUsecase) DecryptSeed(ctx context.Context, tenantID uuid.UUID) ([]byte, error) {
	wallet, err := u.walletRepo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	seed, err := u.decrypt(tenantID, wallet.EncryptedSeed)
	if err != nil {
		return nil, domainerrors.ErrSeedDecryptionFailed
	}
	return seed, nil
}

// EncryptSeed encrypts a master seed for storage. Used at tenant onboarding.
func (u *VaultUsecase) EncryptSeed(tenantID uuid.UUID, seed []byte) (string, error) {
	gcm, err := u.gcmForTenant(tenantID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(vaultRandReader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, seed, nil)
	return hex.EncodeToString(ciphertext), nil
}

func (u *VaultUsecase) decrypt(tenantID uuid.UUID, encryptedSeed string) ([]byte, error) {
	gcm, err := u.gcmForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	data, err := hex.DecodeString(encryptedSeed)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext shorter than nonce")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func (u *VaultUsecase) gcmForTenant(tenantID uuid.UUID) (cipher.AEAD, error) {
	kek, err := pkgcrypto.DeriveKEK(u.encryptionKey, tenantID[:])
	if err != nil {
		return nil, err
	}
	defer pkgcrypto.Zero(kek)

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// DeriveChild derives the keypair for a derivation index. Pure function of
// (seed, index): identical inputs always yield the identical address and
// signing key, across calls and process restarts.
func (u *VaultUsecase) DeriveChild(seed []byte, index uint32) (*ecdsa.PrivateKey, string, error) {
	msg := make([]byte, 4)
	binary.BigEndian.PutUint32(msg, index)

	// The HMAC output can land outside the secp256k1 scalar range. Re-hash
	// with a counter byte until it fits, as BIP-32 does for invalid keys.
	for counter := byte(0); counter < 255; counter++ {
		mac := hmac.New(sha512.New, seed)
		mac.Write(msg)
		if counter > 0 {
			mac.Write([]byte{counter})
		}
		digest := mac.Sum(nil)

		priv, err := ethcrypto.ToECDSA(digest[:32])
		pkgcrypto.Zero(digest)
		if err == nil {
			address := ethcrypto.PubkeyToAddress(priv.PublicKey).Hex()
			return priv, address, nil
		}
	}
	return nil, "", errors.New("derivation exhausted retry counter")
}

// DeriveAddress derives only the address for an index, zeroing the key.
func (u *VaultUsecase) DeriveAddress(seed []byte, index uint32) (string, error) {
	priv, address, err := u.DeriveChild(seed, index)
	if err != nil {
		return "", err
	}
	ZeroPrivateKey(priv)
	return address, nil
}

// ZeroPrivateKey clears a derived key's scalar
func ZeroPrivateKey(priv *ecdsa.PrivateKey) {
	if priv != nil && priv.D != nil {
		priv.D.SetInt64(0)
	}
}
