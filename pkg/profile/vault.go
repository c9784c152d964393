package profile

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// PassphraseEnv names the environment variable holding the vault passphrase.
const PassphraseEnv = "BOOKER_VAULT_PASSPHRASE"

const (
	sealedPrefix        = "sealed:"
	sealedFormatVersion = 1
)

var (
	// ErrWrongPassphrase is returned when the passphrase is incorrect or the
	// sealed value has been modified.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted sealed password")

	// ErrNoPassphrase is returned when the vault has no passphrase configured.
	ErrNoPassphrase = errors.New("vault passphrase is not set (" + PassphraseEnv + ")")
)

// sealedBlob is the JSON envelope behind the "sealed:" prefix.
type sealedBlob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// IsSealed reports whether s looks like a value produced by Vault.Seal.
func IsSealed(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), sealedPrefix)
}

// Vault seals and opens key passwords with a passphrase-derived key
// (scrypt + ChaCha20-Poly1305).
type Vault struct {
	passphrase []byte
	n, r, p    int
}

// NewVault creates a vault. The passphrase is copied.
func NewVault(passphrase string) *Vault {
	n, r, p := scryptParamsDefault()
	return &Vault{passphrase: []byte(passphrase), n: n, r: r, p: p}
}

// NewVaultFromEnv reads the passphrase from PassphraseEnv.
func NewVaultFromEnv() *Vault {
	return NewVault(os.Getenv(PassphraseEnv))
}

// Seal encrypts plaintext and returns a "sealed:" string for profile files.
func (v *Vault) Seal(plaintext []byte) (string, error) {
	if len(v.passphrase) == 0 {
		return "", ErrNoPassphrase
	}

	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return "", err
	}
	key, err := scrypt.Key(v.passphrase, salt[:], v.n, v.r, v.p, chacha20poly1305.KeySize)
	if err != nil {
		return "", err
	}
	defer zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", err
	}
	var nonce [chacha20poly1305.NonceSize]byte // zero nonce; the salt-bound key is unique per seal
	ct := aead.Seal(nil, nonce[:], plaintext, salt[:])

	raw, err := json.Marshal(sealedBlob{V: sealedFormatVersion, Salt: salt[:], N: v.n, R: v.r, P: v.p, Cipher: ct})
	if err != nil {
		return "", err
	}
	return sealedPrefix + base64.StdEncoding.EncodeToString(raw), nil
}

// Open decrypts a sealed value. Callers must wipe the result with Wipe once
// it has been used.
func (v *Vault) Open(sealed string) ([]byte, error) {
	if len(v.passphrase) == 0 {
		return nil, ErrNoPassphrase
	}
	if !IsSealed(sealed) {
		return nil, errors.New("value is not sealed")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(strings.TrimSpace(sealed), sealedPrefix))
	if err != nil {
		return nil, fmt.Errorf("malformed sealed password: %w", err)
	}
	var bl sealedBlob
	if err := json.Unmarshal(raw, &bl); err != nil {
		return nil, fmt.Errorf("malformed sealed password: %w", err)
	}
	if bl.V > sealedFormatVersion {
		return nil, fmt.Errorf("unsupported sealed password version %d", bl.V)
	}

	key, err := scrypt.Key(v.passphrase, bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

// Password resolves the credential's key password. It satisfies the session
// credential source.
func (v *Vault) Password(ctx context.Context, ref CredentialRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.Open(ref.SealedPassword)
}

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	zero(b)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Tunables for scrypt key derivation.
func scryptParamsDefault() (N, r, p int) { return 1 << 15, 8, 1 }
