package platform

import (
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/checktick/survey-key-recovery/interfaces"
)

// KEKSize is the size of the derived key-encryption key.
const KEKSize = 32

// Argon2id parameters for password-based wrapping. Moderate settings: the
// wrap runs once per recovery on an operator machine.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
)

const (
	wrapSaltSize  = 16
	wrapNonceSize = 24
)

// kekInfo binds derived keys to this protocol so the same components never
// yield a usable key in another context.
var kekInfo = []byte("survey-key-recovery/kek/v1")

// DeriveKEK derives the key-encryption key from the custodian-held and
// vault-held components with HKDF-SHA-512. The user and survey identities
// salt the derivation so per-survey keys are independent.
func DeriveKEK(custodian, vault []byte, user interfaces.UserID, survey interfaces.SurveyID) ([]byte, error) {
	if len(custodian) == 0 || len(vault) == 0 {
		return nil, errors.New("both key components are required")
	}

	secret := make([]byte, 0, len(custodian)+len(vault))
	secret = append(secret, custodian...)
	secret = append(secret, vault...)
	defer Wipe(secret)

	salt := []byte(string(user) + "/" + string(survey))

	kek := make([]byte, KEKSize)
	if _, err := io.ReadFull(hkdf.New(sha512.New, secret, salt, kekInfo), kek); err != nil {
		return nil, fmt.Errorf("failed to derive key-encryption key: %w", err)
	}
	return kek, nil
}

// WrapKey seals the key under a password. The returned blob is
// salt || nonce || ciphertext with an Argon2id-derived secretbox key.
func WrapKey(key []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("a wrapping password is required")
	}

	salt := make([]byte, wrapSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate wrap salt: %w", err)
	}

	var nonce [wrapNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate wrap nonce: %w", err)
	}

	var boxKey [32]byte
	derived := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, 32)
	copy(boxKey[:], derived)
	Wipe(derived)
	defer Wipe(boxKey[:])

	blob := make([]byte, 0, wrapSaltSize+wrapNonceSize+len(key)+secretbox.Overhead)
	blob = append(blob, salt...)
	blob = append(blob, nonce[:]...)
	return secretbox.Seal(blob, key, &nonce, &boxKey), nil
}

// UnwrapKey opens a blob produced by WrapKey.
func UnwrapKey(blob []byte, password string) ([]byte, error) {
	if len(blob) < wrapSaltSize+wrapNonceSize+secretbox.Overhead {
		return nil, errors.New("wrapped key blob is truncated")
	}

	salt := blob[:wrapSaltSize]
	var nonce [wrapNonceSize]byte
	copy(nonce[:], blob[wrapSaltSize:wrapSaltSize+wrapNonceSize])

	var boxKey [32]byte
	derived := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, 32)
	copy(boxKey[:], derived)
	Wipe(derived)
	defer Wipe(boxKey[:])

	key, ok := secretbox.Open(nil, blob[wrapSaltSize+wrapNonceSize:], &nonce, &boxKey)
	if !ok {
		return nil, errors.New("failed to unwrap key: wrong password or corrupted blob")
	}
	return key, nil
}

// Wipe zeroes a byte slice holding key material.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
