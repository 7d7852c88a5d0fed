// Package cryptox hashes account passwords with Argon2id.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize = 16
	keySize  = 32
)

// DeriveKey stretches password with salt using Argon2id
// (1 pass, 64 MiB, 4 lanes).
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, keySize)
}

// NewSalt returns a random salt for HashPassword.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// HashPassword returns a fresh salt and the derived verifier to store.
func HashPassword(password []byte) (salt, verifier []byte, err error) {
	salt, err = NewSalt()
	if err != nil {
		return nil, nil, err
	}
	return salt, DeriveKey(password, salt), nil
}

// VerifyPassword compares password against a stored salt and verifier in
// constant time.
func VerifyPassword(password, salt, verifier []byte) bool {
	return subtle.ConstantTimeCompare(DeriveKey(password, salt), verifier) == 1
}
