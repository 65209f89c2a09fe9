package security

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

type PinHasher interface {
	Hash(pin string) (string, error)
	Compare(hashedPin string, pin string) error
}

// Bcrypt pin hasher, used unless the caller provides another one.
// The sha256 pre-hash keeps the input to bcrypt fixed-size.
type BcryptHasher struct{}

var DefaultHasher PinHasher = BcryptHasher{}

func (h BcryptHasher) Hash(pin string) (string, error) {
	sum := sha256.Sum256([]byte(pin))
	hash, err := bcrypt.GenerateFromPassword(sum[:], bcrypt.DefaultCost)
	return string(hash), err
}

func (h BcryptHasher) Compare(hashedPin string, pin string) error {
	sum := sha256.Sum256([]byte(pin))
	return bcrypt.CompareHashAndPassword([]byte(hashedPin), sum[:])
}
