package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost used for WEBUI_PASSWORD.
const DefaultCost = 12

var (
	// ErrEmptyPassword is returned when hashing or checking an empty password.
	ErrEmptyPassword = errors.New("auth: password cannot be empty")
	// ErrPasswordMismatch is returned for a wrong password. It deliberately
	// does not distinguish a malformed hash from a mismatch.
	ErrPasswordMismatch = errors.New("auth: password does not match")
	// ErrInvalidHash is returned when no hash is configured.
	ErrInvalidHash = errors.New("auth: invalid password hash")
)

// HashPassword hashes password at DefaultCost.
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, DefaultCost)
}

// HashPasswordWithCost hashes password at cost, clamped into the range
// bcrypt accepts.
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares password against hash in constant time.
func VerifyPassword(password, hash string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if hash == "" {
		return ErrInvalidHash
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// HashCost returns the cost factor embedded in hash.
func HashCost(hash string) (int, error) {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return 0, ErrInvalidHash
	}
	return cost, nil
}
