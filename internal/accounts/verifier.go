package accounts

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

// Verifier checks a password against a stored user and prepares what gets
// stored for a new account.
type Verifier interface {
	Verify(u User, password string) error
	// Prepare returns the hash to keep on the remote record, or "".
	Prepare(password string) (string, error)
}

// OpenVerifier accepts any password and stores nothing.
type OpenVerifier struct{}

func (OpenVerifier) Verify(User, string) error      { return nil }
func (OpenVerifier) Prepare(string) (string, error) { return "", nil }

type BcryptVerifier struct {
	Cost int
}

func (v BcryptVerifier) Verify(u User, password string) error {
	if u.PasswordHash == "" {
		return storeerr.Unauthorized("account has no password set")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return storeerr.Unauthorized("invalid email or password")
	}
	return nil
}

func (v BcryptVerifier) Prepare(password string) (string, error) {
	if len(password) < 6 {
		return "", storeerr.InvalidInput("password must be at least 6 characters")
	}
	cost := v.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
