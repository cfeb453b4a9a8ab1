// Package accounts defines shopper records and the credential check used at login.
package accounts

import (
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Phone      string    `json:"phone"`
	JoinedDate time.Time `json:"joinedDate"`
	// PasswordHash only travels to the remote store. Never cached locally.
	PasswordHash string `json:"passwordHash,omitempty"`
}

// Public strips secrets before the record is written to the local cache.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

type AddressType string

const (
	AddressShipping AddressType = "shipping"
	AddressBilling  AddressType = "billing"
)

type Address struct {
	ID        string      `json:"id"`
	Type      AddressType `json:"type"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Street    string      `json:"street"`
	City      string      `json:"city"`
	State     string      `json:"state"`
	ZipCode   string      `json:"zipCode"`
	Country   string      `json:"country"`
	Phone     string      `json:"phone"`
	IsDefault bool        `json:"isDefault"`
}

func (a Address) Validate() error {
	if a.Type != AddressShipping && a.Type != AddressBilling {
		return storeerr.InvalidInput("address type must be shipping or billing, got %q", a.Type)
	}
	if strings.TrimSpace(a.Street) == "" || strings.TrimSpace(a.City) == "" {
		return storeerr.InvalidInput("address needs street and city")
	}
	return nil
}

// Record is the full payload stored remotely under user:<email>.
type Record struct {
	User
	Addresses []Address `json:"addresses"`
	Wishlist  []string  `json:"wishlist"`
}

// NormalizeEmail trims and lower-cases an email and checks its basic shape.
func NormalizeEmail(email string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	at := strings.Index(e, "@")
	if at <= 0 || at == len(e)-1 {
		return "", storeerr.InvalidInput("invalid email %q", email)
	}
	return e, nil
}
