package domain

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies how a user authenticates.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
)

// Valid reports whether p is a known provider tag.
func (p Provider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderGoogle:
		return true
	}
	return false
}

// User represents an identity record. For local users AuthID holds the bcrypt
// password hash; for google users it holds the provider subject id. The
// (Provider, AuthID) pair is unique, as is Email.
type User struct {
	ID          uuid.UUID
	Name        string
	Email       string
	Provider    Provider
	AuthID      string
	PhotoURL    *string
	Blacklisted bool
	CreatedAt   time.Time
}

// DefaultRole is assigned to every user created through signup or a first
// federated login.
const DefaultRole = "User"
