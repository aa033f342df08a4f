package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken persists an opaque bearer credential that can be exchanged for
// a new access token. Token is globally unique; at most one row exists per
// value, and a row is deleted on logout or when it is rotated.
type RefreshToken struct {
	ID        uuid.UUID
	Token     string
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// UserProfile is the projection of a user returned alongside tokens.
type UserProfile struct {
	ID       uuid.UUID `json:"userId"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	PhotoURL *string   `json:"photoUrl,omitempty"`
	Roles    []string  `json:"roles"`
}

// AuthResponse is the bundle returned by every successful auth flow.
type AuthResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	User         UserProfile `json:"user"`
}
