package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/disasterapp/auth-service/internal/domain"
)

// UserRepository is the contract the auth core consumes for user records.
// Absence is signaled with pgx.ErrNoRows regardless of backing store.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetByProviderIdentity(ctx context.Context, provider domain.Provider, authID string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Update(ctx context.Context, user domain.User) (domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	GetRoleNames(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// RefreshTokenRepository persists opaque refresh tokens. DeleteByValue is a
// compare-and-delete: it reports whether this call removed the row, so two
// concurrent rotations of the same token produce exactly one winner.
type RefreshTokenRepository interface {
	GetByValue(ctx context.Context, token string) (domain.RefreshToken, error)
	Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error)
	DeleteByValue(ctx context.Context, token string) (bool, error)
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) (bool, error)
}
