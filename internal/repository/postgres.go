package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/disasterapp/auth-service/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository         = (*PostgresUserRepo)(nil)
	_ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
)

const userColumns = `user_id, name, email, auth_provider, auth_id, photo_url, is_blacklisted, created_at`

// PostgresUserRepo implements UserRepository on pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
	return scanUser(row)
}

func (r *PostgresUserRepo) GetByProviderIdentity(ctx context.Context, provider domain.Provider, authID string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE auth_provider = $1 AND auth_id = $2`, string(provider), authID)
	return scanUser(row)
}

const insertUserSQL = `INSERT INTO users (user_id, name, email, auth_provider, auth_id, photo_url, is_blacklisted, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + userColumns

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.Name,
		user.Email,
		string(user.Provider),
		user.AuthID,
		user.PhotoURL,
		user.Blacklisted,
		user.CreatedAt,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

const updateUserSQL = `UPDATE users
SET name = $2, email = $3, auth_provider = $4, auth_id = $5, photo_url = $6, is_blacklisted = $7
WHERE user_id = $1
RETURNING ` + userColumns

func (r *PostgresUserRepo) Update(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, updateUserSQL,
		user.ID,
		user.Name,
		user.Email,
		string(user.Provider),
		user.AuthID,
		user.PhotoURL,
		user.Blacklisted,
	)
	updated, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

func (r *PostgresUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (r *PostgresUserRepo) GetRoleNames(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.role_id
		WHERE ur.user_id = $1
		ORDER BY r.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("get user roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		user     domain.User
		provider string
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&provider,
		&user.AuthID,
		&user.PhotoURL,
		&user.Blacklisted,
		&user.CreatedAt,
	); err != nil {
		return domain.User{}, err
	}
	user.Provider = domain.Provider(provider)
	return user, nil
}

// PostgresRefreshTokenRepo implements RefreshTokenRepository on pgx.
type PostgresRefreshTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRefreshTokenRepo(pool *pgxpool.Pool) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: pool}
}

const refreshTokenColumns = `refresh_token_id, token, user_id, created_at, expired_at`

func (r *PostgresRefreshTokenRepo) GetByValue(ctx context.Context, token string) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token = $1`, token)

	var stored domain.RefreshToken
	if err := row.Scan(&stored.ID, &stored.Token, &stored.UserID, &stored.CreatedAt, &stored.ExpiresAt); err != nil {
		return domain.RefreshToken{}, err
	}
	return stored, nil
}

const insertRefreshTokenSQL = `INSERT INTO refresh_tokens (refresh_token_id, token, user_id, created_at, expired_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + refreshTokenColumns

func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, insertRefreshTokenSQL,
		token.ID,
		token.Token,
		token.UserID,
		token.CreatedAt,
		token.ExpiresAt,
	)

	var created domain.RefreshToken
	if err := row.Scan(&created.ID, &created.Token, &created.UserID, &created.CreatedAt, &created.ExpiresAt); err != nil {
		return domain.RefreshToken{}, fmt.Errorf("create refresh token: %w", err)
	}
	return created, nil
}

// DeleteByValue removes the row for token and reports whether this call
// deleted it. The unique constraint on token makes the delete a single-winner
// operation under concurrent rotation.
func (r *PostgresRefreshTokenRepo) DeleteByValue(ctx context.Context, token string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return false, fmt.Errorf("delete refresh token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRefreshTokenRepo) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("delete user refresh tokens: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
