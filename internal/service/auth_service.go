package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/disasterapp/auth-service/internal/domain"
	"github.com/disasterapp/auth-service/internal/google"
	"github.com/disasterapp/auth-service/internal/password"
	"github.com/disasterapp/auth-service/internal/repository"
	"github.com/disasterapp/auth-service/internal/token"
)

// AssertionVerifier checks a federated identity assertion and returns its
// verified claims.
type AssertionVerifier interface {
	Verify(ctx context.Context, idToken string) (google.Claims, error)
}

// AuthService composes credential verification, token issuance, and the two
// store contracts into the auth flows. Each flow is a short-lived transaction;
// no state is held between requests.
type AuthService struct {
	users    repository.UserRepository
	tokens   repository.RefreshTokenRepository
	issuer   *token.Issuer
	verifier AssertionVerifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService wires the orchestrator.
func NewAuthService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	issuer *token.Issuer,
	verifier AssertionVerifier,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		issuer:   issuer,
		verifier: verifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Login authenticates a local email/password pair. A missing user, a wrong
// password, and a federated-only account all fail identically so callers
// cannot probe which emails are registered.
func (s *AuthService) Login(ctx context.Context, email, suppliedPassword string) (domain.AuthResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AuthResponse{}, domain.ErrInvalidCredentials
		}
		span.RecordError(err)
		return domain.AuthResponse{}, storeFailure("load user", err)
	}

	if user.Provider != domain.ProviderLocal {
		return domain.AuthResponse{}, domain.ErrInvalidCredentials
	}
	if !password.Verify(user.AuthID, suppliedPassword) {
		return domain.AuthResponse{}, domain.ErrInvalidCredentials
	}

	roles, err := s.users.GetRoleNames(ctx, user.ID)
	if err != nil {
		span.RecordError(err)
		return domain.AuthResponse{}, storeFailure("load roles", err)
	}

	resp, err := s.issueBundle(ctx, user, roles)
	if err != nil {
		span.RecordError(err)
		return domain.AuthResponse{}, err
	}

	s.audit("auth.login.success", "user_id", user.ID)
	return resp, nil
}

// Signup registers a local user and logs them in. Upstream validates the
// confirm-password pair too, but the core rejects a mismatch itself rather
// than assume upstream validation ran.
func (s *AuthService) Signup(ctx context.Context, fullName, email, pass, confirmPassword string, agreeToTerms bool) (domain.AuthResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Signup")
	defer span.End()

	if pass != confirmPassword {
		return domain.AuthResponse{}, domain.ErrPasswordMismatch
	}

	normalized := normalizeEmail(email)
	exists, err := s.users.ExistsByEmail(ctx, normalized)
	if err != nil {
		span.RecordError(err)
		return domain.AuthResponse{}, storeFailure("check existing user", err)
	}
	if exists {
		return domain.AuthResponse{}, domain.ErrDuplicateUser
	}
	if !agreeToTerms {
		return domain.AuthResponse{}, domain.ErrTermsNotAccepted
	}

	hashed, err := password.Hash(pass)
	if err != nil {
		span.RecordError(err)
		return domain.AuthResponse{}, err
	}

	user := domain.User{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(fullName),
		Email:     normalized,
		Provider:  domain.ProviderLocal,
		AuthID:    hashed,
		CreatedAt: s.now().UTC(),
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		span.RecordError(err)
		return domain.AuthResponse{}, storeFailure("create user", err)
	}

	resp, err := s.issueBundle(ctx, created, []string{domain.DefaultRole})
	if err != nil {
		span.RecordError(err)
		return domain.AuthResponse{}, err
	}

	s.audit("auth.signup.success", "user_id", created.ID)
	return resp, nil
}

// GoogleLogin verifies a Google ID token and logs the subject in, creating
// the user on first contact. An existing local account is upgraded to the
// google provider in place; the migration is one-way.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (domain.AuthResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.GoogleLogin")
	defer span.End()

	if s.verifier == nil {
		return domain.AuthResponse{}, fmt.Errorf("google verifier: %w", domain.ErrConfiguration)
	}

	claims, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrConfiguration) {
			return domain.AuthResponse{}, err
		}
		return domain.AuthResponse{}, domain.ErrInvalidAssertion
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(claims.Email))
	switch {
	case err == nil:
		if user.Provider != domain.ProviderGoogle {
			user.Provider = domain.ProviderGoogle
			user.AuthID = claims.Subject
			if claims.Picture != "" {
				picture := claims.Picture
				user.PhotoURL = &picture
			}
			user, err = s.users.Update(ctx, user)
			if err != nil {
				span.RecordError(err)
				return domain.AuthResponse{}, storeFailure("upgrade user provider", err)
			}
		}
	case errors.Is(err, pgx.ErrNoRows):
		newUser := domain.User{
			ID:        uuid.New(),
			Name:      claims.Name,
			Email:     normalizeEmail(claims.Email),
			Provider:  domain.ProviderGoogle,
			AuthID:    claims.Subject,
			CreatedAt: s.now().UTC(),
		}
		if claims.Picture != "" {
			picture := claims.Picture
			newUser.PhotoURL = &picture
		}
		user, err = s.users.Create(ctx, newUser)
		if err != nil {
			span.RecordError(err)
			return domain.AuthResponse{}, storeFailure("create user", err)
		}
	default:
		span.RecordError(err)
		return domain.AuthResponse{}, storeFailure("load user", err)
	}

	roles, err := s.users.GetRoleNames(ctx, user.ID)
	if err != nil {
		span.RecordError(err)
		return domain.AuthResponse{}, storeFailure("load roles", err)
	}
	if len(roles) == 0 {
		roles = []string{domain.DefaultRole}
	}

	resp, err := s.issueBundle(ctx, user, roles)
	if err != nil {
		span.RecordError(err)
		return domain.AuthResponse{}, err
	}

	s.audit("auth.google_login.success", "user_id", user.ID)
	return resp, nil
}

// Refresh exchanges a valid refresh token for a new access/refresh pair. The
// old token is invalidated with a compare-and-delete before the new one is
// persisted, so two concurrent calls with the same value yield one winner and
// one ErrInvalidOrExpiredToken.
func (s *AuthService) Refresh(ctx context.Context, oldToken string) (domain.AuthResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	stored, err := s.tokens.GetByValue(ctx, oldToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AuthResponse{}, domain.ErrInvalidOrExpiredToken
		}
		span.RecordError(err)
		return domain.AuthResponse{}, storeFailure("load refresh token", err)
	}
	if stored.Expired(s.now().UTC()) {
		return domain.AuthResponse{}, domain.ErrInvalidOrExpiredToken
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AuthResponse{}, domain.ErrInvalidOrExpiredToken
		}
		span.RecordError(err)
		return domain.AuthResponse{}, storeFailure("load user", err)
	}

	roles, err := s.users.GetRoleNames(ctx, user.ID)
	if err != nil {
		span.RecordError(err)
		return domain.AuthResponse{}, storeFailure("load roles", err)
	}

	deleted, err := s.tokens.DeleteByValue(ctx, oldToken)
	if err != nil {
		span.RecordError(err)
		return domain.AuthResponse{}, storeFailure("rotate refresh token", err)
	}
	if !deleted {
		// Lost the rotation race; another request already consumed the token.
		return domain.AuthResponse{}, domain.ErrInvalidOrExpiredToken
	}

	resp, err := s.issueBundle(ctx, user, roles)
	if err != nil {
		span.RecordError(err)
		return domain.AuthResponse{}, err
	}

	s.audit("auth.refresh.success", "user_id", user.ID)
	return resp, nil
}

// Logout deletes the stored refresh token and reports whether a row was
// removed. Deleting an absent token is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (bool, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	deleted, err := s.tokens.DeleteByValue(ctx, refreshToken)
	if err != nil {
		span.RecordError(err)
		return false, storeFailure("delete refresh token", err)
	}

	s.audit("auth.logout", "deleted", deleted)
	return deleted, nil
}

// LogoutAll revokes every refresh token belonging to the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) (bool, error) {
	ctx, span := s.startSpan(ctx, "AuthService.LogoutAll")
	defer span.End()

	deleted, err := s.tokens.DeleteAllForUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return false, storeFailure("delete user refresh tokens", err)
	}

	s.audit("auth.logout_all", "user_id", userID, "deleted", deleted)
	return deleted, nil
}

// ValidateAccessToken reports whether the token passes signature, issuer,
// audience, and expiry checks. Invalidity is a boolean, never an error.
func (s *AuthService) ValidateAccessToken(_ context.Context, accessToken string) bool {
	return s.issuer.Valid(accessToken)
}

// AccessTokenClaims validates the token and returns its claims for the
// transport middleware.
func (s *AuthService) AccessTokenClaims(_ context.Context, accessToken string) (string, *token.AccessTokenClaims, error) {
	std, custom, err := s.issuer.ValidateAccessToken(accessToken)
	if err != nil {
		return "", nil, err
	}
	return std.Subject, custom, nil
}

func (s *AuthService) issueBundle(ctx context.Context, user domain.User, roles []string) (domain.AuthResponse, error) {
	accessToken, expiresAt, err := s.issuer.IssueAccessToken(user, roles)
	if err != nil {
		return domain.AuthResponse{}, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, err := s.issuer.NewRefreshToken(user.ID)
	if err != nil {
		return domain.AuthResponse{}, err
	}
	if _, err := s.tokens.Create(ctx, refreshToken); err != nil {
		return domain.AuthResponse{}, storeFailure("persist refresh token", err)
	}

	return domain.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken.Token,
		ExpiresAt:    expiresAt,
		User: domain.UserProfile{
			ID:       user.ID,
			Name:     user.Name,
			Email:    user.Email,
			PhotoURL: user.PhotoURL,
			Roles:    roles,
		},
	}, nil
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer("auth-service").Start(ctx, name)
}

func (s *AuthService) audit(event string, kv ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Sugar().Infow(event, kv...)
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
