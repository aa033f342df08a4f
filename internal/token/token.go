package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/disasterapp/auth-service/internal/domain"
)

// AccessTokenClaims carries the custom claims embedded in access tokens.
type AccessTokenClaims struct {
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// Issuer mints and validates signed access tokens and generates opaque
// refresh tokens. Signing key, issuer, and audience are fixed per process.
type Issuer struct {
	key             []byte
	issuer          string
	audience        string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	refreshBytes    int
	now             func() time.Time
}

// Option customizes an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source, used by expiry tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer builds an Issuer. HS256 requires a key at least as long as the
// hash output (RFC 7518); a shorter key is a configuration fault surfaced at
// startup, not at signing time.
func NewIssuer(key, issuer, audience string, accessTTL, refreshTTL time.Duration, refreshBytes int, opts ...Option) (*Issuer, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("signing key must be at least 32 bytes: %w", domain.ErrConfiguration)
	}
	if refreshBytes <= 0 {
		refreshBytes = 64
	}
	i := &Issuer{
		key:             []byte(key),
		issuer:          issuer,
		audience:        audience,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
		refreshBytes:    refreshBytes,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// IssueAccessToken signs an HS256 access token for the user. Claims: subject
// is the user id, plus name, email, and the role list in order. Returns the
// token and its absolute expiry.
func (i *Issuer) IssueAccessToken(user domain.User, roles []string) (string, time.Time, error) {
	now := i.now().UTC()
	expiry := now.Add(i.accessTokenTTL)

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: i.key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build signer: %w", err)
	}

	std := jwt.Claims{
		Subject:  user.ID.String(),
		Issuer:   i.issuer,
		Audience: jwt.Audience{i.audience},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(expiry),
	}
	custom := AccessTokenClaims{
		Name:  user.Name,
		Email: user.Email,
		Roles: roles,
	}

	signed, err := jwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiry, nil
}

// ValidateAccessToken verifies signature, issuer, audience, and expiry with
// zero clock-skew tolerance and returns the claims.
func (i *Issuer) ValidateAccessToken(tokenString string) (*jwt.Claims, *AccessTokenClaims, error) {
	parsed, err := jwt.ParseSigned(tokenString, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, nil, fmt.Errorf("parse access token: %w", err)
	}

	var (
		std    jwt.Claims
		custom AccessTokenClaims
	)
	if err := parsed.Claims(i.key, &std, &custom); err != nil {
		return nil, nil, fmt.Errorf("verify access token: %w", err)
	}

	expected := jwt.Expected{
		Issuer:      i.issuer,
		AnyAudience: jwt.Audience{i.audience},
		Time:        i.now().UTC(),
	}
	if err := std.ValidateWithLeeway(expected, 0); err != nil {
		return nil, nil, fmt.Errorf("validate access token: %w", err)
	}
	return &std, &custom, nil
}

// Valid reports whether the token passes full validation. It never errors for
// an invalid token; invalidity is a boolean outcome.
func (i *Issuer) Valid(tokenString string) bool {
	_, _, err := i.ValidateAccessToken(tokenString)
	return err == nil
}

// NewRefreshToken produces an opaque refresh token from a cryptographically
// secure random source. The value itself is the credential; it carries no
// structure and is never parsed.
func (i *Issuer) NewRefreshToken(userID uuid.UUID) (domain.RefreshToken, error) {
	buf := make([]byte, i.refreshBytes)
	if _, err := rand.Read(buf); err != nil {
		return domain.RefreshToken{}, fmt.Errorf("generate refresh token: %w", err)
	}

	now := i.now().UTC()
	return domain.RefreshToken{
		ID:        uuid.New(),
		Token:     base64.StdEncoding.EncodeToString(buf),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(i.refreshTokenTTL),
	}, nil
}
