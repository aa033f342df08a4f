package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"go.uber.org/zap"

	"github.com/disasterapp/auth-service/internal/domain"
)

// DefaultJWKSURL is Google's published signing-key endpoint.
const DefaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// Google rotates issuer spelling between the bare and https forms.
var acceptedIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// Claims holds the verified profile claims of a Google ID token.
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// KeySource supplies the identity provider's current public keys.
type KeySource interface {
	Keys(ctx context.Context) (*jose.JSONWebKeySet, error)
}

// Verifier checks Google ID-token assertions against the provider's public
// keys and the configured OAuth client id.
type Verifier struct {
	clientID string
	keys     KeySource
	logger   *zap.Logger
	now      func() time.Time
}

// Option customizes a Verifier.
type Option func(*Verifier)

// WithKeySource overrides the JWKS source, used by tests.
func WithKeySource(src KeySource) Option {
	return func(v *Verifier) { v.keys = src }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier builds a Verifier for the given client id. A missing client id
// is a configuration fault distinct from assertion failures.
func NewVerifier(clientID string, logger *zap.Logger, opts ...Option) (*Verifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("google client id: %w", domain.ErrConfiguration)
	}
	v := &Verifier{
		clientID: clientID,
		keys:     NewCachingKeySource(DefaultJWKSURL, http.DefaultClient),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify validates the assertion's signature, audience, issuer, and expiry
// with zero leeway. Every failure collapses into ErrInvalidAssertion so the
// caller cannot leak which check rejected the token.
func (v *Verifier) Verify(ctx context.Context, idToken string) (Claims, error) {
	parsed, err := jwt.ParseSigned(idToken, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return Claims{}, v.reject("parse id token", err)
	}

	keySet, err := v.keys.Keys(ctx)
	if err != nil {
		return Claims{}, v.reject("fetch provider keys", err)
	}

	var (
		std    jwt.Claims
		custom Claims
	)
	if err := v.claimsWithKeySet(parsed, keySet, &std, &custom); err != nil {
		return Claims{}, v.reject("verify signature", err)
	}

	expected := jwt.Expected{
		AnyAudience: jwt.Audience{v.clientID},
		Time:        v.now().UTC(),
	}
	if err := std.ValidateWithLeeway(expected, 0); err != nil {
		return Claims{}, v.reject("validate claims", err)
	}
	if !issuerAccepted(std.Issuer) {
		return Claims{}, v.reject("validate issuer", fmt.Errorf("unexpected issuer %q", std.Issuer))
	}
	if custom.Subject == "" {
		custom.Subject = std.Subject
	}
	if custom.Subject == "" || custom.Email == "" {
		return Claims{}, v.reject("validate claims", fmt.Errorf("missing subject or email"))
	}
	return custom, nil
}

func (v *Verifier) claimsWithKeySet(parsed *jwt.JSONWebToken, keySet *jose.JSONWebKeySet, dest ...any) error {
	if len(parsed.Headers) == 0 {
		return fmt.Errorf("missing jose header")
	}
	kid := parsed.Headers[0].KeyID

	candidates := keySet.Keys
	if kid != "" {
		if matched := keySet.Key(kid); len(matched) > 0 {
			candidates = matched
		}
	}

	var lastErr error
	for _, key := range candidates {
		if err := parsed.Claims(key, dest...); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no usable provider key")
	}
	return lastErr
}

func (v *Verifier) reject(stage string, err error) error {
	if v.logger != nil {
		v.logger.Warn("google assertion rejected", zap.String("stage", stage), zap.Error(err))
	}
	return domain.ErrInvalidAssertion
}

func issuerAccepted(issuer string) bool {
	for _, accepted := range acceptedIssuers {
		if issuer == accepted {
			return true
		}
	}
	return false
}

// CachingKeySource fetches a JWKS document over HTTP and caches it between
// refreshes so verification does not hit the provider on every request.
type CachingKeySource struct {
	url    string
	client *http.Client
	ttl    time.Duration

	mu      sync.Mutex
	cached  *jose.JSONWebKeySet
	expires time.Time
}

// NewCachingKeySource builds a key source for the given JWKS endpoint.
func NewCachingKeySource(url string, client *http.Client) *CachingKeySource {
	if client == nil {
		client = http.DefaultClient
	}
	return &CachingKeySource{url: url, client: client, ttl: time.Hour}
}

// Keys returns the cached key set, refreshing it when stale.
func (s *CachingKeySource) Keys(ctx context.Context) (*jose.JSONWebKeySet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Now().Before(s.expires) {
		return s.cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build jwks request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}

	var keySet jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}
	if len(keySet.Keys) == 0 {
		return nil, fmt.Errorf("decode jwks: empty key set")
	}

	s.cached = &keySet
	s.expires = time.Now().Add(s.ttl)
	return s.cached, nil
}
