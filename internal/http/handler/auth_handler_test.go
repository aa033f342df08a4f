package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/disasterapp/auth-service/internal/domain"
	"github.com/disasterapp/auth-service/internal/http/handler"
	"github.com/disasterapp/auth-service/internal/http/middleware"
	"github.com/disasterapp/auth-service/internal/service"
	"github.com/disasterapp/auth-service/internal/token"
)

func newTestRouter(t *testing.T) (*gin.Engine, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer, err := token.NewIssuer("handler-test-signing-key-32bytes", "disasterapp", "disasterapp-web", time.Hour, 7*24*time.Hour, 64)
	require.NoError(t, err)

	svc := service.NewAuthService(newStubUserRepo(), newStubTokenRepo(), issuer, nil, zap.NewNop())
	authHandler := handler.NewAuthHandler(svc, "test-client-id")
	authMiddleware := &middleware.Auth{AuthService: svc}

	r := gin.New()
	api := r.Group("/api/auth")
	api.POST("/login", authHandler.Login)
	api.POST("/signup", authHandler.Signup)
	api.POST("/google-login", authHandler.GoogleLogin)
	api.POST("/refresh", authHandler.Refresh)
	api.POST("/logout", authMiddleware.RequireAuth, authHandler.Logout)
	api.GET("/validate", authHandler.Validate)
	api.GET("/me", authMiddleware.RequireAuth, authHandler.Me)
	r.GET("/api/config/google-client-id", authHandler.GoogleClientIDConfig)
	return r, svc
}

func performJSON(t *testing.T, r *gin.Engine, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func signupAlice(t *testing.T, r *gin.Engine) domain.AuthResponse {
	t.Helper()
	rec := performJSON(t, r, http.MethodPost, "/api/auth/signup", gin.H{
		"fullName":        "Alice",
		"email":           "alice@x.com",
		"password":        "secret1",
		"confirmPassword": "secret1",
		"agreeToTerms":    true,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSignupAndLoginEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	signupResp := signupAlice(t, r)
	require.NotEmpty(t, signupResp.AccessToken)
	require.NotEmpty(t, signupResp.RefreshToken)
	require.Equal(t, []string{"User"}, signupResp.User.Roles)

	rec := performJSON(t, r, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "alice@x.com",
		"password": "secret1",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var loginResp domain.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	require.Equal(t, signupResp.User.ID, loginResp.User.ID)
}

func TestLoginEndpointRejectsBadCredentials(t *testing.T) {
	r, _ := newTestRouter(t)
	signupAlice(t, r)

	rec := performJSON(t, r, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "alice@x.com",
		"password": "wrong-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid email or password")
}

func TestLoginEndpointRejectsMalformedBody(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := performJSON(t, r, http.MethodPost, "/api/auth/login", gin.H{"email": "not-an-email"}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignupEndpointValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	// Binding rejects a too-short password before the core is reached.
	rec := performJSON(t, r, http.MethodPost, "/api/auth/signup", gin.H{
		"fullName":        "Alice",
		"email":           "alice@x.com",
		"password":        "short",
		"confirmPassword": "short",
		"agreeToTerms":    true,
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	signupAlice(t, r)

	rec = performJSON(t, r, http.MethodPost, "/api/auth/signup", gin.H{
		"fullName":        "Alice Again",
		"email":           "alice@x.com",
		"password":        "secret2",
		"confirmPassword": "secret2",
		"agreeToTerms":    true,
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), domain.ErrDuplicateUser.Error())
}

func TestRefreshEndpointRotates(t *testing.T) {
	r, _ := newTestRouter(t)
	signupResp := signupAlice(t, r)

	rec := performJSON(t, r, http.MethodPost, "/api/auth/refresh", gin.H{
		"refreshToken": signupResp.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var refreshResp domain.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshResp))
	require.NotEqual(t, signupResp.RefreshToken, refreshResp.RefreshToken)

	// The consumed token no longer rotates.
	rec = performJSON(t, r, http.MethodPost, "/api/auth/refresh", gin.H{
		"refreshToken": signupResp.RefreshToken,
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	signupResp := signupAlice(t, r)

	rec := performJSON(t, r, http.MethodPost, "/api/auth/logout", gin.H{
		"refreshToken": signupResp.RefreshToken,
	}, signupResp.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = performJSON(t, r, http.MethodPost, "/api/auth/logout", gin.H{
		"refreshToken": signupResp.RefreshToken,
	}, signupResp.AccessToken)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = performJSON(t, r, http.MethodPost, "/api/auth/logout", gin.H{
		"refreshToken": signupResp.RefreshToken,
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidateEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	signupResp := signupAlice(t, r)

	rec := performJSON(t, r, http.MethodGet, "/api/auth/validate", nil, signupResp.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performJSON(t, r, http.MethodGet, "/api/auth/validate", nil, "not-a-token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = performJSON(t, r, http.MethodGet, "/api/auth/validate", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	signupResp := signupAlice(t, r)

	rec := performJSON(t, r, http.MethodGet, "/api/auth/me", nil, signupResp.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var me struct {
		UserID string   `json:"userId"`
		Name   string   `json:"name"`
		Email  string   `json:"email"`
		Roles  []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, signupResp.User.ID.String(), me.UserID)
	require.Equal(t, "Alice", me.Name)
	require.Equal(t, "alice@x.com", me.Email)
	require.Equal(t, []string{"User"}, me.Roles)

	rec = performJSON(t, r, http.MethodGet, "/api/auth/me", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGoogleClientIDConfigEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := performJSON(t, r, http.MethodGet, "/api/config/google-client-id", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "test-client-id")
}

func TestGoogleLoginEndpointWithoutVerifier(t *testing.T) {
	r, _ := newTestRouter(t)

	// No verifier is wired, which is a server-side configuration fault.
	rec := performJSON(t, r, http.MethodPost, "/api/auth/google-login", gin.H{"idToken": "assertion"}, "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "not properly configured")
}

type stubUserRepo struct {
	byEmail map[string]domain.User
	roles   map[uuid.UUID][]string
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		byEmail: make(map[string]domain.User),
		roles:   make(map[uuid.UUID][]string),
	}
}

func (s *stubUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (s *stubUserRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	for _, user := range s.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (s *stubUserRepo) GetByProviderIdentity(ctx context.Context, provider domain.Provider, authID string) (domain.User, error) {
	for _, user := range s.byEmail {
		if user.Provider == provider && user.AuthID == authID {
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (s *stubUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	s.byEmail[user.Email] = user
	s.roles[user.ID] = []string{domain.DefaultRole}
	return user, nil
}

func (s *stubUserRepo) Update(ctx context.Context, user domain.User) (domain.User, error) {
	s.byEmail[user.Email] = user
	return user, nil
}

func (s *stubUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *stubUserRepo) GetRoleNames(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.roles[userID], nil
}

type stubTokenRepo struct {
	byValue map[string]domain.RefreshToken
}

func newStubTokenRepo() *stubTokenRepo {
	return &stubTokenRepo{byValue: make(map[string]domain.RefreshToken)}
}

func (s *stubTokenRepo) GetByValue(ctx context.Context, tokenValue string) (domain.RefreshToken, error) {
	stored, ok := s.byValue[tokenValue]
	if !ok {
		return domain.RefreshToken{}, pgx.ErrNoRows
	}
	return stored, nil
}

func (s *stubTokenRepo) Create(ctx context.Context, tokenRow domain.RefreshToken) (domain.RefreshToken, error) {
	s.byValue[tokenRow.Token] = tokenRow
	return tokenRow, nil
}

func (s *stubTokenRepo) DeleteByValue(ctx context.Context, tokenValue string) (bool, error) {
	if _, ok := s.byValue[tokenValue]; !ok {
		return false, nil
	}
	delete(s.byValue, tokenValue)
	return true, nil
}

func (s *stubTokenRepo) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	var deleted bool
	for value, stored := range s.byValue {
		if stored.UserID == userID {
			delete(s.byValue, value)
			deleted = true
		}
	}
	return deleted, nil
}
