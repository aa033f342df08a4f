package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/disasterapp/auth-service/internal/service"
	"github.com/disasterapp/auth-service/internal/token"
)

const (
	subjectKey      = "authSubject"
	accessClaimsKey = "accessClaims"
)

// Auth validates Authorization headers and attaches claims.
type Auth struct {
	AuthService *service.AuthService
}

// RequireAuth ensures the request carries a valid bearer access token.
func (m *Auth) RequireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authorization header required"})
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Bearer token required"})
		return
	}

	subject, claims, err := m.AuthService.AccessTokenClaims(c.Request.Context(), strings.TrimSpace(parts[1]))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid access token"})
		return
	}

	c.Set(subjectKey, subject)
	c.Set(accessClaimsKey, claims)
	c.Next()
}

// GetSubject returns the authenticated user id from the request context.
func GetSubject(c *gin.Context) (string, bool) {
	value, ok := c.Get(subjectKey)
	if !ok {
		return "", false
	}
	subject, ok := value.(string)
	return subject, ok
}

// GetAccessClaims exposes the custom access-token claims to handlers.
func GetAccessClaims(c *gin.Context) (*token.AccessTokenClaims, bool) {
	value, ok := c.Get(accessClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*token.AccessTokenClaims)
	return claims, ok
}
