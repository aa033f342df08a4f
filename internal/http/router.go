package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/disasterapp/auth-service/internal/config"
	"github.com/disasterapp/auth-service/internal/http/handler"
	httpmiddleware "github.com/disasterapp/auth-service/internal/http/middleware"
	"github.com/disasterapp/auth-service/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/google-login", authHandler.GoogleLogin)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", authMiddleware.RequireAuth, authHandler.Logout)
			auth.GET("/validate", authHandler.Validate)
			auth.GET("/me", authMiddleware.RequireAuth, authHandler.Me)
		}

		api.GET("/config/google-client-id", authHandler.GoogleClientIDConfig)
	}

	return r
}
