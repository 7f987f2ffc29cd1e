package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/service"
)

// RouterConfig carries the collaborators of the HTTP surface
type RouterConfig struct {
	Auth        *service.AuthService
	Identities  *service.IdentityService
	RateLimiter *RateLimiter
	Log         zerolog.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(cfg.Log))

	handlers := NewAuthHandlers(cfg.Auth, cfg.Identities, cfg.Log)
	gate := service.NewAccessGate()

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth routes
	auth := router.Group("/auth")
	{
		limited := auth.Group("")
		if cfg.RateLimiter != nil {
			limited.Use(cfg.RateLimiter.Handler())
		}
		limited.GET("/nonce", handlers.Nonce)
		limited.POST("/nonce", handlers.Nonce)
		limited.POST("/verify", handlers.Verify)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(cfg.Auth, cfg.Log))
	{
		api.GET("/me", GateMiddleware(gate, service.AuthenticationRequired()), handlers.Me)
		api.PATCH("/me", GateMiddleware(gate, service.PermissionRequired(core.PermProfileEdit)), handlers.UpdateMe)

		admin := api.Group("/admin")
		admin.GET("/users/:address", GateMiddleware(gate, service.PermissionRequired(core.PermUsersRead)), handlers.User)
		admin.POST("/roles", GateMiddleware(gate, service.RoleRequired(core.RoleSuperAdmin)), handlers.SetRole)
	}

	return router
}
