package handler

import (
	"stream-ledger/internal/adapter/http/middleware"
	"stream-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	AccountSvc     ports.AccountService
	Ledger         ports.StreamLedger
	TokenSvc       ports.TokenService
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter builds the Gin engine. Callers pick the gin mode beforehand.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))
	r.Use(middleware.RequireJSON())

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	accountHandler := NewAccountHandler(deps.AccountSvc)
	accounts := v1.Group("/accounts/me", jwtAuth)
	{
		accounts.GET("", rl("streams"), accountHandler.Me)
		accounts.POST("/fund", rl("accounts_fund"), accountHandler.Fund)
	}

	streamHandler := NewStreamHandler(deps.Ledger)
	streams := v1.Group("/streams", jwtAuth)
	{
		streams.POST("", rl("streams_write"), streamHandler.Create)
		streams.GET("", rl("streams"), streamHandler.List)
		streams.GET("/:id", rl("streams"), streamHandler.Get)
		streams.GET("/:id/earned", rl("streams"), streamHandler.Earned)
		streams.GET("/:id/events", rl("streams"), streamHandler.Events)
		streams.POST("/:id/withdraw", rl("streams_write"), streamHandler.Withdraw)
		streams.POST("/:id/pause", rl("streams_write"), streamHandler.Pause)
		streams.POST("/:id/resume", rl("streams_write"), streamHandler.Resume)
		streams.POST("/:id/stop", rl("streams_write"), streamHandler.Stop)
		streams.POST("/:id/deposit", rl("streams_write"), streamHandler.Deposit)
	}

	return r
}
