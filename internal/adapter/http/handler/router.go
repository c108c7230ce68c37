package handler

import (
	"marketplace-settlement/internal/adapter/http/middleware"
	redisStore "marketplace-settlement/internal/adapter/storage/redis"
	"marketplace-settlement/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	MarketplaceSvc ports.MarketplaceService
	SettlementSvc  ports.SettlementService
	BatchSvc       ports.BatchService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	HTTPMetrics    *middleware.HTTPMetrics // nil = no request metrics
	Gatherer       prometheus.Gatherer     // nil = no /metrics endpoint
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}

	// Health check (deep: PostgreSQL, Redis, chain RPC)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	listingHandler := NewListingHandler(deps.MarketplaceSvc)
	settlementHandler := NewSettlementHandler(deps.SettlementSvc)
	accountHandler := NewAccountHandler(deps.MarketplaceSvc)
	batchHandler := NewBatchHandler(deps.BatchSvc)

	// --- Public browsing ---
	v1.GET("/listings", rl("browse"), listingHandler.List)
	v1.GET("/listings/:id", rl("browse"), listingHandler.Get)

	// --- Authenticated trading ---
	listings := v1.Group("/listings", jwtAuth)
	{
		listings.POST("", rl("listings"), listingHandler.Create)
		listings.DELETE("/:id", rl("listings"), listingHandler.Cancel)
		listings.POST("/:id/purchase", rl("purchase"), settlementHandler.Purchase)
	}

	me := v1.Group("/me", jwtAuth)
	{
		me.GET("/transactions", rl("account"), settlementHandler.List)
		me.GET("/transactions/:id", rl("account"), settlementHandler.Get)
		me.GET("/listings", rl("account"), listingHandler.Mine)
		me.GET("/balances", rl("account"), accountHandler.Balances)
		me.GET("/inventory", rl("account"), accountHandler.Inventory)
		me.GET("/batches", rl("account"), batchHandler.List)
	}

	batches := v1.Group("/batches", jwtAuth)
	{
		batches.POST("/transfers", rl("batches"), batchHandler.StartTransfer)
		batches.GET("/:id", rl("account"), batchHandler.Get)
		batches.DELETE("/:id", rl("account"), batchHandler.Cancel)
	}

	return r
}
