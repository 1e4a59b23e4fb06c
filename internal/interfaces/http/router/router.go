// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ai-tutor-api/internal/config"
	"ai-tutor-api/internal/interfaces/http/handler"
	"ai-tutor-api/internal/interfaces/http/middleware"
)

// Handlers 路由使用的全部处理器
type Handlers struct {
	Health  *handler.HealthHandler
	Tutor   *handler.TutorHandler
	Test    *handler.TestHandler
	Credit  *handler.CreditHandler
	Payment *handler.PaymentHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers *Handlers
	limiter  middleware.RateLimiter
}

// New 创建路由器；limiter 为 nil 时不限流
func New(cfg *config.Config, handlers *Handlers, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.handlers.Health.Health)
	r.engine.GET("/ready", r.handlers.Health.Ready)
	r.engine.GET("/live", r.handlers.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		path := r.cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/v1")

	// 支付回调由签名认证，不走 JWT
	v1.POST("/payments/webhook", r.handlers.Payment.Webhook)

	authed := v1.Group("")
	authed.Use(middleware.Auth(middleware.AuthConfig{
		Secret:    r.cfg.Security.JWT.Secret,
		Issuer:    r.cfg.Security.JWT.Issuer,
		SkipPaths: middleware.DefaultSkipPaths,
	}))

	rl := r.cfg.Security.RateLimit
	aiLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:  rl.Enabled,
		Requests: rl.Requests,
		Window:   rl.Window,
	}, r.limiter)

	RegisterV1Routes(authed, aiLimit, r.handlers)
}
