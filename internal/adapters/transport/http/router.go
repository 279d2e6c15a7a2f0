package http

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/adapters/transport/http/handler"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/adapters/transport/http/middleware"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/adapters/transport/http/webhook"
)

const WebhookPath = "/api/telegram/webhook"

type RouterConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool

	// CIDRs or IPs whose X-Forwarded-For is honoured. Empty trusts none.
	TrustedProxies []string

	// per-IP limit on /auth
	AuthRate  int
	AuthBurst int
}

func NewRouter(
	ctx context.Context,
	cfg RouterConfig,
	auth *handler.AuthHandler,
	hook *webhook.Dispatcher,
	log *zap.Logger,
) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Warn("invalid trusted proxies, trusting none", zap.Strings("proxies", cfg.TrustedProxies), zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Metrics())

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{
				"Origin", "Content-Type", "Accept",
				"Authorization",
				"X-Requested-With",
			},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
			AllowCredentials: cfg.AllowCredentials,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.POST(WebhookPath, hook.Handle)
	router.GET(WebhookPath, hook.Info)

	if cfg.AuthRate <= 0 {
		cfg.AuthRate, cfg.AuthBurst = 50, 100
	}
	authGroup := router.Group("/auth", middleware.NewHTTPRateLimitPerIP(ctx, cfg.AuthRate, cfg.AuthBurst, 10_000, time.Hour))
	authGroup.POST("/telegram", auth.TelegramLogin)
	authGroup.POST("/refresh", auth.Refresh)
	authGroup.POST("/logout", auth.Logout)
	authGroup.GET("/me", auth.Me)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
