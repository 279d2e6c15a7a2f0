package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	myPostgresRepo "github.com/Miraines/MoonyAndStarry/telegram-service/internal/adapters/db/postgres"
	myRedisRepo "github.com/Miraines/MoonyAndStarry/telegram-service/internal/adapters/db/redis"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/adapters/telegram"
	httptransport "github.com/Miraines/MoonyAndStarry/telegram-service/internal/adapters/transport/http"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/adapters/transport/http/handler"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/adapters/transport/http/webhook"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/app/auth/jwt"
	appsvc "github.com/Miraines/MoonyAndStarry/telegram-service/internal/app/auth/service"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/app/bot"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/domain/telegram/initdata"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/infra/config"
	lg "github.com/Miraines/MoonyAndStarry/telegram-service/internal/infra/log"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/infra/migrate"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/infra/server"
)

const dedupTTL = 24 * time.Hour

func main() {
	// local runs keep settings in .env; in containers the file is absent
	_ = godotenv.Load()

	zapLog := lg.Must(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	defer zapLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("failed to load config", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		zapLog.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zapLog.Fatal("db handle", zap.Error(err))
	}
	defer sqlDB.Close()
	if err := migrate.Up(sqlDB); err != nil {
		zapLog.Fatal("run migrations", zap.Error(err))
	}

	redisCli := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisCli.Close()

	jwtUtil, err := jwt.NewJWTUtil(cfg)
	if err != nil {
		zapLog.Fatal("failed to init JWT util", zap.Error(err))
	}

	verifier := initdata.NewVerifier(cfg.TelegramBotToken, cfg.InitDataMaxAge)
	switch {
	case verifier.Configured():
	case cfg.TelegramAllowUnsigned:
		zapLog.Warn("TELEGRAM_BOT_TOKEN is not set: init_data signatures are NOT checked")
	default:
		zapLog.Warn("TELEGRAM_BOT_TOKEN is not set: telegram auth and bot replies are disabled")
	}

	svc := appsvc.New(
		myPostgresRepo.NewPostgresUserRepo(db),
		myRedisRepo.NewRedisTokenRepo(redisCli),
		jwtUtil,
		verifier,
		cfg,
		validator.New(),
		zapLog.Named("auth"),
	)

	botClient := telegram.NewLazyFromToken(cfg.TelegramBotToken)
	pool := webhook.NewPool(cfg.WebhookWorkers, zapLog.Named("webhook"))

	dispatcher := webhook.New(
		bot.NewHandler(botClient, cfg.TelegramWebAppURL, zapLog.Named("bot")),
		botClient,
		pool,
		zapLog.Named("webhook"),
		webhook.WithSecret(cfg.TelegramWebhookSecret),
		webhook.WithDeduper(myRedisRepo.NewUpdateDeduper(redisCli, dedupTTL)),
		webhook.WithInfoSource(botClient),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := httptransport.NewRouter(rootCtx,
		httptransport.RouterConfig{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowCredentials: cfg.AllowCredentials,
			TrustedProxies:   cfg.TrustedProxies,
		},
		handler.NewAuthHandler(svc, cfg.CookieDomain, zapLog.Named("http")),
		dispatcher,
		zapLog,
	)

	if cfg.TelegramWebhookURL != "" {
		registerWebhook(rootCtx, botClient, cfg, zapLog)
	}

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		return server.StartHTTPServer(ctx, cfg.HTTPAddress, router, zapLog)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
	}

	// accepted updates still get processed before exit
	zapLog.Info("draining webhook queue", zap.Int("waiting", pool.WaitingQueueSize()))
	pool.StopWait()
	zapLog.Info("shutdown complete")
}

func registerWebhook(ctx context.Context, lazy *telegram.Lazy, cfg *config.Config, log *zap.Logger) {
	cl, err := lazy.Get()
	if err != nil {
		log.Warn("webhook not registered", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := cl.SetWebhook(ctx, cfg.TelegramWebhookURL, cfg.TelegramWebhookSecret); err != nil {
		log.Error("setWebhook failed", zap.Error(err))
		return
	}
	log.Info("webhook registered", zap.String("url", cfg.TelegramWebhookURL))
}
