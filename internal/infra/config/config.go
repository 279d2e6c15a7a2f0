package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL string

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	HTTPAddress string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	Issuer            string
	Audience          string

	TelegramBotToken      string
	TelegramAllowUnsigned bool
	TelegramWebhookSecret string
	TelegramWebhookURL    string
	TelegramWebAppURL     string
	InitDataMaxAge        time.Duration
	WebhookWorkers        int

	AllowedOrigins   []string
	AllowCredentials bool
	CookieDomain     string
	TrustedProxies   []string

	LogLevel  string
	LogFormat string
}

var required = []string{
	"DATABASE_URL",
	"REDIS_ADDRESS",
	"JWT_PRIVATE_KEY_PATH",
	"JWT_PUBLIC_KEY_PATH",
	"JWT_ISSUER",
	"JWT_AUDIENCE",
}

var optional = []string{
	"REDIS_PASSWORD", "REDIS_DB", "HTTP_ADDRESS",
	"ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_ALLOW_UNSIGNED", "TELEGRAM_WEBHOOK_SECRET",
	"TELEGRAM_WEBHOOK_URL", "TELEGRAM_WEBAPP_URL", "INIT_DATA_MAX_AGE", "WEBHOOK_WORKERS",
	"ALLOWED_ORIGINS", "ALLOW_CREDENTIALS", "COOKIE_DOMAIN", "TRUSTED_PROXIES",
	"LOG_LEVEL", "LOG_FORMAT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	for _, key := range append(append([]string{}, required...), optional...) {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	v.SetDefault("HTTP_ADDRESS", ":8080")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "720h")
	v.SetDefault("INIT_DATA_MAX_AGE", "24h")
	v.SetDefault("WEBHOOK_WORKERS", 16)
	v.SetDefault("LOG_LEVEL", "debug")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	for _, key := range required {
		if v.GetString(key) == "" {
			return nil, fmt.Errorf("%s is not set", key)
		}
	}

	origins, err := parseList(v.GetString("ALLOWED_ORIGINS"))
	if err != nil {
		return nil, fmt.Errorf("ALLOWED_ORIGINS: %w", err)
	}
	proxies, err := parseList(v.GetString("TRUSTED_PROXIES"))
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	cfg := &Config{
		DatabaseURL:           v.GetString("DATABASE_URL"),
		RedisAddress:          v.GetString("REDIS_ADDRESS"),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		RedisDB:               v.GetInt("REDIS_DB"),
		HTTPAddress:           v.GetString("HTTP_ADDRESS"),
		JWTPrivateKeyPath:     v.GetString("JWT_PRIVATE_KEY_PATH"),
		JWTPublicKeyPath:      v.GetString("JWT_PUBLIC_KEY_PATH"),
		AccessTokenTTL:        v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:       v.GetDuration("REFRESH_TOKEN_TTL"),
		Issuer:                v.GetString("JWT_ISSUER"),
		Audience:              v.GetString("JWT_AUDIENCE"),
		TelegramBotToken:      v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramAllowUnsigned: v.GetBool("TELEGRAM_ALLOW_UNSIGNED"),
		TelegramWebhookSecret: v.GetString("TELEGRAM_WEBHOOK_SECRET"),
		TelegramWebhookURL:    v.GetString("TELEGRAM_WEBHOOK_URL"),
		TelegramWebAppURL:     v.GetString("TELEGRAM_WEBAPP_URL"),
		InitDataMaxAge:        v.GetDuration("INIT_DATA_MAX_AGE"),
		WebhookWorkers:        v.GetInt("WEBHOOK_WORKERS"),
		AllowedOrigins:        origins,
		AllowCredentials:      v.GetBool("ALLOW_CREDENTIALS"),
		CookieDomain:          v.GetString("COOKIE_DOMAIN"),
		TrustedProxies:        proxies,
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogFormat:             v.GetString("LOG_FORMAT"),
	}

	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}
	if cfg.WebhookWorkers <= 0 {
		return nil, fmt.Errorf("WEBHOOK_WORKERS must be positive, got %d", cfg.WebhookWorkers)
	}
	return cfg, nil
}

// parseList accepts either a JSON array or a comma separated list.
func parseList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, err
		}
		return lo.Uniq(lo.Compact(out)), nil
	}
	out := lo.FilterMap(strings.Split(raw, ","), func(part string, _ int) (string, bool) {
		part = strings.TrimSpace(part)
		return part, part != ""
	})
	return lo.Uniq(out), nil
}
