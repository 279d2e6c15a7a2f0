package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("JWT_PRIVATE_KEY_PATH", "priv.pem")
	t.Setenv("JWT_PUBLIC_KEY_PATH", "pub.pem")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")
	t.Setenv("JWT_ISSUER", "my-svc")
	t.Setenv("JWT_AUDIENCE", "my-aud")
}

func TestLoad_Success(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCESS_TOKEN_TTL", "2m")
	t.Setenv("REFRESH_TOKEN_TTL", "3h")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:ABC")
	t.Setenv("WEBHOOK_WORKERS", "4")
	t.Setenv("ALLOWED_ORIGINS", `["https://app.example.com"]`)
	t.Setenv("ALLOW_CREDENTIALS", "true")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AccessTokenTTL != 2*time.Minute {
		t.Fatalf("AccessTokenTTL want 2m, got %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 3*time.Hour {
		t.Fatalf("RefreshTokenTTL want 3h, got %v", cfg.RefreshTokenTTL)
	}
	if cfg.TelegramBotToken != "123456:ABC" {
		t.Fatalf("bot token not loaded: %q", cfg.TelegramBotToken)
	}
	if cfg.WebhookWorkers != 4 {
		t.Fatalf("WebhookWorkers want 4, got %d", cfg.WebhookWorkers)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://app.example.com" {
		t.Fatalf("AllowedOrigins: %v", cfg.AllowedOrigins)
	}
	if !cfg.AllowCredentials {
		t.Fatal("AllowCredentials want true")
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.0/8" || cfg.TrustedProxies[1] != "172.16.0.1" {
		t.Fatalf("TrustedProxies: %v", cfg.TrustedProxies)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != ":8080" {
		t.Fatalf("HTTPAddress default: %q", cfg.HTTPAddress)
	}
	if cfg.InitDataMaxAge != 24*time.Hour {
		t.Fatalf("InitDataMaxAge default: %v", cfg.InitDataMaxAge)
	}
	if cfg.WebhookWorkers != 16 {
		t.Fatalf("WebhookWorkers default: %d", cfg.WebhookWorkers)
	}
	if cfg.TelegramAllowUnsigned {
		t.Fatal("unsigned init data must be rejected by default")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	// задаём всё, КРОМЕ JWT_ISSUER
	setRequired(t)
	t.Setenv("JWT_ISSUER", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error due to missing JWT_ISSUER, got nil")
	}
}

func TestParseList(t *testing.T) {
	got, err := parseList(" https://a.example, https://b.example ,")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1] != "https://b.example" {
		t.Fatalf("unexpected list %v", got)
	}
	if _, err := parseList("[broken"); err == nil {
		t.Fatal("expected json error")
	}
}

func TestParseList_JSONAndDuplicates(t *testing.T) {
	got, err := parseList(`["https://a.example","","https://a.example"]`)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "https://a.example" {
		t.Fatalf("unexpected list %v", got)
	}
	if got, _ := parseList("   "); got != nil {
		t.Fatalf("blank must give nil, got %v", got)
	}
}
