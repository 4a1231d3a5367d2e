// Package config, uygulamanın tüm konfigürasyonunu merkezi olarak yönetir.
// Environment variable'lardan okur, .env dosyasını da destekler.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config, uygulamanın tüm konfigürasyon değerlerini taşır.
// Her alt bölüm ayrı bir struct: her struct tek bir concern'ü temsil eder.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Cache       CacheConfig
	RateLimit   RateLimitConfig
	Email       EmailConfig
	Redis       RedisConfig
	Log         LogConfig
	Maintenance MaintenanceConfig
}

// ServerConfig, HTTP server ayarları.
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig, SQLite database ayarları.
type DatabaseConfig struct {
	Path string // SQLite dosya yolu (ör: ./data/custodian.db)
}

// JWTConfig, JWT token ayarları.
type JWTConfig struct {
	Secret             string // Token imzalama anahtarı: GİZLİ TUTULMALI
	AccessTokenExpiry  int    // Dakika cinsinden (varsayılan: 15)
	RefreshTokenExpiry int    // Gün cinsinden (varsayılan: 7)
}

// CacheConfig, user cache ayarları.
// SweepInterval 0 → sadece lazy eviction.
type CacheConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// RateLimitConfig, (identity, action) limiter ve HTTP throttle ayarları.
type RateLimitConfig struct {
	Limit         int
	Window        time.Duration
	LoginLimit    int
	ResetLimit    int
	SweepInterval time.Duration
	HTTPRPS       float64
	HTTPBurst     int
}

// EmailConfig, Resend ayarları. Boşsa şifre sıfırlama email'i gönderilmez.
type EmailConfig struct {
	ResendAPIKey string
	FromEmail    string
	AppURL       string
}

// Enabled, tüm zorunlu alanlar dolu mu?
func (c EmailConfig) Enabled() bool {
	return c.ResendAPIKey != "" && c.FromEmail != "" && c.AppURL != ""
}

// RedisConfig, opsiyonel rate limit istatistik sink'i.
type RedisConfig struct {
	URL string
}

// LogConfig, zap logger ayarları.
type LogConfig struct {
	Level       string
	Development bool
}

// MaintenanceConfig, arka plan temizlik döngüsü. 0 → kapalı.
type MaintenanceConfig struct {
	Interval time.Duration
}

// Load, environment variable'lardan Config oluşturur.
// .env dosyası varsa önce onu yükler (development kolaylığı için).
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getInt("SERVER_PORT", 9090)
	if err != nil {
		return nil, err
	}
	accessExpiry, err := getInt("JWT_ACCESS_EXPIRY_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	refreshExpiry, err := getInt("JWT_REFRESH_EXPIRY_DAYS", 7)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getSeconds("CACHE_TTL_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	cacheSweep, err := getSeconds("CACHE_SWEEP_SECONDS", 0)
	if err != nil {
		return nil, err
	}
	limit, err := getInt("RATE_LIMIT", 5)
	if err != nil {
		return nil, err
	}
	window, err := getSeconds("RATE_LIMIT_WINDOW_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	loginLimit, err := getInt("RATE_LIMIT_LOGIN", limit)
	if err != nil {
		return nil, err
	}
	resetLimit, err := getInt("RATE_LIMIT_PASSWORD_RESET", limit)
	if err != nil {
		return nil, err
	}
	limiterSweep, err := getSeconds("RATE_LIMIT_SWEEP_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	httpRPS, err := strconv.ParseFloat(getEnv("HTTP_RATE_RPS", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_RATE_RPS: %w", err)
	}
	httpBurst, err := getInt("HTTP_RATE_BURST", 40)
	if err != nil {
		return nil, err
	}
	maintenance, err := getSeconds("MAINTENANCE_INTERVAL_SECONDS", 600)
	if err != nil {
		return nil, err
	}
	logDev, err := strconv.ParseBool(getEnv("LOG_DEVELOPMENT", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_DEVELOPMENT: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/custodian.db"),
		},
		JWT: JWTConfig{
			Secret:             jwtSecret,
			AccessTokenExpiry:  accessExpiry,
			RefreshTokenExpiry: refreshExpiry,
		},
		Cache: CacheConfig{
			TTL:           cacheTTL,
			SweepInterval: cacheSweep,
		},
		RateLimit: RateLimitConfig{
			Limit:         limit,
			Window:        window,
			LoginLimit:    loginLimit,
			ResetLimit:    resetLimit,
			SweepInterval: limiterSweep,
			HTTPRPS:       httpRPS,
			HTTPBurst:     httpBurst,
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("RESEND_FROM", ""),
			AppURL:       getEnv("APP_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: logDev,
		},
		Maintenance: MaintenanceConfig{
			Interval: maintenance,
		},
	}

	return cfg, nil
}

// Addr, HTTP server'ın dinleyeceği adresi döner (ör: "0.0.0.0:9090").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv, environment variable'ı okur, yoksa fallback değeri döner.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getSeconds(key string, fallback int) (time.Duration, error) {
	v, err := getInt(key, fallback)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return time.Duration(v) * time.Second, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
