// Package main: Primitive ve service katmanı başlatma.
//
// Sıralama:
//  1. Primitive'ler (user cache, limiter, revocation store, IP throttle)
//  2. Stats sink (memory + opsiyonel Redis)
//  3. TokenRevoker → Auth / Lifecycle → Bulk
//  4. Maintenance (tüm sweeper'lar hazır olduktan sonra)
package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akinalp/custodian/config"
	"github.com/akinalp/custodian/middleware"
	"github.com/akinalp/custodian/models"
	"github.com/akinalp/custodian/pkg/cache"
	"github.com/akinalp/custodian/pkg/email"
	"github.com/akinalp/custodian/pkg/ratelimit"
	"github.com/akinalp/custodian/pkg/revocation"
	"github.com/akinalp/custodian/services"
)

// ipIdleTTL, IP throttle'da bir IP'nin görülmeden tutulacağı süre.
const ipIdleTTL = 15 * time.Minute

// Primitives, process içi paylaşılan state. Shutdown'da Close edilir.
type Primitives struct {
	Clock      clock.Clock
	UserCache  *cache.TTLCache[string, *models.User]
	Limiter    *ratelimit.Limiter
	Revocation *revocation.Store
	IPThrottle *middleware.IPThrottle
	Stats      *ratelimit.MemoryStats
	Redis      *redis.Client
}

func initPrimitives(cfg *config.Config, log *zap.Logger) *Primitives {
	clk := clock.New()

	p := &Primitives{
		Clock: clk,
		UserCache: cache.New[string, *models.User](cfg.Cache.TTL,
			cache.WithClock(clk),
			cache.WithSweepInterval(cfg.Cache.SweepInterval),
		),
		Limiter: ratelimit.New(
			ratelimit.WithClock(clk),
			ratelimit.WithDefaultPolicy(ratelimit.Policy{Limit: cfg.RateLimit.Limit, Window: cfg.RateLimit.Window}),
			ratelimit.WithPolicy(services.ActionLogin, ratelimit.Policy{Limit: cfg.RateLimit.LoginLimit, Window: cfg.RateLimit.Window}),
			ratelimit.WithPolicy(services.ActionPasswordReset, ratelimit.Policy{Limit: cfg.RateLimit.ResetLimit, Window: cfg.RateLimit.Window}),
			ratelimit.WithSweepInterval(cfg.RateLimit.SweepInterval),
		),
		Revocation: revocation.New(revocation.WithClock(clk)),
		IPThrottle: middleware.NewIPThrottle(cfg.RateLimit.HTTPRPS, cfg.RateLimit.HTTPBurst, ipIdleTTL, clk, log),
		Stats:      ratelimit.NewMemoryStats(),
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Warn("invalid REDIS_URL, redis stats disabled", zap.Error(err))
		} else {
			p.Redis = redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := p.Redis.Ping(ctx).Err(); err != nil {
				// Stats best-effort; Redis sonradan gelirse yazmalar tutar.
				log.Warn("redis ping failed", zap.Error(err))
			} else {
				log.Info("redis stats sink enabled", zap.String("addr", opts.Addr))
			}
			cancel()
		}
	}

	return p
}

// statsRecorder, memory sayaçları her zaman, Redis'i varsa ekler.
func (p *Primitives) statsRecorder() ratelimit.StatsRecorder {
	if p.Redis == nil {
		return p.Stats
	}
	return ratelimit.MultiStats{p.Stats, ratelimit.NewRedisStats(p.Redis)}
}

// Close, arka plan goroutine'lerini durdurur ve bağlantıları kapatır.
func (p *Primitives) Close(log *zap.Logger) {
	p.UserCache.Close()
	p.Limiter.Close()
	p.Revocation.Close()
	if p.Redis != nil {
		if err := p.Redis.Close(); err != nil {
			log.Warn("redis close failed", zap.Error(err))
		}
	}
}

// Services, service instance'larını tutan container struct.
type Services struct {
	Auth        services.AuthService
	User        services.UserService
	Lifecycle   services.LifecycleService
	Bulk        services.BulkService
	Revoker     services.TokenRevoker
	Maintenance *services.Maintenance
}

func initServices(db *sql.DB, repos *Repositories, prims *Primitives, cfg *config.Config, log *zap.Logger) *Services {
	var mailer email.Sender
	if cfg.Email.Enabled() {
		mailer = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, cfg.Email.AppURL)
		log.Info("email service enabled", zap.String("from", cfg.Email.FromEmail))
	} else {
		mailer = email.NewDisabledSender(log)
		log.Info("email service disabled (RESEND_API_KEY, RESEND_FROM or APP_URL not set)")
	}

	revoker := services.NewTokenRevoker(db, prims.Revocation, prims.Clock, log)
	throttle := services.NewThrottle(prims.Limiter, prims.statsRecorder(), prims.Clock, log)

	authService := services.NewAuthService(
		db, repos.User, repos.User, repos.Session, repos.ResetToken,
		revoker, throttle, mailer,
		services.AuthConfig{
			Secret:        cfg.JWT.Secret,
			AccessExpiry:  time.Duration(cfg.JWT.AccessTokenExpiry) * time.Minute,
			RefreshExpiry: time.Duration(cfg.JWT.RefreshTokenExpiry) * 24 * time.Hour,
		},
		prims.Clock, log,
	)
	lifecycleService := services.NewLifecycleService(db, repos.User, revoker, prims.Clock, log)

	maintenance := services.NewMaintenance(
		repos.Session, repos.ResetToken, revoker,
		map[string]services.Sweeper{
			"user_cache":   prims.UserCache,
			"rate_limiter": prims.Limiter,
			"revocation":   prims.Revocation,
			"ip_throttle":  prims.IPThrottle,
		},
		cfg.Maintenance.Interval, prims.Clock, log,
	)

	return &Services{
		Auth:        authService,
		User:        services.NewUserService(repos.User, prims.Clock, log),
		Lifecycle:   lifecycleService,
		Bulk:        services.NewBulkService(repos.User, lifecycleService, prims.Clock, log),
		Revoker:     revoker,
		Maintenance: maintenance,
	}
}
