// Package services, iş kurallarını barındırır.
//
// Service'ler http.Request bilmez ve doğrudan SQL çalıştırmaz; repository
// interface'leri ve pkg/ altındaki primitive'ler (cache, limiter, revocation)
// üzerinden çalışır.
package services

import (
	"context"
	"strings"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/akinalp/custodian/pkg"
	"github.com/akinalp/custodian/pkg/ratelimit"
)

// Rate limit uygulanan action'lar.
const (
	ActionLogin          = "login"
	ActionPasswordReset  = "password_reset"
	ActionChangePassword = "change_password"
)

// Throttle, hassas işlemlerin başındaki açık guard çağrısı:
//
//	if err := s.throttle.Check(ctx, id, ActionLogin); err != nil {
//	    return nil, err
//	}
//
// Red durumunda *pkg.RateLimitError döner ve hiçbir yan etki yapılmaz.
// Kararlar istatistik olarak kaydedilir; kayıt hatası isteği düşürmez.
type Throttle struct {
	limiter *ratelimit.Limiter
	stats   ratelimit.StatsRecorder
	clock   clock.Clock
	log     *zap.Logger
}

// NewThrottle, constructor. stats nil olabilir.
func NewThrottle(limiter *ratelimit.Limiter, stats ratelimit.StatsRecorder, clk clock.Clock, log *zap.Logger) *Throttle {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Throttle{limiter: limiter, stats: stats, clock: clk, log: log.Named("throttle")}
}

// Check, (identity, action) için bir hak harcar. Limit doluysa RateLimitError döner.
func (t *Throttle) Check(ctx context.Context, identity, action string) error {
	identity = strings.ToLower(strings.TrimSpace(identity))
	allowed := t.limiter.Allow(identity, action)

	// Limiter lock'u bırakıldı; kayıt I/O yapabilir.
	t.record(ctx, identity, action, allowed)

	if allowed {
		return nil
	}

	retry := t.limiter.RetryAfter(identity, action)
	t.log.Warn("action throttled",
		zap.String("action", action),
		zap.String("identity", identity),
		zap.Duration("retry_after", retry),
	)
	return &pkg.RateLimitError{Action: action, RetryAfter: retry}
}

// Reset, başarılı bir işlemden sonra pencereyi temizler (ör. doğru şifreyle login).
func (t *Throttle) Reset(identity, action string) {
	t.limiter.Reset(strings.ToLower(strings.TrimSpace(identity)), action)
}

func (t *Throttle) record(ctx context.Context, identity, action string, allowed bool) {
	if t.stats == nil {
		return
	}
	ev := ratelimit.StatsEvent{Identity: identity, Action: action, Allowed: allowed, At: t.clock.Now()}
	if err := t.stats.Record(ctx, ev); err != nil {
		t.log.Debug("failed to record rate limit stats", zap.Error(err))
	}
}
