package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/akinalp/custodian/pkg"
	"github.com/akinalp/custodian/pkg/ratelimit"
	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
	"go.uber.org/zap"
)

// IPThrottle, client IP başına token-bucket (x/time/rate) limiter.
//
// (identity, action) limiter'dan bağımsızdır: o kimlik bazlı brute-force'u,
// bu ise tek IP'den gelen genel istek selini keser. Kimliği olmayan
// endpoint'lerin (register, refresh) önünde durur.
type IPThrottle struct {
	mu      sync.Mutex
	entries map[string]*ipEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	clock   clock.Clock
	log     *zap.Logger
}

type ipEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewIPThrottle, constructor. rps <= 0 → throttle kapalı (her istek geçer).
func NewIPThrottle(rps float64, burst int, idleTTL time.Duration, clk clock.Clock, log *zap.Logger) *IPThrottle {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if burst < 1 {
		burst = 1
	}
	if idleTTL <= 0 {
		idleTTL = 15 * time.Minute
	}
	return &IPThrottle{
		entries: make(map[string]*ipEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		clock:   clk,
		log:     log.Named("ip_throttle"),
	}
}

// Limit, middleware. Limit aşılırsa 429 + Retry-After döner, next çağrılmaz.
func (t *IPThrottle) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.rps <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		ip := ratelimit.ExtractIP(r)
		ok, retry := t.allow(ip)
		if !ok {
			t.log.Debug("request throttled", zap.String("ip", ip), zap.Duration("retry_after", retry))
			pkg.Error(w, &pkg.RateLimitError{
				Action:     "http",
				RetryAfter: retry,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (t *IPThrottle) allow(ip string) (bool, time.Duration) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	ent, ok := t.entries[ip]
	if !ok {
		ent = &ipEntry{lim: rate.NewLimiter(t.rps, t.burst)}
		t.entries[ip] = ent
	}
	ent.lastSeen = now

	if ent.lim.AllowN(now, 1) {
		return true, 0
	}

	// Bir token dolana kadar geçecek süre.
	missing := 1 - ent.lim.TokensAt(now)
	return false, time.Duration(missing / float64(t.rps) * float64(time.Second))
}

// Sweep, idleTTL boyunca görülmeyen IP'leri siler. Maintenance döngüsüne
// Sweeper olarak bağlanır.
func (t *IPThrottle) Sweep() int {
	cutoff := t.clock.Now().Add(-t.idleTTL)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for ip, ent := range t.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(t.entries, ip)
			removed++
		}
	}
	return removed
}

// Len, takip edilen IP sayısı.
func (t *IPThrottle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

