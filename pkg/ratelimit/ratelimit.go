// Package ratelimit: (identity, action) bazlı sliding window rate limiting.
//
// Tasarım:
//   - Her (identity, action) çifti için kabul edilen isteklerin zaman damgaları
//     tutulur (sliding window log). Damga sayısı hiçbir zaman policy limitini aşmaz.
//   - Karar öncesi pencere dışına düşen damgalar silinir.
//     Prune kuralı: t < now-window → silinir. Tam olarak window kadar eski bir
//     damga hâlâ sayılır; yani ilk istekten tam window sonra gelen istek,
//     pencere doluysa reddedilir.
//   - Reddedilen denemeler bütçe tüketmez (kayıt sadece kabulde yapılır).
//   - Aktivitesi biten pencereler Sweep() ile veya opsiyonel periyodik sweep
//     ile silinir; çok sayıda farklı identity altında bellek sınırsız büyümez.
//
// Limiter sadece bool döner, hiçbir zaman error üretmez. Reddi
// pkg.ErrRateLimited'e çevirmek çağıran servisin işidir.
//
// pkg/ratelimit hiçbir proje içi pakete bağımlı değildir (leaf dependency).
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Policy, bir action için pencere başına izin verilen deneme sayısı.
type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicy: (userID, action) başına 60 saniyede 5 deneme.
var DefaultPolicy = Policy{Limit: 5, Window: 60 * time.Second}

type windowKey struct {
	identity string
	action   string
}

// window, bir (identity, action) çiftinin kabul edilmiş deneme damgaları.
// Damgalar eklenme sırasına göre (artan) tutulur.
type window struct {
	timestamps []time.Time
}

// prune, cutoff'tan kesin olarak eski damgaları atar.
func (w *window) prune(cutoff time.Time) {
	kept := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	// Atılan damgaların referansı backing array'de kalmasın.
	for i := len(kept); i < len(w.timestamps); i++ {
		w.timestamps[i] = time.Time{}
	}
	w.timestamps = kept
}

// Limiter, process içi sliding window rate limiter.
//
//	limiter := ratelimit.New(ratelimit.WithPolicy("login", ratelimit.Policy{Limit: 5, Window: time.Minute}))
//	if !limiter.Allow(userID, "login") { return pkg.ErrRateLimited }
type Limiter struct {
	mu            sync.Mutex
	windows       map[windowKey]*window
	policies      map[string]Policy
	defaultPolicy Policy
	clock         clock.Clock

	sweepInterval time.Duration
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// Option, Limiter'ı yapılandırır.
type Option func(*Limiter)

// WithClock, zaman kaynağını değiştirir.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithDefaultPolicy, action'a özel policy tanımlı değilse kullanılacak policy.
func WithDefaultPolicy(p Policy) Option {
	return func(l *Limiter) { l.defaultPolicy = p }
}

// WithPolicy, tek bir action için policy tanımlar.
func WithPolicy(action string, p Policy) Option {
	return func(l *Limiter) { l.policies[action] = p }
}

// WithSweepInterval, boşalan pencereleri periyodik olarak silen goroutine'i açar.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiter) { l.sweepInterval = d }
}

// New, yeni bir Limiter oluşturur.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		windows:       make(map[windowKey]*window),
		policies:      make(map[string]Policy),
		defaultPolicy: DefaultPolicy,
		clock:         clock.New(),
		stopCleanup:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.sweepInterval > 0 {
		go l.sweepLoop(l.clock.Ticker(l.sweepInterval))
	}

	return l
}

// PolicyFor, action için geçerli policy'yi döner.
func (l *Limiter) PolicyFor(action string) Policy {
	if p, ok := l.policies[action]; ok {
		return p
	}
	return l.defaultPolicy
}

// Allow, (identity, action) için son window içinde limit'ten az kabul varsa
// denemeyi kaydedip true döner; aksi halde hiçbir şey kaydetmeden false döner.
func (l *Limiter) Allow(identity, action string) bool {
	p := l.PolicyFor(action)
	now := l.clock.Now()
	cutoff := now.Add(-p.Window)
	key := windowKey{identity: identity, action: action}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if exists {
		w.prune(cutoff)
	}

	count := 0
	if exists {
		count = len(w.timestamps)
	}

	if count >= p.Limit {
		if exists && count == 0 {
			delete(l.windows, key)
		}
		return false
	}

	if !exists {
		w = &window{timestamps: make([]time.Time, 0, p.Limit)}
		l.windows[key] = w
	}
	w.timestamps = append(w.timestamps, now)
	return true
}

// Reset, (identity, action) penceresini tamamen siler.
// Başarılı login sonrası meşru kullanıcının sayacı böyle temizlenir.
func (l *Limiter) Reset(identity, action string) {
	l.mu.Lock()
	delete(l.windows, windowKey{identity: identity, action: action})
	l.mu.Unlock()
}

// Remaining, mevcut pencerede kalan kabul hakkını döner.
func (l *Limiter) Remaining(identity, action string) int {
	p := l.PolicyFor(action)
	cutoff := l.clock.Now().Add(-p.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[windowKey{identity: identity, action: action}]
	if !ok {
		return max(p.Limit, 0)
	}
	w.prune(cutoff)
	return max(p.Limit-len(w.timestamps), 0)
}

// RetryAfter, bir sonraki denemenin kabul edilebilmesi için beklenmesi
// gereken süreyi döner. Pencere dolu değilse 0.
func (l *Limiter) RetryAfter(identity, action string) time.Duration {
	p := l.PolicyFor(action)
	now := l.clock.Now()
	cutoff := now.Add(-p.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[windowKey{identity: identity, action: action}]
	if !ok {
		return 0
	}
	w.prune(cutoff)
	if len(w.timestamps) < p.Limit || len(w.timestamps) == 0 {
		return 0
	}

	// En eski damga t, now > t+window olduğunda düşer.
	oldest := w.timestamps[0]
	return oldest.Add(p.Window).Sub(now) + time.Nanosecond
}

// Len, bellekteki pencere sayısını döner.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Sweep, tüm damgaları pencere dışına düşmüş (identity, action) kayıtlarını
// siler ve silinen sayısını döner.
func (l *Limiter) Sweep() int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		w.prune(now.Add(-l.PolicyFor(key.action).Window))
		if len(w.timestamps) == 0 {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Close, periyodik sweep goroutine'ini durdurur.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		close(l.stopCleanup)
	})
}

func (l *Limiter) sweepLoop(ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-l.stopCleanup:
			return
		}
	}
}

// ExtractIP, HTTP request'ten client IP adresini çıkarır.
//
// Öncelik sırası:
// 1. X-Forwarded-For header (reverse proxy arkasındaysa, ilk IP)
// 2. X-Real-IP header
// 3. RemoteAddr
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FormatRetryMessage, kalan süreyi okunabilir formata çevirir.
// Örn: 120s → "2 minute(s)", 45s → "45 second(s)"
func FormatRetryMessage(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	if seconds >= 60 {
		return fmt.Sprintf("%d minute(s)", seconds/60)
	}
	return fmt.Sprintf("%d second(s)", seconds)
}
