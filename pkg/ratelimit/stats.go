package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsEvent, tek bir admission kararının kaydı.
//
// Identity kardinalitesi yüksektir; Redis'e sadece trackIdentities açıksa yazılır.
type StatsEvent struct {
	Identity string
	Action   string
	Allowed  bool
	At       time.Time
}

// StatsRecorder, admission kararlarını best-effort olarak kaydeder.
// Hata request'i asla düşürmez; çağıran sadece loglar.
// Limiter lock'u altında ÇAĞRILMAZ: I/O yapabilir.
type StatsRecorder interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// Counters, kabul/red sayaçları.
type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// MemoryStats, process içi sayaçlar. Test ve tek instance deploy için.
type MemoryStats struct {
	mu       sync.Mutex
	total    Counters
	byAction map[string]Counters
}

// NewMemoryStats, constructor.
func NewMemoryStats() *MemoryStats {
	return &MemoryStats{byAction: make(map[string]Counters)}
}

// Record, StatsRecorder implementasyonu.
func (s *MemoryStats) Record(_ context.Context, ev StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)
	c := s.byAction[ev.Action]
	c.add(ev.Allowed)
	s.byAction[ev.Action] = c
	return nil
}

// Total, tüm action'lar için toplam sayaçlar.
func (s *MemoryStats) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// ByAction, action bazlı sayaçların kopyasını döner.
func (s *MemoryStats) ByAction() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Counters, len(s.byAction))
	for k, v := range s.byAction {
		out[k] = v
	}
	return out
}

// RedisStats, sayaçları Redis hash'lerine yazar.
//
// Key şeması:
//
//	<prefix>:total              → allowed / denied
//	<prefix>:action:<action>    → allowed / denied
//	<prefix>:minute:<YYYYMMDDhhmm> → allowed / denied (ttl ile)
//	<prefix>:identity:<id>      → allowed / denied (trackIdentities, ttl ile)
//
// Sadece sayaç tutar; admission kararlarına hiçbir zaman katılmaz.
type RedisStats struct {
	rdb             *redis.Client
	prefix          string
	ttl             time.Duration
	trackIdentities bool
}

// RedisStatsOption, RedisStats'i yapılandırır.
type RedisStatsOption func(*RedisStats)

// WithStatsPrefix, key prefix'i (varsayılan "custodian:ratelimit").
func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStats) { s.prefix = strings.Trim(prefix, ":") }
}

// WithStatsTTL, zaman serisi ve identity key'lerinin ömrü.
func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStats) { s.ttl = d }
}

// WithTrackIdentities, identity bazlı sayaçları açar.
func WithTrackIdentities(track bool) RedisStatsOption {
	return func(s *RedisStats) { s.trackIdentities = track }
}

// NewRedisStats, constructor.
func NewRedisStats(rdb *redis.Client, opts ...RedisStatsOption) *RedisStats {
	s := &RedisStats{
		rdb:    rdb,
		prefix: "custodian:ratelimit",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record, StatsRecorder implementasyonu. Tüm yazmalar tek pipeline ile gider.
func (s *RedisStats) Record(ctx context.Context, ev StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	if action := strings.TrimSpace(ev.Action); action != "" {
		pipe.HIncrBy(ctx, s.prefix+":action:"+action, field, 1)
	}

	bucketKey := s.prefix + ":minute:" + at.UTC().Format("200601021504")
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	if s.trackIdentities {
		if id := strings.TrimSpace(ev.Identity); id != "" {
			idKey := s.prefix + ":identity:" + id
			pipe.HIncrBy(ctx, idKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, idKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// MultiStats, birden fazla recorder'a sırayla yazar; ilk hatayı döner
// ama kalan recorder'ları yine de çağırır.
type MultiStats []StatsRecorder

// Record, StatsRecorder implementasyonu.
func (m MultiStats) Record(ctx context.Context, ev StatsEvent) error {
	var first error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
