// Package cache: Generic in-memory TTL cache.
//
// TTLCache, her kaydı mutlak bir son kullanma zamanı (expiresAt) ile tutan
// thread-safe, generic bir cache yapısıdır. Cache hiçbir zaman source of truth
// değildir: her miss, çağıranın asıl kaynaktan yeniden okuyabileceği normal
// bir sonuçtur.
//
// Expiry kuralları:
//   - Entry sadece now < expiresAt iken görünür.
//   - Get, süresi dolmuş entry'yi değer döndürmeden önce map'ten siler (lazy eviction).
//   - Get expiry'yi uzatmaz: sliding TTL yok.
//   - Periyodik sweep opsiyoneldir (WithSweepInterval); kapalıyken erişilmeyen
//     eski key'ler bir sonraki Get/Sweep çağrısına kadar bellekte kalır.
//
// Lock sadece map manipülasyonu sırasında tutulur; hiçbir I/O lock altında yapılmaz.
package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultTTL, ttl verilmeyen Set çağrılarında uygulanan süre.
const DefaultTTL = 60 * time.Second

// entry, cache'teki tek bir kayıttır. Dışarıya hiç açılmaz.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache, generic in-memory TTL cache.
//
//	c := cache.New[string, *models.User](30 * time.Second)
//	c.Set("user:42", u, 5*time.Second)
//	u, ok := c.Get("user:42")
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration
	clock   clock.Clock

	sweepInterval time.Duration
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// Option, TTLCache'i yapılandırır.
type Option func(*options)

type options struct {
	clock         clock.Clock
	sweepInterval time.Duration
}

// WithClock, zaman kaynağını değiştirir. Testlerde clock.NewMock() verilir.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithSweepInterval, süresi dolan entry'leri periyodik olarak silen
// goroutine'i açar. 0 veya negatif → kapalı (sadece lazy eviction).
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}

// New, yeni bir TTLCache oluşturur.
// ttl <= 0 ise DefaultTTL kullanılır.
func New[K comparable, V any](ttl time.Duration, opts ...Option) *TTLCache[K, V] {
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &TTLCache[K, V]{
		entries:       make(map[K]entry[V]),
		ttl:           ttl,
		clock:         o.clock,
		sweepInterval: o.sweepInterval,
		stopCleanup:   make(chan struct{}),
	}

	if c.sweepInterval > 0 {
		// Ticker goroutine başlamadan oluşturulur; mock clock ile test
		// ederken ilk Add() çağrısı kaçırılmaz.
		go c.sweepLoop(c.clock.Ticker(c.sweepInterval))
	}

	return c
}

// Get, cache'ten bir değer okur.
//
// (value, true): key var ve süresi dolmamış.
// (zero, false): key yok veya süresi dolmuş: dolmuşsa entry silinir.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	now := c.clock.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && now.Before(e.expiresAt) {
		return e.value, true
	}

	var zero V
	if !ok {
		return zero, false
	}

	// Expired entry'yi sil. RLock → Lock geçişinde başka bir goroutine
	// key'i yenilemiş olabilir; bu yüzden silmeden önce tekrar kontrol edilir.
	c.mu.Lock()
	if cur, still := c.entries[key]; still && !now.Before(cur.expiresAt) {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	return zero, false
}

// Set, value'yu expiresAt = now + ttl ile yazar; mevcut entry'nin üzerine yazar.
// ttl <= 0 → cache'in varsayılan TTL'i.
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	expiresAt := c.clock.Now().Add(ttl)

	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

// SetDefault, varsayılan TTL ile yazar.
func (c *TTLCache[K, V]) SetDefault(key K, value V) {
	c.Set(key, value, 0)
}

// Delete, belirli bir key'i cache'ten siler.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeleteFunc, predicate'i sağlayan tüm key'leri siler ve silinen sayıyı döner.
func (c *TTLCache[K, V]) DeleteFunc(predicate func(key K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if predicate(key) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear, tüm cache'i boşaltır. Shutdown ve test teardown'da kullanılır.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}

// Len, map'teki fiziksel entry sayısını döner (henüz silinmemiş expired'lar dahil).
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// TTL, cache'in varsayılan TTL'ini döner.
func (c *TTLCache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Sweep, süresi dolmuş tüm entry'leri siler ve silinen sayıyı döner.
func (c *TTLCache[K, V]) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Close, periyodik sweep goroutine'ini durdurur. Birden fazla çağrı güvenlidir.
func (c *TTLCache[K, V]) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
	})
}

func (c *TTLCache[K, V]) sweepLoop(ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stopCleanup:
			return
		}
	}
}
