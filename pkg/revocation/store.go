// Package revocation: iptal edilmiş JWT ID'leri (JTI) için process içi store.
//
// Store sadece (jti → expiresAt) tutar. Bir token doğal süresi dolana kadar
// iptal listesinde kalır; expiresAt <= now olan kayıt "yok" kabul edilir
// (token zaten geçersiz, iptal anlamsız) ve sweep ile silinir.
// Böylece store sadece "kendi ömrü içinde iptal edilmiş token'lar" kadar büyür.
//
// Duvar saati varsayımı: expiry kararları clock.Now() ile verilir. Saat geri
// alınırsa kayıtlar gerekenden uzun yaşar (güvenli taraf); ileri alınırsa
// erken düşer. Access token'lar da aynı saatle doğrulandığı için ileri
// sıçrama token'ı da geçersiz kılar.
package revocation

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultSweepEvery, Revoke içinde fırsat temizliğinin en sık çalışma aralığı.
const DefaultSweepEvery = time.Minute

// Store, thread-safe JTI revocation store.
type Store struct {
	mu        sync.RWMutex
	revoked   map[string]time.Time
	clock     clock.Clock
	lastSweep time.Time

	sweepEvery    time.Duration
	sweepInterval time.Duration
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// Option, Store'u yapılandırır.
type Option func(*Store)

// WithClock, zaman kaynağını değiştirir.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithOpportunisticSweep, Revoke içindeki temizliğin en sık ne kadar aralıkla
// yapılacağını belirler. 0 → her Revoke'ta; negatif → kapalı.
func WithOpportunisticSweep(every time.Duration) Option {
	return func(s *Store) { s.sweepEvery = every }
}

// WithSweepInterval, periyodik temizleme goroutine'ini açar.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) { s.sweepInterval = d }
}

// New, boş bir Store oluşturur.
func New(opts ...Option) *Store {
	s := &Store{
		revoked:     make(map[string]time.Time),
		clock:       clock.New(),
		sweepEvery:  DefaultSweepEvery,
		stopCleanup: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSweep = s.clock.Now()

	if s.sweepInterval > 0 {
		go s.sweepLoop(s.clock.Ticker(s.sweepInterval))
	}

	return s
}

// Revoke, jti'yi expiresAt'e kadar iptal edilmiş olarak işaretler.
//
// Idempotent: aynı jti için ikinci çağrı mevcut kaydı değiştirmez.
// Zaten süresi dolmuş bir token için çağrı no-op'tur.
func (s *Store) Revoke(jti string, expiresAt time.Time) {
	now := s.clock.Now()
	if !now.Before(expiresAt) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.revoked[jti]; !ok || !now.Before(cur) {
		s.revoked[jti] = expiresAt
	}

	if s.sweepEvery >= 0 && now.Sub(s.lastSweep) >= s.sweepEvery {
		s.sweepLocked(now)
	}
}

// IsRevoked, O(1) lookup. Süresi dolmuş kayıt false döner ve silinir.
func (s *Store) IsRevoked(jti string) bool {
	now := s.clock.Now()

	s.mu.RLock()
	exp, ok := s.revoked[jti]
	s.mu.RUnlock()

	if !ok {
		return false
	}
	if now.Before(exp) {
		return true
	}

	s.mu.Lock()
	if cur, still := s.revoked[jti]; still && !now.Before(cur) {
		delete(s.revoked, jti)
	}
	s.mu.Unlock()

	return false
}

// Restore, kalıcı kaynaktan (revoked_tokens tablosu) okunan kayıtları yükler.
// Startup'ta bir kez çağrılır; süresi dolmuşlar atlanır.
func (s *Store) Restore(entries map[string]time.Time) int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	for jti, exp := range entries {
		if !now.Before(exp) {
			continue
		}
		if cur, ok := s.revoked[jti]; ok && now.Before(cur) {
			continue
		}
		s.revoked[jti] = exp
		loaded++
	}
	return loaded
}

// Sweep, expiresAt <= now olan tüm kayıtları siler. Henüz süresi dolmamış
// hiçbir kayda dokunmaz.
func (s *Store) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweepLocked(now)
}

func (s *Store) sweepLocked(now time.Time) int {
	removed := 0
	for jti, exp := range s.revoked {
		if !now.Before(exp) {
			delete(s.revoked, jti)
			removed++
		}
	}
	s.lastSweep = now
	return removed
}

// Len, fiziksel kayıt sayısı (henüz silinmemiş expired'lar dahil).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked)
}

// Close, periyodik temizleme goroutine'ini durdurur.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
	})
}

func (s *Store) sweepLoop(ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCleanup:
			return
		}
	}
}
