package revocation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func newMockStore(opts ...Option) (*Store, *clock.Mock) {
	mock := clock.NewMock()
	s := New(append([]Option{WithClock(mock)}, opts...)...)
	return s, mock
}

func TestStore_RevokedUntilExpiry(t *testing.T) {
	s, mock := newMockStore()
	defer s.Close()

	s.Revoke("jti-1", mock.Now().Add(15*time.Minute))

	if !s.IsRevoked("jti-1") {
		t.Fatalf("expected jti-1 revoked")
	}

	mock.Add(15*time.Minute - time.Nanosecond)
	if !s.IsRevoked("jti-1") {
		t.Fatalf("expected jti-1 still revoked just before expiry")
	}

	mock.Add(time.Nanosecond)
	if s.IsRevoked("jti-1") {
		t.Fatalf("expected entry with expiresAt <= now to be absent")
	}
	if n := s.Len(); n != 0 {
		t.Fatalf("expected expired entry removed on lookup, Len=%d", n)
	}
}

func TestStore_RevokeIsIdempotent(t *testing.T) {
	s, mock := newMockStore()
	defer s.Close()

	exp := mock.Now().Add(10 * time.Minute)
	s.Revoke("jti-1", exp)
	s.Revoke("jti-1", exp)

	if n := s.Len(); n != 1 {
		t.Fatalf("expected a single entry, Len=%d", n)
	}

	// İkinci çağrı farklı expiry ile gelse de mevcut kayıt değişmez.
	s.Revoke("jti-1", mock.Now().Add(time.Minute))
	mock.Add(5 * time.Minute)
	if !s.IsRevoked("jti-1") {
		t.Fatalf("second revoke must not shorten the stored expiry")
	}

	mock.Add(5 * time.Minute)
	if s.IsRevoked("jti-1") {
		t.Fatalf("expected entry absent after original expiry")
	}
}

func TestStore_RevokeAlreadyExpiredIsNoop(t *testing.T) {
	s, mock := newMockStore()
	defer s.Close()

	s.Revoke("old", mock.Now())
	s.Revoke("older", mock.Now().Add(-time.Hour))

	if n := s.Len(); n != 0 {
		t.Fatalf("expected no entries for already-expired tokens, Len=%d", n)
	}
}

func TestStore_UnknownTokenIsNotRevoked(t *testing.T) {
	s, _ := newMockStore()
	defer s.Close()

	if s.IsRevoked("never-seen") {
		t.Fatalf("expected unknown jti not revoked")
	}
}

func TestStore_SweepKeepsLiveEntries(t *testing.T) {
	s, mock := newMockStore(WithOpportunisticSweep(-1))
	defer s.Close()

	now := mock.Now()
	s.Revoke("short", now.Add(time.Minute))
	s.Revoke("long", now.Add(time.Hour))

	mock.Add(time.Minute)
	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("expected 1 swept entry, got %d", removed)
	}
	if !s.IsRevoked("long") {
		t.Fatalf("sweep must never remove an entry inside its expiry window")
	}
}

func TestStore_OpportunisticSweepInsideRevoke(t *testing.T) {
	s, mock := newMockStore(WithOpportunisticSweep(time.Minute))
	defer s.Close()

	now := mock.Now()
	for i := 0; i < 10; i++ {
		s.Revoke(fmt.Sprintf("jti-%d", i), now.Add(30*time.Second))
	}

	mock.Add(2 * time.Minute)
	s.Revoke("fresh", mock.Now().Add(time.Hour))

	if n := s.Len(); n != 1 {
		t.Fatalf("expected expired entries swept during Revoke, Len=%d", n)
	}
}

func TestStore_Restore(t *testing.T) {
	s, mock := newMockStore()
	defer s.Close()

	now := mock.Now()
	loaded := s.Restore(map[string]time.Time{
		"live":    now.Add(time.Hour),
		"expired": now.Add(-time.Second),
	})

	if loaded != 1 {
		t.Fatalf("expected 1 restored entry, got %d", loaded)
	}
	if !s.IsRevoked("live") {
		t.Fatalf("expected restored entry to be revoked")
	}
	if s.IsRevoked("expired") {
		t.Fatalf("expired entries must not be restored")
	}
}

func TestStore_PeriodicSweep(t *testing.T) {
	mock := clock.NewMock()
	s := New(WithClock(mock), WithOpportunisticSweep(-1), WithSweepInterval(time.Minute))
	defer s.Close()

	s.Revoke("jti", mock.Now().Add(30*time.Second))
	mock.Add(time.Minute)

	deadline := time.Now().Add(time.Second)
	for s.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected background sweep to remove the expired entry")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStore_ConcurrentRevokeAndLookup(t *testing.T) {
	s := New()
	defer s.Close()

	exp := time.Now().Add(time.Hour)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				jti := fmt.Sprintf("jti-%d", i%50)
				s.Revoke(jti, exp)
				if !s.IsRevoked(jti) {
					t.Errorf("expected %s revoked right after Revoke", jti)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if n := s.Len(); n != 50 {
		t.Fatalf("expected 50 unique entries, Len=%d", n)
	}
}
