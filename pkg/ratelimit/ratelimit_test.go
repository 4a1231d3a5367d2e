package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func newMockLimiter(opts ...Option) (*Limiter, *clock.Mock) {
	mock := clock.NewMock()
	l := New(append([]Option{WithClock(mock)}, opts...)...)
	return l, mock
}

func TestLimiter_AdmitsUpToLimitThenRejects(t *testing.T) {
	l, _ := newMockLimiter()
	defer l.Close()

	for i := 1; i <= 5; i++ {
		if !l.Allow("user-1", "password_reset") {
			t.Fatalf("call %d: expected admitted", i)
		}
	}
	if l.Allow("user-1", "password_reset") {
		t.Fatalf("call 6: expected rejected")
	}
}

func TestLimiter_AdmitsAgainAfterWindowElapses(t *testing.T) {
	l, mock := newMockLimiter()
	defer l.Close()

	for i := 0; i < 5; i++ {
		l.Allow("user-1", "login")
	}
	if l.Allow("user-1", "login") {
		t.Fatalf("expected rejection inside the window")
	}

	mock.Add(61 * time.Second)
	if !l.Allow("user-1", "login") {
		t.Fatalf("expected admission after the window fully elapsed")
	}
}

// Tam olarak window kadar eski bir damga hâlâ sayılır (t < now-window prune).
func TestLimiter_BoundaryTimestampStillCounts(t *testing.T) {
	for run := 0; run < 3; run++ {
		l, mock := newMockLimiter()

		for i := 0; i < 5; i++ {
			if !l.Allow("user-1", "login") {
				t.Fatalf("run %d: expected admission %d", run, i+1)
			}
		}

		mock.Add(60 * time.Second)
		if l.Allow("user-1", "login") {
			t.Fatalf("run %d: call at now == windowStart+window must be rejected", run)
		}

		mock.Add(time.Nanosecond)
		if !l.Allow("user-1", "login") {
			t.Fatalf("run %d: call just after the boundary must be admitted", run)
		}
		l.Close()
	}
}

func TestLimiter_RejectedCallsDoNotConsumeBudget(t *testing.T) {
	l, mock := newMockLimiter(WithDefaultPolicy(Policy{Limit: 2, Window: 10 * time.Second}))
	defer l.Close()

	l.Allow("u", "a") // t=0
	mock.Add(5 * time.Second)
	l.Allow("u", "a") // t=5

	for i := 0; i < 10; i++ {
		if l.Allow("u", "a") {
			t.Fatalf("expected rejection while window is full")
		}
	}

	// t=0 damgası düşer; reddedilenler kaydedilmediği için bir hak açılır.
	mock.Add(5*time.Second + time.Nanosecond)
	if !l.Allow("u", "a") {
		t.Fatalf("expected admission once the oldest admitted call left the window")
	}
}

func TestLimiter_IdentitiesAndActionsAreIndependent(t *testing.T) {
	l, _ := newMockLimiter(WithDefaultPolicy(Policy{Limit: 1, Window: time.Minute}))
	defer l.Close()

	if !l.Allow("a", "login") {
		t.Fatalf("expected a/login admitted")
	}
	if !l.Allow("b", "login") {
		t.Fatalf("expected b/login admitted")
	}
	if !l.Allow("a", "password_reset") {
		t.Fatalf("expected a/password_reset admitted")
	}
	if l.Allow("a", "login") {
		t.Fatalf("expected second a/login rejected")
	}
}

func TestLimiter_PerActionPolicy(t *testing.T) {
	l, _ := newMockLimiter(WithPolicy("login", Policy{Limit: 2, Window: time.Minute}))
	defer l.Close()

	if got := l.PolicyFor("login"); got.Limit != 2 {
		t.Fatalf("expected login limit 2, got %d", got.Limit)
	}
	if got := l.PolicyFor("other"); got != DefaultPolicy {
		t.Fatalf("expected default policy for unknown action, got %+v", got)
	}

	l.Allow("u", "login")
	l.Allow("u", "login")
	if l.Allow("u", "login") {
		t.Fatalf("expected third login rejected")
	}
}

func TestLimiter_ZeroLimitRejectsEverything(t *testing.T) {
	l, _ := newMockLimiter(WithPolicy("blocked", Policy{Limit: 0, Window: time.Minute}))
	defer l.Close()

	if l.Allow("u", "blocked") {
		t.Fatalf("expected rejection for zero limit")
	}
	if n := l.Len(); n != 0 {
		t.Fatalf("rejected calls must not allocate windows, Len=%d", n)
	}
}

func TestLimiter_ResetClearsWindow(t *testing.T) {
	l, _ := newMockLimiter()
	defer l.Close()

	for i := 0; i < 5; i++ {
		l.Allow("u", "login")
	}
	l.Reset("u", "login")

	if !l.Allow("u", "login") {
		t.Fatalf("expected admission after Reset")
	}
}

func TestLimiter_RemainingAndRetryAfter(t *testing.T) {
	l, mock := newMockLimiter(WithDefaultPolicy(Policy{Limit: 3, Window: 30 * time.Second}))
	defer l.Close()

	if got := l.Remaining("u", "a"); got != 3 {
		t.Fatalf("expected 3 remaining, got %d", got)
	}
	if got := l.RetryAfter("u", "a"); got != 0 {
		t.Fatalf("expected no retry-after for fresh identity, got %s", got)
	}

	l.Allow("u", "a")
	mock.Add(10 * time.Second)
	l.Allow("u", "a")
	l.Allow("u", "a")

	if got := l.Remaining("u", "a"); got != 0 {
		t.Fatalf("expected 0 remaining, got %d", got)
	}

	want := 20*time.Second + time.Nanosecond
	if got := l.RetryAfter("u", "a"); got != want {
		t.Fatalf("expected retry-after %s, got %s", want, got)
	}

	mock.Add(want)
	if !l.Allow("u", "a") {
		t.Fatalf("expected admission exactly after retry-after elapsed")
	}
}

func TestLimiter_SweepDropsIdleWindows(t *testing.T) {
	l, mock := newMockLimiter()
	defer l.Close()

	for i := 0; i < 100; i++ {
		l.Allow(fmt.Sprintf("user-%d", i), "login")
	}
	mock.Add(30 * time.Second)
	l.Allow("recent", "login")

	mock.Add(31 * time.Second)
	if removed := l.Sweep(); removed != 100 {
		t.Fatalf("expected 100 idle windows swept, got %d", removed)
	}
	if n := l.Len(); n != 1 {
		t.Fatalf("expected only the recent window to remain, Len=%d", n)
	}
}

func TestLimiter_PeriodicSweep(t *testing.T) {
	mock := clock.NewMock()
	l := New(WithClock(mock), WithSweepInterval(2*time.Minute))
	defer l.Close()

	l.Allow("u", "login")
	mock.Add(2 * time.Minute)

	deadline := time.Now().Add(time.Second)
	for l.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected background sweep to drop the idle window")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLimiter_ConcurrentAdmissionsNeverExceedLimit(t *testing.T) {
	l, _ := newMockLimiter(WithDefaultPolicy(Policy{Limit: 50, Window: time.Hour}))
	defer l.Close()

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared", "login") {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 50 {
		t.Fatalf("expected exactly 50 admissions, got %d", got)
	}
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "xff first hop", headers: map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, remote: "1.1.1.1:5000", want: "10.0.0.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "10.0.0.9"}, remote: "1.1.1.1:5000", want: "10.0.0.9"},
		{name: "remote addr", remote: "192.168.1.4:5000", want: "192.168.1.4"},
		{name: "remote without port", remote: "192.168.1.4", want: "192.168.1.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ExtractIP(r); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatRetryMessage(t *testing.T) {
	if got := FormatRetryMessage(120 * time.Second); got != "2 minute(s)" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := FormatRetryMessage(45 * time.Second); got != "45 second(s)" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := FormatRetryMessage(0); got != "1 second(s)" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestMemoryStats_Record(t *testing.T) {
	s := NewMemoryStats()
	ctx := context.Background()

	_ = s.Record(ctx, StatsEvent{Action: "login", Allowed: true})
	_ = s.Record(ctx, StatsEvent{Action: "login", Allowed: false})
	_ = s.Record(ctx, StatsEvent{Action: "password_reset", Allowed: false})

	total := s.Total()
	if total.Allowed != 1 || total.Denied != 2 {
		t.Fatalf("unexpected totals %+v", total)
	}
	if got := s.ByAction()["login"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected login counters %+v", got)
	}
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) Record(context.Context, StatsEvent) error {
	f.calls++
	return errors.New("boom")
}

func TestMultiStats_CallsEveryRecorder(t *testing.T) {
	mem := NewMemoryStats()
	failing := &failingRecorder{}
	m := MultiStats{failing, nil, mem}

	if err := m.Record(context.Background(), StatsEvent{Action: "login", Allowed: true}); err == nil {
		t.Fatalf("expected first error to be returned")
	}
	if failing.calls != 1 {
		t.Fatalf("expected failing recorder to be called once, got %d", failing.calls)
	}
	if mem.Total().Allowed != 1 {
		t.Fatalf("expected memory recorder to still be called")
	}
}

func TestRedisStats_NilClientIsNoop(t *testing.T) {
	var s *RedisStats
	if err := s.Record(context.Background(), StatsEvent{Action: "login"}); err != nil {
		t.Fatalf("expected nil receiver to be a no-op, got %v", err)
	}
	if err := NewRedisStats(nil).Record(context.Background(), StatsEvent{Action: "login"}); err != nil {
		t.Fatalf("expected nil client to be a no-op, got %v", err)
	}
}
