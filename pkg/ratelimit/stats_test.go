package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// pipelineRecorder, pipeline'a giren komutları yakalar ve sunucuya gitmeden
// döner. failWith doluysa Exec o hatayı alır.
type pipelineRecorder struct {
	mu       sync.Mutex
	cmds     []string
	failWith error
}

func (h *pipelineRecorder) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *pipelineRecorder) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (h *pipelineRecorder) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(_ context.Context, cmds []redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, c := range cmds {
			parts := make([]string, 0, len(c.Args()))
			for _, a := range c.Args() {
				parts = append(parts, fmt.Sprint(a))
			}
			h.cmds = append(h.cmds, strings.Join(parts, " "))
		}
		return h.failWith
	}
}

func (h *pipelineRecorder) recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.cmds...)
}

func newRecordedClient(t *testing.T) (*redis.Client, *pipelineRecorder) {
	t.Helper()
	// Adres hiç dinlenmiyor; hook komutları ağa çıkmadan keser.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { rdb.Close() })
	rec := &pipelineRecorder{}
	rdb.AddHook(rec)
	return rdb, rec
}

func assertCommands(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d commands, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("command %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestRedisStats_KeyLayout(t *testing.T) {
	rdb, rec := newRecordedClient(t)
	s := NewRedisStats(rdb,
		WithStatsPrefix("test:rl:"),
		WithStatsTTL(time.Hour),
		WithTrackIdentities(true),
	)

	at := time.Date(2026, 3, 1, 12, 34, 56, 0, time.UTC)
	err := s.Record(context.Background(), StatsEvent{
		Identity: "alice",
		Action:   "login",
		Allowed:  false,
		At:       at,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	assertCommands(t, rec.recorded(), []string{
		"hincrby test:rl:total denied 1",
		"hincrby test:rl:action:login denied 1",
		"hincrby test:rl:minute:202603011234 denied 1",
		"expire test:rl:minute:202603011234 3600",
		"hincrby test:rl:identity:alice denied 1",
		"expire test:rl:identity:alice 3600",
	})
}

func TestRedisStats_SkipsIdentityAndEmptyAction(t *testing.T) {
	rdb, rec := newRecordedClient(t)
	s := NewRedisStats(rdb, WithStatsTTL(0))

	// Yerel saat dilimindeki zaman UTC dakikasına yazılır.
	at := time.Date(2026, 3, 1, 15, 0, 0, 0, time.FixedZone("TRT", 3*60*60))
	if err := s.Record(context.Background(), StatsEvent{Identity: "alice", Allowed: true, At: at}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	assertCommands(t, rec.recorded(), []string{
		"hincrby custodian:ratelimit:total allowed 1",
		"hincrby custodian:ratelimit:minute:202603011200 allowed 1",
	})
}

func TestRedisStats_ReturnsPipelineError(t *testing.T) {
	rdb, rec := newRecordedClient(t)
	rec.failWith = errors.New("connection refused")

	err := NewRedisStats(rdb).Record(context.Background(), StatsEvent{Action: "login", Allowed: true, At: time.Now()})
	if !errors.Is(err, rec.failWith) {
		t.Fatalf("expected pipeline error to be returned, got %v", err)
	}
}
