package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/akinalp/custodian/models"
	"github.com/akinalp/custodian/pkg/cache"
)

// countingRepo, GetByID çağrılarını sayar. holdNext açıksa bir sonraki okuma
// satırı okuduktan sonra entered'a haber verir ve gate kapanana kadar bekler.
type countingRepo struct {
	UserRepository
	calls    atomic.Int64
	holdNext atomic.Bool
	entered  chan struct{}
	gate     chan struct{}
}

func (r *countingRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.calls.Add(1)
	u, err := r.UserRepository.GetByID(ctx, id)
	if r.holdNext.CompareAndSwap(true, false) {
		r.entered <- struct{}{}
		<-r.gate
	}
	return u, err
}

// hold, bir sonraki GetByID'yi yakalar. Goroutine'ler başlamadan çağrılmalı.
func (r *countingRepo) hold() {
	r.entered = make(chan struct{}, 1)
	r.gate = make(chan struct{})
	r.holdNext.Store(true)
}

func newCachedRepo(t *testing.T) (*CachedUserRepo, *countingRepo, *clock.Mock) {
	t.Helper()
	db := openTestDB(t)
	mock := clock.NewMock()
	c := cache.New[string, *models.User](time.Minute, cache.WithClock(mock))
	t.Cleanup(c.Close)

	inner := &countingRepo{UserRepository: NewSQLiteUserRepo(db.Conn)}
	return NewCachedUserRepo(inner, c, nil), inner, mock
}

func TestCachedUserRepo_ReadThroughAndExpiry(t *testing.T) {
	repo, inner, mock := newCachedRepo(t)
	ctx := context.Background()
	u := createUser(t, repo, "alice")

	for i := 0; i < 3; i++ {
		if _, err := repo.GetByID(ctx, u.ID); err != nil {
			t.Fatalf("GetByID: %v", err)
		}
	}
	if got := inner.calls.Load(); got != 1 {
		t.Fatalf("expected 1 underlying read, got %d", got)
	}

	mock.Add(time.Minute)
	if _, err := repo.GetByID(ctx, u.ID); err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got := inner.calls.Load(); got != 2 {
		t.Fatalf("expected reload after ttl, got %d reads", got)
	}
}

func TestCachedUserRepo_ReturnsCopies(t *testing.T) {
	repo, _, _ := newCachedRepo(t)
	ctx := context.Background()
	u := createUser(t, repo, "alice")

	first, _ := repo.GetByID(ctx, u.ID)
	first.Username = "mallory"
	*first.DisplayName = "mallory"

	second, _ := repo.GetByID(ctx, u.ID)
	if second.Username != "alice" || *second.DisplayName != "alice" {
		t.Fatalf("cached value was mutated through a returned pointer: %+v", second)
	}
}

func TestCachedUserRepo_MutationsInvalidate(t *testing.T) {
	repo, _, _ := newCachedRepo(t)
	ctx := context.Background()
	u := createUser(t, repo, "alice")

	if _, err := repo.GetByID(ctx, u.ID); err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if _, ok := repo.Cached(u.ID); !ok {
		t.Fatalf("expected entry cached after read")
	}

	u.DisplayName = strPtr("Alice B.")
	if err := repo.Update(ctx, u); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, ok := repo.Cached(u.ID); ok {
		t.Fatalf("expected entry invalidated after update")
	}

	got, _ := repo.GetByID(ctx, u.ID)
	if *got.DisplayName != "Alice B." {
		t.Fatalf("expected fresh value after invalidation, got %q", *got.DisplayName)
	}

	if err := repo.UpdatePassword(ctx, u.ID, "new-hash", time.Time{}); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	if _, ok := repo.Cached(u.ID); ok {
		t.Fatalf("expected entry invalidated after password update")
	}
}

func TestCachedUserRepo_FailedWriteKeepsCache(t *testing.T) {
	repo, _, _ := newCachedRepo(t)
	ctx := context.Background()
	u := createUser(t, repo, "alice")
	other := createUser(t, repo, "bob")

	repo.GetByID(ctx, u.ID)

	// bob'un email'i ile çakışma → yazma başarısız, cache dokunulmaz.
	u.Email = other.Email
	if err := repo.Update(ctx, u); err == nil {
		t.Fatalf("expected unique violation")
	}
	if _, ok := repo.Cached(u.ID); !ok {
		t.Fatalf("failed writes must not invalidate")
	}
}

func TestCachedUserRepo_ConcurrentMissesCoalesce(t *testing.T) {
	repo, inner, _ := newCachedRepo(t)
	ctx := context.Background()
	u := createUser(t, repo, "alice")

	inner.hold()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.GetByID(ctx, u.ID); err != nil {
				t.Errorf("GetByID: %v", err)
			}
		}()
	}

	<-inner.entered
	// Diğer goroutine'lerin singleflight'a katılmasına zaman tanı.
	time.Sleep(20 * time.Millisecond)
	close(inner.gate)
	wg.Wait()

	if got := inner.calls.Load(); got != 1 {
		t.Fatalf("expected a single coalesced read, got %d", got)
	}
}

// Commit'ten önce başlamış bir yükleme, invalidate sonrası cache'i eski
// kayıtla dolduramaz.
func TestCachedUserRepo_StaleLoadDoesNotRepopulate(t *testing.T) {
	repo, inner, _ := newCachedRepo(t)
	ctx := context.Background()
	u := createUser(t, repo, "alice")

	inner.hold()

	done := make(chan *models.User)
	go func() {
		got, err := repo.GetByID(ctx, u.ID)
		if err != nil {
			t.Errorf("GetByID: %v", err)
		}
		done <- got
	}()

	<-inner.entered // eski satır okundu, yükleme cache'e yazmak üzere bekliyor

	u.DisplayName = strPtr("renamed")
	if err := repo.Update(ctx, u); err != nil {
		t.Fatalf("Update: %v", err)
	}

	close(inner.gate)
	stale := <-done
	if *stale.DisplayName != "alice" {
		t.Fatalf("expected the in-flight reader to see the pre-update row")
	}

	if _, ok := repo.Cached(u.ID); ok {
		t.Fatalf("stale load must not repopulate the cache")
	}
	fresh, _ := repo.GetByID(ctx, u.ID)
	if *fresh.DisplayName != "renamed" {
		t.Fatalf("expected fresh read after invalidation, got %q", *fresh.DisplayName)
	}
}
