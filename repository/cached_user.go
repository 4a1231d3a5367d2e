package repository

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/akinalp/custodian/models"
	"github.com/akinalp/custodian/pkg/cache"
)

// CachedUserRepo, UserRepository üzerine read-through cache decorator'ı.
//
// GetByID "user:<id>" key'i ile TTL cache'e bakar; miss'te aynı key için
// eşzamanlı yüklemeler singleflight ile tek DB okumasına indirgenir.
//
// Her yazma işlemi, alttaki yazma başarılı olduktan sonra key'i invalidate eder.
// Invalidate, o anda uçuşta olan yüklemeyi stale olarak işaretler: commit'ten
// önce DB'den okumuş bir yükleme cache'i eski kayıtla dolduramaz.
//
// Cache'e kopya yazılır ve kopya döner; çağıranlar cache içeriğini değiştiremez.
type CachedUserRepo struct {
	inner UserRepository
	cache *cache.TTLCache[string, *models.User]
	group singleflight.Group
	log   *zap.Logger

	mu       sync.Mutex
	inflight map[string]*loadTicket
}

// loadTicket, tek bir singleflight yüklemesinin stale bayrağı. mu altında okunur.
type loadTicket struct {
	stale bool
}

var _ UserRepository = (*CachedUserRepo)(nil)

// NewCachedUserRepo, inner repo'yu c cache'i ile sarar.
func NewCachedUserRepo(inner UserRepository, c *cache.TTLCache[string, *models.User], log *zap.Logger) *CachedUserRepo {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedUserRepo{
		inner:    inner,
		cache:    c,
		log:      log.Named("user_cache"),
		inflight: make(map[string]*loadTicket),
	}
}

// UserCacheKey, bir kullanıcının cache key'i.
func UserCacheKey(id string) string {
	return "user:" + id
}

func (r *CachedUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	key := UserCacheKey(id)
	if u, ok := r.cache.Get(key); ok {
		return u.Clone(), nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.load(ctx, key, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.User).Clone(), nil
}

// load, singleflight içinde çalışır. DB okuması lock dışında yapılır;
// cache'e yazma kararı ve Invalidate aynı mutex ile sıralanır.
func (r *CachedUserRepo) load(ctx context.Context, key, id string) (*models.User, error) {
	ticket := &loadTicket{}
	r.mu.Lock()
	r.inflight[key] = ticket
	r.mu.Unlock()

	// Paylaşılan yükleme, ilk çağıranın iptaliyle diğerlerini düşürmesin.
	u, err := r.inner.GetByID(context.WithoutCancel(ctx), id)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inflight[key] == ticket {
		delete(r.inflight, key)
	}
	if err != nil {
		return nil, err
	}
	if !ticket.stale {
		r.cache.SetDefault(key, u.Clone())
	} else {
		r.log.Debug("discarded stale load", zap.String("user_id", id))
	}
	return u, nil
}

// Invalidate, kullanıcının cache kaydını siler ve uçuştaki yüklemeyi stale yapar.
// Transaction içinde yazan service'ler commit'ten sonra bunu çağırır.
func (r *CachedUserRepo) Invalidate(id string) {
	key := UserCacheKey(id)

	r.mu.Lock()
	if t := r.inflight[key]; t != nil {
		t.stale = true
	}
	r.cache.Delete(key)
	r.mu.Unlock()

	// Sonraki okuyucular eski yüklemeye katılmasın, yenisini başlatsın.
	r.group.Forget(key)
}

// Cached, key cache'te canlı mı? Testler ve debug endpoint'i için.
func (r *CachedUserRepo) Cached(id string) (*models.User, bool) {
	u, ok := r.cache.Get(UserCacheKey(id))
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

func (r *CachedUserRepo) Create(ctx context.Context, user *models.User) error {
	if err := r.inner.Create(ctx, user); err != nil {
		return err
	}
	r.Invalidate(user.ID)
	return nil
}

func (r *CachedUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.inner.GetByUsername(ctx, username)
}

func (r *CachedUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.inner.GetByEmail(ctx, email)
}

func (r *CachedUserRepo) Update(ctx context.Context, user *models.User) error {
	if err := r.inner.Update(ctx, user); err != nil {
		return err
	}
	r.Invalidate(user.ID)
	return nil
}

func (r *CachedUserRepo) UpdatePassword(ctx context.Context, userID string, newPasswordHash string, at time.Time) error {
	if err := r.inner.UpdatePassword(ctx, userID, newPasswordHash, at); err != nil {
		return err
	}
	r.Invalidate(userID)
	return nil
}

func (r *CachedUserRepo) UpdateEmail(ctx context.Context, userID string, email *string, at time.Time) error {
	if err := r.inner.UpdateEmail(ctx, userID, email, at); err != nil {
		return err
	}
	r.Invalidate(userID)
	return nil
}

func (r *CachedUserRepo) UpdateLifecycle(ctx context.Context, user *models.User) error {
	if err := r.inner.UpdateLifecycle(ctx, user); err != nil {
		return err
	}
	r.Invalidate(user.ID)
	return nil
}

func (r *CachedUserRepo) Count(ctx context.Context) (int, error) {
	return r.inner.Count(ctx)
}

func (r *CachedUserRepo) Delete(ctx context.Context, id string) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	r.Invalidate(id)
	return nil
}
