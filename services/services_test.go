package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/crypto/bcrypt"

	"github.com/akinalp/custodian/database"
	"github.com/akinalp/custodian/models"
	"github.com/akinalp/custodian/pkg/cache"
	"github.com/akinalp/custodian/pkg/ratelimit"
	"github.com/akinalp/custodian/pkg/revocation"
	"github.com/akinalp/custodian/repository"
)

func TestMain(m *testing.M) {
	bcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type sentMail struct {
	to    string
	token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, to, token string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{to: to, token: token})
	return nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeMailer) last() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type testEnv struct {
	db        *database.DB
	clock     *clock.Mock
	users     *repository.CachedUserRepo
	sessions  repository.SessionRepository
	resets    repository.PasswordResetRepository
	store     *revocation.Store
	revoker   TokenRevoker
	stats     *ratelimit.MemoryStats
	mailer    *fakeMailer
	throttle  *Throttle
	authCfg   AuthConfig
	auth      AuthService
	lifecycle LifecycleService
	bulk      BulkService
}

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "svc.db"), database.Migrations(), nil)
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mock := clock.NewMock()
	mock.Set(testEpoch)

	userCache := cache.New[string, *models.User](time.Minute, cache.WithClock(mock))
	store := revocation.New(revocation.WithClock(mock))
	limiter := ratelimit.New(ratelimit.WithClock(mock))
	t.Cleanup(func() {
		userCache.Close()
		store.Close()
		limiter.Close()
	})

	env := &testEnv{
		db:       db,
		clock:    mock,
		users:    repository.NewCachedUserRepo(repository.NewSQLiteUserRepo(db.Conn), userCache, nil),
		sessions: repository.NewSQLiteSessionRepo(db.Conn),
		resets:   repository.NewSQLiteResetTokenRepo(db.Conn),
		store:    store,
		stats:    ratelimit.NewMemoryStats(),
		mailer:   &fakeMailer{},
	}
	env.revoker = NewTokenRevoker(db.Conn, store, mock, nil)
	env.throttle = NewThrottle(limiter, env.stats, mock, nil)
	env.authCfg = AuthConfig{Secret: "test-secret", AccessExpiry: 15 * time.Minute, RefreshExpiry: 7 * 24 * time.Hour}

	env.auth = NewAuthService(db.Conn, env.users, env.users, env.sessions, env.resets,
		env.revoker, env.throttle, env.mailer, env.authCfg, mock, nil)
	env.lifecycle = NewLifecycleService(db.Conn, env.users, env.revoker, mock, nil)
	env.bulk = NewBulkService(env.users, env.lifecycle, mock, nil)

	return env
}

func strPtr(s string) *string { return &s }

// register, kullanıcıyı oluşturur ve ilk token çiftini döner.
func (e *testEnv) register(t *testing.T, username string) *models.AuthTokens {
	t.Helper()
	tokens, err := e.auth.Register(context.Background(), &models.CreateUserRequest{
		Username: username,
		Password: "password-" + username,
		Email:    strPtr(username + "@example.com"),
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return tokens
}

func (e *testEnv) login(t *testing.T, username string) *models.AuthTokens {
	t.Helper()
	tokens, err := e.auth.Login(context.Background(), &models.LoginRequest{
		Username: username,
		Password: "password-" + username,
	})
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return tokens
}

func (e *testEnv) jti(t *testing.T, accessToken string) string {
	t.Helper()
	claims, err := e.auth.ValidateAccessToken(accessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	return claims.ID
}
