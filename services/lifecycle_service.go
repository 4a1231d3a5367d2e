package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akinalp/custodian/database"
	"github.com/akinalp/custodian/models"
	"github.com/akinalp/custodian/pkg"
	"github.com/akinalp/custodian/repository"
)

// LifecycleService, hesap durum makinesi.
//
// Geçiş tek bir logical adımdır:
//  1. Transaction: satırı oku, geçişi doğrula, flag'leri yaz, gerekiyorsa
//     oturumları sil ve access JTI'lerini revoked_tokens'a yaz.
//  2. Commit.
//  3. İptalleri bellek store'una uygula, cache key'ini invalidate et.
//
// 3. adım Transition dönmeden tamamlanır; çağıran döndüğünde hiçbir okuyucu
// yeni DB durumunu eski cache kaydıyla birlikte göremez.
type LifecycleService interface {
	Transition(ctx context.Context, userID string, ev models.LifecycleEvent) (models.LifecycleState, error)
}

type lifecycleService struct {
	db      *sql.DB
	cache   UserInvalidator
	revoker TokenRevoker
	clock   clock.Clock
	log     *zap.Logger
}

// NewLifecycleService, constructor.
func NewLifecycleService(db *sql.DB, cache UserInvalidator, revoker TokenRevoker, clk clock.Clock, log *zap.Logger) LifecycleService {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &lifecycleService{
		db:      db,
		cache:   cache,
		revoker: revoker,
		clock:   clk,
		log:     log.Named("lifecycle"),
	}
}

func (s *lifecycleService) Transition(ctx context.Context, userID string, ev models.LifecycleEvent) (models.LifecycleState, error) {
	var (
		from    models.LifecycleState
		to      models.LifecycleState
		revoked []models.RevokedToken
	)

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		users := repository.NewSQLiteUserRepo(tx)

		user, err := users.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		from = user.LifecycleState()
		next, ok := user.ApplyLifecycle(ev, s.clock.Now().UTC())
		if !ok {
			return fmt.Errorf("%w: cannot %s a %s account", pkg.ErrInvalidTransition, ev, from)
		}
		to = next

		if ev == models.EventAnonymize {
			scrubPII(user)
			if err := repository.NewSQLiteResetTokenRepo(tx).DeleteByUserID(ctx, userID); err != nil {
				return err
			}
		}

		if err := users.UpdateLifecycle(ctx, user); err != nil {
			return err
		}

		if ev.RevokesTokens() {
			revoked, err = s.revoker.RevokeUserSessions(ctx, tx, userID, "")
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.revoker.Activate(revoked)
	s.cache.Invalidate(userID)

	s.log.Info("lifecycle transition",
		zap.String("user_id", userID),
		zap.String("event", string(ev)),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("revoked_tokens", len(revoked)),
	)
	return to, nil
}

// scrubPII, kimlik bilgilerini geri döndürülemez placeholder'larla değiştirir.
// Placeholder'lar rastgeledir; orijinal değerden türetilmez.
func scrubPII(u *models.User) {
	tag := strings.ReplaceAll(uuid.NewString(), "-", "")
	placeholder := "anon-" + tag + "@anonymized.invalid"

	u.Username = "anon_" + tag[:16]
	u.DisplayName = nil
	u.Email = &placeholder
	u.PasswordHash = ""
}
