package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/akinalp/custodian/database"
	"github.com/akinalp/custodian/models"
	"github.com/akinalp/custodian/pkg/revocation"
	"github.com/akinalp/custodian/repository"
)

// TokenRevoker, in-memory revocation store'u revoked_tokens tablosuyla birlikte yönetir.
//
// Bellek store'u her istekte O(1) sorgulanır; tablo sadece restart'ta store'u
// ısıtmak için vardır.
type TokenRevoker interface {
	// Revoke, tek bir JTI'yi hemen iptal eder ve kalıcı kaydını yazar.
	Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error
	// RevokeUserSessions, q transaction'ı içinde kullanıcının oturumlarını siler
	// ve canlı access JTI'lerini revoked_tokens'a yazar. keepJTI boş değilse o
	// JTI'ye bağlı oturum korunur. Dönen liste commit'ten SONRA Activate'e verilir.
	RevokeUserSessions(ctx context.Context, q database.TxQuerier, userID, keepJTI string) ([]models.RevokedToken, error)
	// Activate, commit edilmiş kayıtları bellek store'una uygular.
	Activate(tokens []models.RevokedToken)
	IsRevoked(jti string) bool
	// Warm, tablodaki canlı kayıtları store'a yükler. Startup'ta bir kez.
	Warm(ctx context.Context) (int, error)
	// Prune, süresi dolmuş satırları siler.
	Prune(ctx context.Context) (int64, error)
}

type tokenRevoker struct {
	db    *sql.DB
	repo  repository.RevokedTokenRepository
	store *revocation.Store
	clock clock.Clock
	log   *zap.Logger
}

// NewTokenRevoker, constructor.
func NewTokenRevoker(db *sql.DB, store *revocation.Store, clk clock.Clock, log *zap.Logger) TokenRevoker {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &tokenRevoker{
		db:    db,
		repo:  repository.NewSQLiteRevokedTokenRepo(db),
		store: store,
		clock: clk,
		log:   log.Named("revoker"),
	}
}

// Revoke, önce belleği günceller: DB yazması başarısız olsa da token bu
// process'te hemen geçersizdir.
func (r *tokenRevoker) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	if jti == "" || !r.clock.Now().Before(expiresAt) {
		return nil
	}

	r.store.Revoke(jti, expiresAt)

	err := r.repo.Create(ctx, &models.RevokedToken{
		JTI:       jti,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: r.clock.Now(),
	})
	if err != nil {
		r.log.Error("failed to persist revoked token", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

func (r *tokenRevoker) RevokeUserSessions(ctx context.Context, q database.TxQuerier, userID, keepJTI string) ([]models.RevokedToken, error) {
	sessions := repository.NewSQLiteSessionRepo(q)
	revokedRepo := repository.NewSQLiteRevokedTokenRepo(q)

	list, err := sessions.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	var revoked []models.RevokedToken
	for _, s := range list {
		if keepJTI != "" && s.AccessJTI == keepJTI {
			continue
		}
		if err := sessions.DeleteByID(ctx, s.ID); err != nil {
			return nil, err
		}
		// Süresi zaten dolmuş access token için iptal anlamsız.
		if !now.Before(s.AccessExpiresAt) {
			continue
		}
		rt := models.RevokedToken{
			JTI:       s.AccessJTI,
			UserID:    userID,
			ExpiresAt: s.AccessExpiresAt,
			CreatedAt: now,
		}
		if err := revokedRepo.Create(ctx, &rt); err != nil {
			return nil, err
		}
		revoked = append(revoked, rt)
	}

	return revoked, nil
}

func (r *tokenRevoker) Activate(tokens []models.RevokedToken) {
	for _, t := range tokens {
		r.store.Revoke(t.JTI, t.ExpiresAt)
	}
}

func (r *tokenRevoker) IsRevoked(jti string) bool {
	return r.store.IsRevoked(jti)
}

func (r *tokenRevoker) Warm(ctx context.Context) (int, error) {
	tokens, err := r.repo.ListActive(ctx, r.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to warm revocation store: %w", err)
	}

	entries := make(map[string]time.Time, len(tokens))
	for _, t := range tokens {
		entries[t.JTI] = t.ExpiresAt
	}
	loaded := r.store.Restore(entries)

	r.log.Info("revocation store warmed", zap.Int("loaded", loaded))
	return loaded, nil
}

func (r *tokenRevoker) Prune(ctx context.Context) (int64, error) {
	return r.repo.DeleteExpired(ctx, r.clock.Now())
}
