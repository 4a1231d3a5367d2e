package services

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/akinalp/custodian/repository"
)

// Sweeper, bellek içi primitive'lerin ortak temizlik arayüzü.
// cache.TTLCache, ratelimit.Limiter ve revocation.Store karşılar.
type Sweeper interface {
	Sweep() int
}

// MaintenanceReport, tek bir temizlik turunun sonucu.
type MaintenanceReport struct {
	Sessions      int64
	ResetTokens   int64
	RevokedTokens int64
	Swept         map[string]int
}

// Maintenance, süresi dolmuş oturum/token satırlarını ve bellek içi
// primitive'leri periyodik olarak temizler.
type Maintenance struct {
	sessions repository.SessionRepository
	resets   repository.PasswordResetRepository
	revoker  TokenRevoker
	sweepers map[string]Sweeper
	interval time.Duration
	clock    clock.Clock
	log      *zap.Logger
}

// NewMaintenance, constructor. interval <= 0 → Start hiçbir şey yapmaz.
func NewMaintenance(
	sessions repository.SessionRepository,
	resets repository.PasswordResetRepository,
	revoker TokenRevoker,
	sweepers map[string]Sweeper,
	interval time.Duration,
	clk clock.Clock,
	log *zap.Logger,
) *Maintenance {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Maintenance{
		sessions: sessions,
		resets:   resets,
		revoker:  revoker,
		sweepers: sweepers,
		interval: interval,
		clock:    clk,
		log:      log.Named("maintenance"),
	}
}

// RunOnce, tek bir tur çalıştırır. Bir adımın hatası diğerlerini durdurmaz.
func (m *Maintenance) RunOnce(ctx context.Context) MaintenanceReport {
	now := m.clock.Now()
	report := MaintenanceReport{Swept: make(map[string]int, len(m.sweepers))}

	var err error
	if report.Sessions, err = m.sessions.DeleteExpired(ctx, now); err != nil {
		m.log.Warn("session cleanup failed", zap.Error(err))
	}
	if report.ResetTokens, err = m.resets.DeleteExpired(ctx, now); err != nil {
		m.log.Warn("reset token cleanup failed", zap.Error(err))
	}
	if report.RevokedTokens, err = m.revoker.Prune(ctx); err != nil {
		m.log.Warn("revoked token cleanup failed", zap.Error(err))
	}

	for name, s := range m.sweepers {
		report.Swept[name] = s.Sweep()
	}

	m.log.Debug("maintenance run",
		zap.Int64("sessions", report.Sessions),
		zap.Int64("reset_tokens", report.ResetTokens),
		zap.Int64("revoked_tokens", report.RevokedTokens),
		zap.Any("swept", report.Swept),
	)
	return report
}

// Start, ctx iptal edilene kadar interval'da bir RunOnce çağırır.
// Dönen kanal döngü bittiğinde kapanır.
func (m *Maintenance) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if m.interval <= 0 {
		close(done)
		return done
	}

	ticker := m.clock.Ticker(m.interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.RunOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}
