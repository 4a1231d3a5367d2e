package repository

import (
	"context"
	"time"

	"github.com/akinalp/custodian/models"
)

// RevokedTokenRepository, revoked_tokens tablosu.
type RevokedTokenRepository interface {
	// Create idempotenttir: aynı JTI ikinci kez yazılırsa mevcut satır korunur.
	Create(ctx context.Context, token *models.RevokedToken) error
	// ListActive, expires_at > now olan kayıtlar.
	ListActive(ctx context.Context, now time.Time) ([]models.RevokedToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
