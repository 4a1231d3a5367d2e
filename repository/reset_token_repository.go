package repository

import (
	"context"
	"time"

	"github.com/akinalp/custodian/models"
)

// PasswordResetRepository, şifre sıfırlama token'ları.
type PasswordResetRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	// GetByTokenHash, bulunamazsa pkg.ErrNotFound döner.
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID, yeni token öncesi eskileri ve başarılı reset sonrası hepsini siler.
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
