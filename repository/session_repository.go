package repository

import (
	"context"
	"time"

	"github.com/akinalp/custodian/models"
)

// SessionRepository, refresh token oturumları.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByRefreshToken(ctx context.Context, token string) (*models.Session, error)
	ListByUserID(ctx context.Context, userID string) ([]models.Session, error)
	// Rotate, refresh token ve bağlı access JTI'yi yeniler. Satır hâlâ
	// oldRefreshToken'ı taşıyorsa yazar; aynı token ile ikinci rotate
	// ErrNotFound alır.
	Rotate(ctx context.Context, session *models.Session, oldRefreshToken string) error
	DeleteByID(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
