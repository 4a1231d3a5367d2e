// Package repository, veritabanı erişim katmanı.
//
// Her tablo için bir interface ve onun SQLite implementasyonu (sqlite_*.go)
// bulunur. Constructor'lar database.TxQuerier alır; aynı repo hem *sql.DB
// hem transaction içindeki *sql.Tx ile kurulabilir.
package repository

import (
	"context"
	"time"

	"github.com/akinalp/custodian/models"
)

// UserRepository, kullanıcı tablosu için persistence accessor.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Update, profil alanlarını (display_name, email) yazar. Update,
	// UpdatePassword ve UpdateEmail anonymized satırda ErrInvalidTransition döner.
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID string, newPasswordHash string, at time.Time) error
	UpdateEmail(ctx context.Context, userID string, email *string, at time.Time) error
	// UpdateLifecycle, flag'leri, lifecycle zaman damgalarını ve anonymize
	// sırasında temizlenen PII alanlarını tek UPDATE ile yazar.
	UpdateLifecycle(ctx context.Context, user *models.User) error
	Count(ctx context.Context) (int, error)
	// Delete, satırı fiziksel olarak siler. Lifecycle akışı bunu kullanmaz;
	// sadece bulk create rollback'i ve testler için.
	Delete(ctx context.Context, id string) error
}
