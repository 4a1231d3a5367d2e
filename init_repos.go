// Package main: Repository katmanı başlatma.
//
// initRepositories, repository implementasyonlarını oluşturur. User
// repository cache'li decorator ile sarılır; servisler ve auth middleware
// hep bu örneği kullanır.
package main

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/akinalp/custodian/models"
	"github.com/akinalp/custodian/pkg/cache"
	"github.com/akinalp/custodian/repository"
)

// Repositories, repository instance'larını tutan container struct.
type Repositories struct {
	User       *repository.CachedUserRepo
	Session    repository.SessionRepository
	ResetToken repository.PasswordResetRepository
}

// initRepositories, aynı *sql.DB'yi paylaşan repository'leri oluşturur.
// sql.DB thread-safe bir connection pool'dur.
func initRepositories(conn *sql.DB, userCache *cache.TTLCache[string, *models.User], log *zap.Logger) *Repositories {
	return &Repositories{
		User:       repository.NewCachedUserRepo(repository.NewSQLiteUserRepo(conn), userCache, log),
		Session:    repository.NewSQLiteSessionRepo(conn),
		ResetToken: repository.NewSQLiteResetTokenRepo(conn),
	}
}
