// Package middleware, HTTP request pipeline'ına eklenen ara katmanları barındırır.
//
// Go'da middleware bir fonksiyondur:
//
//	func(next http.Handler) http.Handler
//
// Zincir: IPThrottle → Auth → Admin → Handler. Hata varsa next çağrılmaz.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/akinalp/custodian/handlers"
	"github.com/akinalp/custodian/pkg"
	"github.com/akinalp/custodian/repository"
	"github.com/akinalp/custodian/services"
	"go.uber.org/zap"
)

// AuthMiddleware, JWT token doğrulama middleware'ı.
type AuthMiddleware struct {
	authService services.AuthService
	userRepo    repository.UserRepository
	log         *zap.Logger
}

// NewAuthMiddleware, constructor. userRepo cache'li repo olmalıdır; her
// authenticated request kullanıcıyı buradan okur.
func NewAuthMiddleware(authService services.AuthService, userRepo repository.UserRepository, log *zap.Logger) *AuthMiddleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthMiddleware{
		authService: authService,
		userRepo:    userRepo,
		log:         log.Named("auth_mw"),
	}
}

// Require, JWT token zorunlu kılan middleware.
//
// HTTP header formatı: Authorization: Bearer <token>
//
//  1. Token imza + süre + revocation kontrolünden geçer
//  2. Kullanıcı cache'li repo'dan okunur
//  3. Active olmayan hesap (deactivated / soft-deleted / anonymized) → 401
//  4. User ve claims context'e eklenir
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := m.authService.ValidateAccessToken(tokenString)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		user, err := m.userRepo.GetByID(r.Context(), claims.UserID)
		if err != nil {
			if !errors.Is(err, pkg.ErrNotFound) {
				m.log.Error("failed to load user", zap.String("user_id", claims.UserID), zap.Error(err))
				pkg.Error(w, err)
				return
			}
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found")
			return
		}

		if !user.CanAuthenticate() {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "account is not active")
			return
		}

		// Password hash context'te taşınmaz.
		user.PasswordHash = ""

		ctx := context.WithValue(r.Context(), handlers.UserContextKey, user)
		ctx = context.WithValue(ctx, handlers.ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
