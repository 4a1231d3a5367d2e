package middleware

import (
	"net/http"

	"github.com/akinalp/custodian/handlers"
	"github.com/akinalp/custodian/models"
	"github.com/akinalp/custodian/pkg"
)

// AdminMiddleware, is_admin yetkisi zorunlu kılar. AuthMiddleware'den SONRA
// çalışır: context'te user bulunmalıdır.
//
//	authMw.Require(adminMw.Require(http.HandlerFunc(h.Admin.Lifecycle)))
type AdminMiddleware struct{}

// NewAdminMiddleware, constructor.
func NewAdminMiddleware() *AdminMiddleware {
	return &AdminMiddleware{}
}

// Require, IsAdmin false ise → 403 Forbidden.
func (m *AdminMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := r.Context().Value(handlers.UserContextKey).(*models.User)
		if !ok {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
			return
		}

		if !user.IsAdmin {
			pkg.ErrorWithMessage(w, http.StatusForbidden, "admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
