// Package main: HTTP route registration.
//
// Middleware chain helper'ları:
//   - auth: JWT doğrulaması + revocation + aktif hesap kontrolü
//   - authAdmin: auth + is_admin
//
// IP throttle tüm mux'u sarar (main.go).
package main

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/akinalp/custodian/middleware"
	"github.com/akinalp/custodian/services"
)

func initRoutes(mux *http.ServeMux, h *Handlers, authService services.AuthService, repos *Repositories, log *zap.Logger) {
	authMw := middleware.NewAuthMiddleware(authService, repos.User, log)
	adminMw := middleware.NewAdminMiddleware()

	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(http.HandlerFunc(handler))
	}
	authAdmin := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(adminMw.Require(http.HandlerFunc(handler)))
	}

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok","service":"custodian"}`)
	})

	// Auth
	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/auth/refresh", h.Auth.Refresh)
	mux.Handle("POST /api/auth/logout", auth(h.Auth.Logout))
	mux.HandleFunc("POST /api/auth/forgot-password", h.Auth.ForgotPassword)
	mux.HandleFunc("POST /api/auth/reset-password", h.Auth.ResetPassword)

	// User
	mux.Handle("GET /api/users/me", auth(h.User.Me))
	mux.Handle("PATCH /api/users/me/profile", auth(h.User.UpdateProfile))
	mux.Handle("POST /api/users/me/password", auth(h.User.ChangePassword))

	// Admin: literal "bulk" path'i {id}'den önce
	mux.Handle("POST /api/admin/users/bulk", authAdmin(h.Admin.Bulk))
	mux.Handle("POST /api/admin/users/{id}/lifecycle", authAdmin(h.Admin.Lifecycle))
}
