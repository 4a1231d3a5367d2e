// Package main: Handler katmanı başlatma.
package main

import (
	"github.com/akinalp/custodian/handlers"
)

// Handlers, handler instance'larını tutan container struct.
type Handlers struct {
	Auth  *handlers.AuthHandler
	User  *handlers.UserHandler
	Admin *handlers.AdminHandler
}

func initHandlers(svcs *Services) *Handlers {
	return &Handlers{
		Auth:  handlers.NewAuthHandler(svcs.Auth),
		User:  handlers.NewUserHandler(svcs.Auth, svcs.User),
		Admin: handlers.NewAdminHandler(svcs.Lifecycle, svcs.Bulk),
	}
}
