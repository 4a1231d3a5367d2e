// Package models, domain modellerini ve API request struct'larını tanımlar.
//
// `json:"-"` tag'li alanlar (ör. PasswordHash) API response'a hiç girmez.
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// User, bir kullanıcı hesabı.
//
// Lifecycle üç flag'in projeksiyonudur: IsActive, IsDeleted, IsAnonymized.
// Durum LifecycleState() ile türetilir; DB'de ayrı bir state kolonu yoktur.
type User struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	DisplayName   *string    `json:"display_name"`
	Email         *string    `json:"email,omitempty"`
	PasswordHash  string     `json:"-"`
	IsAdmin       bool       `json:"is_admin"`
	IsActive      bool       `json:"is_active"`
	IsDeleted     bool       `json:"is_deleted"`
	IsAnonymized  bool       `json:"is_anonymized"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	AnonymizedAt  *time.Time `json:"anonymized_at,omitempty"`
}

// LifecycleState, flag'lerden türetilen hesap durumu.
// Öncelik: anonymized > deleted > deactivated > active.
func (u *User) LifecycleState() LifecycleState {
	switch {
	case u.IsAnonymized:
		return StateAnonymized
	case u.IsDeleted:
		return StateSoftDeleted
	case !u.IsActive:
		return StateDeactivated
	default:
		return StateActive
	}
}

// CanAuthenticate, hesap token alabilir/kullanabilir mi?
func (u *User) CanAuthenticate() bool {
	return u.LifecycleState() == StateActive
}

// Clone, pointer alanlar dahil derin kopya döner.
// Cache'ten dönen değerin çağıran tarafından değiştirilmesini engeller.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.DisplayName = cloneString(u.DisplayName)
	c.Email = cloneString(u.Email)
	c.DeactivatedAt = cloneTime(u.DeactivatedAt)
	c.DeletedAt = cloneTime(u.DeletedAt)
	c.AnonymizedAt = cloneTime(u.AnonymizedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CreateUserRequest, kayıt ve bulk create için gelen veri.
// Hash'leme service katmanında yapılır.
type CreateUserRequest struct {
	Username    string  `json:"username"`
	Password    string  `json:"password"`
	DisplayName string  `json:"display_name"`
	Email       *string `json:"email,omitempty"`
}

// Validate kuralları:
//   - Username: 3-32 karakter, alfanumerik + alt çizgi
//   - Password: minimum 8 karakter
//   - DisplayName: opsiyonel, max 32 karakter
//   - Email: opsiyonel, basit format kontrolü
func (r *CreateUserRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if err := validateUsername(r.Username); err != nil {
		return err
	}

	if utf8.RuneCountInString(r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	r.DisplayName = strings.TrimSpace(r.DisplayName)
	if utf8.RuneCountInString(r.DisplayName) > 32 {
		return fmt.Errorf("display name must be at most 32 characters")
	}

	if r.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*r.Email))
		if email == "" {
			r.Email = nil
		} else if !emailRegex.MatchString(email) {
			return fmt.Errorf("invalid email format")
		} else {
			r.Email = &email
		}
	}

	return nil
}

// LoginRequest, giriş isteği.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate, LoginRequest'in geçerli olup olmadığını kontrol eder.
func (r *LoginRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" {
		return fmt.Errorf("username is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// UpdateUserRequest, profil güncellemesi. nil alan → değişmez.
type UpdateUserRequest struct {
	DisplayName *string `json:"display_name"`
	Email       *string `json:"email"`
}

func (r *UpdateUserRequest) Validate() error {
	if r.DisplayName == nil && r.Email == nil {
		return fmt.Errorf("nothing to update")
	}
	if r.DisplayName != nil {
		name := strings.TrimSpace(*r.DisplayName)
		if utf8.RuneCountInString(name) > 32 {
			return fmt.Errorf("display name must be at most 32 characters")
		}
		r.DisplayName = &name
	}
	if r.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*r.Email))
		if !emailRegex.MatchString(email) {
			return fmt.Errorf("invalid email format")
		}
		r.Email = &email
	}
	return nil
}

// ChangePasswordRequest, giriş yapmış kullanıcının şifre değişikliği.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (r *ChangePasswordRequest) Validate() error {
	if r.CurrentPassword == "" {
		return fmt.Errorf("current password is required")
	}
	if utf8.RuneCountInString(r.NewPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if r.CurrentPassword == r.NewPassword {
		return fmt.Errorf("new password must differ from the current one")
	}
	return nil
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < 3 || n > 32 {
		return fmt.Errorf("username must be between 3 and 32 characters")
	}
	for _, ch := range username {
		if !isValidUsernameChar(ch) {
			return fmt.Errorf("username can only contain letters, numbers, and underscores")
		}
	}
	return nil
}

func isValidUsernameChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '_'
}
