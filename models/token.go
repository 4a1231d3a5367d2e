package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims, access token payload'ı.
// RegisteredClaims.ID JTI'dir: revocation store'un anahtarı.
type TokenClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// RevokedToken, revoked_tokens tablosundaki kayıt.
// Store'un kalıcı aynası: startup'ta store'u ısıtmak için okunur.
type RevokedToken struct {
	JTI       string    `json:"jti"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthTokens, login/refresh response'u.
type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// RefreshRequest / LogoutRequest, refresh token taşıyan body'ler.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
