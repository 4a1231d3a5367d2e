package models

import "time"

// Session, refresh token oturumu.
//
// Her oturum o an geçerli access token'ın JTI'sini ve bitişini taşır.
// "Kullanıcının tüm token'larını iptal et" bu kolonlardan yürür.
type Session struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	RefreshToken    string    `json:"-"`
	AccessJTI       string    `json:"-"`
	AccessExpiresAt time.Time `json:"-"`
	ExpiresAt       time.Time `json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
}
