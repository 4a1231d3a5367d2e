// Package pkg, projede paylaşılan utility'leri barındırır.
// Bu dosya domain-level error tanımlarını içerir.
//
// Error karşılaştırması string yerine referans ile yapılır:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
package pkg

import (
	"errors"
	"fmt"
	"time"
)

// Domain-level error'lar.
// Handler katmanı bu error'ları HTTP status code'larına map'ler.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")
	ErrInternal      = errors.New("internal error")

	// ErrRateLimited, guard Allow() false döndüğünde üretilir.
	// Limiter'ın kendisi error dönmez: sadece bool.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrTokenRevoked, iptal edilmiş bir access token sunulduğunda döner.
	// Retry edilemez; client yeniden login olmalıdır.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrInvalidTransition, lifecycle state machine'in izin vermediği bir
	// event istendiğinde döner (ör: Anonymized'dan herhangi bir geçiş).
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)

// RateLimitError, throttle edilen action'ı ve client'ın ne kadar beklemesi
// gerektiğini taşır. errors.Is(err, ErrRateLimited) true döner.
type RateLimitError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: %s, try again in %s", ErrRateLimited, e.Action, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}
