package models

import (
	"fmt"
	"strings"
	"time"
)

// LifecycleState, hesabın türetilmiş durumu.
type LifecycleState string

const (
	StateActive      LifecycleState = "active"
	StateDeactivated LifecycleState = "deactivated"
	StateSoftDeleted LifecycleState = "soft_deleted"
	StateAnonymized  LifecycleState = "anonymized" // terminal
)

// LifecycleEvent, durum makinesine verilen olay.
type LifecycleEvent string

const (
	EventDeactivate LifecycleEvent = "deactivate"
	EventReactivate LifecycleEvent = "reactivate"
	EventSoftDelete LifecycleEvent = "soft_delete"
	EventRestore    LifecycleEvent = "restore"
	EventAnonymize  LifecycleEvent = "anonymize"
)

// AllLifecycleEvents, test ve validation için sabit liste.
var AllLifecycleEvents = []LifecycleEvent{
	EventDeactivate, EventReactivate, EventSoftDelete, EventRestore, EventAnonymize,
}

// lifecycleTransitions, izinli (from, event) çiftleri.
// Restore'un hedefi tabloda yok: is_active flag'inden türetilir (bkz. ApplyLifecycle).
var lifecycleTransitions = map[LifecycleState]map[LifecycleEvent]bool{
	StateActive: {
		EventDeactivate: true,
		EventSoftDelete: true,
		EventAnonymize:  true,
	},
	StateDeactivated: {
		EventReactivate: true,
		EventSoftDelete: true,
		EventAnonymize:  true,
	},
	StateSoftDeleted: {
		EventRestore:   true,
		EventAnonymize: true,
	},
}

// CanTransition, from durumunda ev olayına izin var mı?
func CanTransition(from LifecycleState, ev LifecycleEvent) bool {
	return lifecycleTransitions[from][ev]
}

// RevokesTokens, olay kullanıcının tüm token'larını iptal etmeli mi?
func (e LifecycleEvent) RevokesTokens() bool {
	switch e {
	case EventDeactivate, EventSoftDelete, EventAnonymize:
		return true
	}
	return false
}

// ApplyLifecycle, izinliyse flag'leri ve zaman damgalarını günceller ve yeni
// durumu döner. İzin yoksa User'a dokunmaz, ok=false döner.
//
// PII temizliği (anonymize) burada yapılmaz; placeholder üretimi service'e aittir.
func (u *User) ApplyLifecycle(ev LifecycleEvent, now time.Time) (LifecycleState, bool) {
	if !CanTransition(u.LifecycleState(), ev) {
		return u.LifecycleState(), false
	}

	switch ev {
	case EventDeactivate:
		u.IsActive = false
		u.DeactivatedAt = &now
	case EventReactivate:
		u.IsActive = true
		u.DeactivatedAt = nil
	case EventSoftDelete:
		u.IsDeleted = true
		u.DeletedAt = &now
	case EventRestore:
		// Soft delete is_active'e dokunmadığı için önceki durum korunur.
		u.IsDeleted = false
		u.DeletedAt = nil
	case EventAnonymize:
		u.IsAnonymized = true
		u.IsActive = false
		u.AnonymizedAt = &now
	}
	u.UpdatedAt = now

	return u.LifecycleState(), true
}

// LifecycleRequest, admin lifecycle endpoint'inin body'si.
type LifecycleRequest struct {
	Event LifecycleEvent `json:"event"`
}

func (r *LifecycleRequest) Validate() error {
	r.Event = LifecycleEvent(strings.ToLower(strings.TrimSpace(string(r.Event))))
	for _, ev := range AllLifecycleEvents {
		if r.Event == ev {
			return nil
		}
	}
	return fmt.Errorf("unknown lifecycle event %q", r.Event)
}

// LifecycleResponse, transition sonrası dönen durum.
type LifecycleResponse struct {
	UserID string         `json:"user_id"`
	State  LifecycleState `json:"state"`
}
