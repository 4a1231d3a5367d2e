package models

import (
	"testing"
	"time"
)

func userIn(state LifecycleState) *User {
	u := &User{ID: "u1", Username: "alice", IsActive: true}
	switch state {
	case StateDeactivated:
		u.IsActive = false
	case StateSoftDeleted:
		u.IsDeleted = true
	case StateAnonymized:
		u.IsAnonymized = true
		u.IsActive = false
	}
	return u
}

func TestApplyLifecycle_Table(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		from LifecycleState
		ev   LifecycleEvent
		want LifecycleState
		ok   bool
	}{
		{StateActive, EventDeactivate, StateDeactivated, true},
		{StateActive, EventReactivate, StateActive, false},
		{StateActive, EventSoftDelete, StateSoftDeleted, true},
		{StateActive, EventRestore, StateActive, false},
		{StateActive, EventAnonymize, StateAnonymized, true},
		{StateDeactivated, EventReactivate, StateActive, true},
		{StateDeactivated, EventDeactivate, StateDeactivated, false},
		{StateDeactivated, EventSoftDelete, StateSoftDeleted, true},
		{StateDeactivated, EventAnonymize, StateAnonymized, true},
		{StateSoftDeleted, EventRestore, StateActive, true},
		{StateSoftDeleted, EventDeactivate, StateSoftDeleted, false},
		{StateSoftDeleted, EventAnonymize, StateAnonymized, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.ev), func(t *testing.T) {
			u := userIn(tt.from)
			got, ok := u.ApplyLifecycle(tt.ev, now)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if got != tt.want {
				t.Fatalf("expected state %s, got %s", tt.want, got)
			}
		})
	}
}

func TestApplyLifecycle_AnonymizedIsTerminal(t *testing.T) {
	for _, ev := range AllLifecycleEvents {
		u := userIn(StateAnonymized)
		if state, ok := u.ApplyLifecycle(ev, time.Now()); ok || state != StateAnonymized {
			t.Fatalf("event %s: expected rejection from anonymized, got %s ok=%v", ev, state, ok)
		}
	}
}

func TestApplyLifecycle_RestoreReturnsPriorState(t *testing.T) {
	now := time.Now()
	u := userIn(StateActive)

	u.ApplyLifecycle(EventDeactivate, now)
	u.ApplyLifecycle(EventSoftDelete, now)
	state, ok := u.ApplyLifecycle(EventRestore, now)
	if !ok || state != StateDeactivated {
		t.Fatalf("expected restore to deactivated, got %s ok=%v", state, ok)
	}
	if u.DeletedAt != nil {
		t.Fatalf("expected deleted_at cleared after restore")
	}
}

func TestUser_CloneIsDeep(t *testing.T) {
	name := "Alice"
	u := &User{ID: "u1", DisplayName: &name}
	c := u.Clone()
	*c.DisplayName = "Mallory"

	if *u.DisplayName != "Alice" {
		t.Fatalf("clone shares DisplayName pointer with original")
	}
}

func TestLifecycleRequest_Validate(t *testing.T) {
	r := &LifecycleRequest{Event: " Soft_Delete "}
	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid event, got %v", err)
	}
	if r.Event != EventSoftDelete {
		t.Fatalf("expected normalized event, got %q", r.Event)
	}

	bad := &LifecycleRequest{Event: "explode"}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected unknown event to be rejected")
	}
}
