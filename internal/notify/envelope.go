package notify

import (
	"encoding/json"
	"fmt"
)

// Delivery scopes. A published event targets the watchers of one review,
// one user's connections, or every connection on every instance.
const (
	ScopeJob    = "job"
	ScopeUser   = "user"
	ScopeGlobal = "global"
)

// Wire event types carried in the envelope.
const (
	TypeJobUpdate        = "job_update"
	TypeUserNotification = "user_notification"
	TypeSystemBroadcast  = "system_broadcast"
)

// Envelope is the wire-level wrapper published on the shared broker
// channel. It is never persisted.
type Envelope struct {
	Type     string          `json:"type"`
	TargetID string          `json:"target_id,omitempty"`
	Message  json.RawMessage `json:"message"`
}

// Scope maps the wire type back to a local delivery scope.
func (e Envelope) Scope() (string, error) {
	switch e.Type {
	case TypeJobUpdate:
		return ScopeJob, nil
	case TypeUserNotification:
		return ScopeUser, nil
	case TypeSystemBroadcast:
		return ScopeGlobal, nil
	default:
		return "", fmt.Errorf("unknown envelope type %q", e.Type)
	}
}

func envelopeType(scope string) (string, error) {
	switch scope {
	case ScopeJob:
		return TypeJobUpdate, nil
	case ScopeUser:
		return TypeUserNotification, nil
	case ScopeGlobal:
		return TypeSystemBroadcast, nil
	default:
		return "", fmt.Errorf("unknown scope %q", scope)
	}
}
