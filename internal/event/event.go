package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeIdentityRegistered    Type = "identity.registered"
	TypeIdentityLoggedIn      Type = "identity.logged_in"
	TypeIdentityLoggedOut     Type = "identity.logged_out"
	TypeTokenRefreshed        Type = "token.refreshed"
	TypeIdentityCreated       Type = "identity.created"
	TypeIdentityUpdated       Type = "identity.updated"
	TypeIdentityStatusChanged Type = "identity.status_changed"
	TypeIdentityDeleted       Type = "identity.deleted"
	TypeRoleAssigned          Type = "role.assigned"
	TypeRoleRemoved           Type = "role.removed"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"` // who triggered the event
}

// Identity is the payload of every identity.* and token.* event.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Status string `json:"status,omitempty"`
}

func New(t Type, actorID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ActorID:   actorID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // channel and unsubscribe function
}
