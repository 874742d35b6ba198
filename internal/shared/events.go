package shared

import (
	"sync"
)

// AuthEventKind classifies an authentication state transition.
type AuthEventKind string

const (
	// EventSignedIn fires after a successful sign-in.
	EventSignedIn AuthEventKind = "signed_in"
	// EventSignedOut fires after a sign-out.
	EventSignedOut AuthEventKind = "signed_out"
	// EventRoleChanged fires when an actor's role assignment is edited.
	EventRoleChanged AuthEventKind = "role_changed"
	// EventPermissionsChanged fires when a role's permission map is edited.
	EventPermissionsChanged AuthEventKind = "permissions_changed"
)

// AuthEvent is one message on the auth-state stream. Actor is set for
// sign-in/out and role changes; Role is set for permission changes.
type AuthEvent struct {
	Kind  AuthEventKind
	Actor string
	Role  string
}

// AuthEvents fans auth-state transitions out to subscribers. Slow
// subscribers drop events instead of blocking publishers.
type AuthEvents struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan AuthEvent
}

// NewAuthEvents constructs an empty broker.
func NewAuthEvents() *AuthEvents {
	return &AuthEvents{subs: make(map[int]chan AuthEvent)}
}

// Subscribe registers a listener. The returned cancel func unsubscribes and
// closes the channel.
func (b *AuthEvents) Subscribe(buffer int) (<-chan AuthEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan AuthEvent, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers evt to every subscriber.
func (b *AuthEvents) Publish(evt AuthEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
