package runtime

import (
	"chat-relay/contract"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Registry is the single source of truth for who is online.
// It maps a username to its live session and never holds two sessions under the same name.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.Session // map username -> Session
	listener contract.PresenceListener
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]contract.Session),
	}
}

// SetPresenceListener installs the component notified of every successful Register and Unregister.
// It must be called before the registry is shared between sessions.
func (r *Registry) SetPresenceListener(listener contract.PresenceListener) {
	r.listener = listener
}

// Register inserts the session if the username is free.
// A duplicate is rejected and the registry is left untouched: the original session stays registered.
// On success the presence listener runs on the caller's goroutine once the lock has been released,
// so that broadcasting can read the registry again.
func (r *Registry) Register(username string, session contract.Session) bool {
	r.mu.Lock()
	if _, exists := r.sessions[username]; exists {
		r.mu.Unlock()
		return false
	}
	r.sessions[username] = session
	r.mu.Unlock()

	if r.listener != nil {
		r.listener.OnRegistered(username)
	}
	return true
}

// Unregister removes the username. Removing an absent username is a no-op
// and does not notify the presence listener.
func (r *Registry) Unregister(username string) {
	r.mu.Lock()
	if _, exists := r.sessions[username]; !exists {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, username)
	r.mu.Unlock()

	if r.listener != nil {
		r.listener.OnUnregistered(username)
	}
}

// SnapshotUsernames returns a sorted point-in-time copy of the online usernames.
// It may be stale by the time it is delivered, never partial.
func (r *Registry) SnapshotUsernames() []string {
	r.mu.RLock()
	usernames := lo.Keys(r.sessions)
	r.mu.RUnlock()

	slices.Sort(usernames)
	return usernames
}

// Snapshot returns a point-in-time copy of the whole mapping, used as a broadcast recipient list.
func (r *Registry) Snapshot() map[string]contract.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Assign(r.sessions)
}

func (r *Registry) Lookup(username string) (contract.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[username]
	return session, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
