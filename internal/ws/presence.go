package ws

import "sync"

// Registry is the authoritative in-memory mapping of user id to live
// connection ids. A user is online iff their connection set is non-empty;
// the set is removed the moment it empties, so the invariant is enforced in
// one place. State lives for the process lifetime only and is rebuilt from
// empty on restart.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]map[string]struct{} // user id -> connection ids
	owners map[string]string              // connection id -> user id
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]map[string]struct{}),
		owners: make(map[string]string),
	}
}

// Register adds a connection for the given user and reports whether this
// brought the user online (their first live connection). Idempotent for a
// repeated (userID, connID) pair. A connection belongs to at most one user:
// re-registering a bound connection under a different user detaches it from
// the previous one first.
func (r *Registry) Register(userID, connID string) (cameOnline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owners[connID]; ok && prev != userID {
		r.removeLocked(prev, connID)
	}

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[userID] = set
	}
	wasOnline := len(set) > 0
	set[connID] = struct{}{}
	r.owners[connID] = userID
	return !wasOnline
}

// Unregister removes the connection from whichever user owns it. It returns
// that user's id and whether the user went offline (set became empty).
func (r *Registry) Unregister(connID string) (userID string, wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[connID]
	if !ok {
		return "", false
	}
	return userID, r.removeLocked(userID, connID)
}

func (r *Registry) removeLocked(userID, connID string) (wentOffline bool) {
	delete(r.owners, connID)
	set, ok := r.conns[userID]
	if !ok {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, userID)
		return true
	}
	return false
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// OnlineUserIDs returns the ids of all currently-online users.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}
