package sessions

import "sync"

// Session ties one live connection to the room it participates in.
// IsCreator is fixed when the session is created.
type Session struct {
	ConnectionID string
	Username     string
	RoomCode     string
	IsCreator    bool
}

// Registry maps connection ids to their sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

// Put stores s, replacing any previous session of the same connection.
func (r *Registry) Put(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ConnectionID] = s
}

func (r *Registry) Get(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok
}

// Remove deletes and returns the session of connID.
func (r *Registry) Remove(connID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if ok {
		delete(r.sessions, connID)
	}
	return s, ok
}

// RemoveIfIn deletes the session of connID only while it still points at
// roomCode, so a connection that already moved on keeps its new session.
func (r *Registry) RemoveIfIn(connID, roomCode string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[connID]; ok && s.RoomCode == roomCode {
		delete(r.sessions, connID)
		return true
	}
	return false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
