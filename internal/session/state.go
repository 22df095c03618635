package session

import "sync"

// State holds the in-memory credentials for one API session.
// It is created by the composition root and shared by every client using the session.
// Nothing here is ever written to disk.
type State struct {
	mu         sync.RWMutex
	token      string
	generation uint64
}

// New creates an empty session state.
func New() *State {
	return &State{}
}

// Token returns the current bearer token, or "" if none is held.
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Snapshot returns the token together with the generation it belongs to.
func (s *State) Snapshot() (string, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.generation
}

// SetToken stores a new bearer token (after login or refresh) and advances the generation.
func (s *State) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.generation++
}

// MarkRefreshed advances the generation without touching the token.
// Used when the server refreshed a cookie session and no bearer token exists.
func (s *State) MarkRefreshed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// Clear drops the bearer token. The generation is left as is so that callers
// still holding it can see the session has not been renewed.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// Generation returns the number of times the session has been renewed.
func (s *State) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// HasToken reports whether a bearer token is held.
func (s *State) HasToken() bool {
	return s.Token() != ""
}
