package server

import (
	"sync"

	"github.com/promptdeck/engine/pkg/types"
)

// SessionState tracks the protocol lifecycle of one shell connection.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateInitialized
	StateShuttingDown
)

// Session holds per-connection state: the lifecycle phase and the shell's
// current project snapshot. All access is mutex-guarded; handlers may run
// concurrently.
type Session struct {
	mu      sync.Mutex
	state   SessionState
	project *types.Project
}

// NewSession returns an uninitialized session with no project loaded.
func NewSession() *Session {
	return &Session{state: StateUninitialized}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState transitions the session to the given state.
func (s *Session) SetState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Project returns the current project, or nil before the first set_project.
// Callers receive the live pointer; mutations must go back through
// SetProject or UpdateProject so edits stay serialized.
func (s *Session) Project() *types.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

// SetProject replaces the session's project snapshot.
func (s *Session) SetProject(p *types.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = p
}

// UpdateProject runs fn against the current project under the session lock.
// fn receives nil when no project is loaded.
func (s *Session) UpdateProject(fn func(p *types.Project)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.project)
}
