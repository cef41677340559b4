// Package session carries the active user through scheduling calls.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/javiermolinar/rendezvous/internal/appointment"
)

// ErrNotAdmin is returned when a non-admin tries to act as another user.
var ErrNotAdmin = errors.New("only admins can act as another user")

// Session is the explicit replacement for a process-wide current user.
// It is safe for concurrent use so the upcoming watcher can read it.
type Session struct {
	ID string

	mu       sync.RWMutex
	user     *appointment.User
	actingAs *appointment.User
}

// New starts a session for user.
func New(user appointment.User) *Session {
	s := &Session{ID: uuid.NewString()}
	s.user = &user
	return s
}

// Anonymous returns a session with nobody logged in.
func Anonymous() *Session {
	return &Session{ID: uuid.NewString()}
}

// LoggedIn reports whether a user is active.
func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// User returns the logged in user.
func (s *Session) User() (appointment.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return appointment.User{}, false
	}
	return *s.user, true
}

// IsAdmin reports whether the logged in user has the admin role.
func (s *Session) IsAdmin() bool {
	u, ok := s.User()
	return ok && u.Admin
}

// ActAs makes an admin's actions apply to other.
func (s *Session) ActAs(other appointment.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return appointment.ErrNoUser
	}
	if !s.user.Admin {
		return ErrNotAdmin
	}
	s.actingAs = &other
	return nil
}

// Acting reports whether an admin is acting as another user.
func (s *Session) Acting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actingAs != nil
}

// StopActing returns to the admin's own identity.
func (s *Session) StopActing() {
	s.mu.Lock()
	s.actingAs = nil
	s.mu.Unlock()
}

// Effective returns the user actions are attributed to: the impersonated
// user while acting, the logged in user otherwise.
func (s *Session) Effective() (appointment.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.user == nil:
		return appointment.User{}, appointment.ErrNoUser
	case s.actingAs != nil:
		return *s.actingAs, nil
	default:
		return *s.user, nil
	}
}

// Actor names the logged in user for audit metadata. While acting as
// someone else it reads "admin as user".
func (s *Session) Actor() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.user == nil:
		return ""
	case s.actingAs != nil:
		return s.user.Name + " as " + s.actingAs.Name
	default:
		return s.user.Name
	}
}

// Logout clears the session.
func (s *Session) Logout() {
	s.mu.Lock()
	s.user = nil
	s.actingAs = nil
	s.mu.Unlock()
}
