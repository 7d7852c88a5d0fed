// Package session holds the client authentication state machine:
//
//	Guest -> Authenticating -> Authenticated -> LogoutRequested -> Guest
//
// with Authenticating -> Guest and Authenticated -> Guest on auth failure.
package session

import (
	"errors"
	"fmt"
	"sync"
)

type Status string

const (
	Guest           Status = "guest"
	Authenticating  Status = "authenticating"
	Authenticated   Status = "authenticated"
	LogoutRequested Status = "logout-requested"
)

var ErrInvalidTransition = errors.New("invalid session transition")

var allowed = map[Status][]Status{
	Guest:           {Authenticating},
	Authenticating:  {Authenticated, Guest},
	Authenticated:   {LogoutRequested, Guest},
	LogoutRequested: {Guest},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ParseStatus maps a persisted status string back to a Status. Unknown
// values yield Guest.
func ParseStatus(s string) Status {
	switch Status(s) {
	case Authenticating, Authenticated, LogoutRequested:
		return Status(s)
	default:
		return Guest
	}
}

// State is an immutable snapshot of the session.
type State struct {
	Status Status `json:"status"`
	Token  string `json:"-"`
	User   string `json:"user,omitempty"`
}

// IsAuthenticated reports whether remote calls may be made with this state.
func (s State) IsAuthenticated() bool {
	return s.Status == Authenticated && s.Token != ""
}

func GuestState() State { return State{Status: Guest} }

// Machine guards the current State. It is safe for concurrent use.
type Machine struct {
	mu    sync.Mutex
	state State
}

func NewMachine() *Machine {
	return &Machine{state: GuestState()}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to status `to`. Token and user are kept only while
// authenticating or authenticated. The previous state is returned.
func (m *Machine) Transition(to Status, token, user string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state
	if !CanTransition(prev.Status, to) {
		return prev, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev.Status, to)
	}

	next := State{Status: to}
	switch to {
	case Authenticating, Authenticated:
		next.Token, next.User = token, user
	case LogoutRequested:
		next.Token, next.User = prev.Token, prev.User
	}
	m.state = next
	return prev, nil
}

// Refresh replaces the credentials of an authenticated session without a
// status change.
func (m *Machine) Refresh(token, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status != Authenticated {
		return fmt.Errorf("%w: refresh in %s", ErrInvalidTransition, m.state.Status)
	}
	m.state.Token, m.state.User = token, user
	return nil
}
