package sessions

import (
	"fmt"

	"github.com/jrsteele09/go-auth-session/users"
)

// State is where the session sits in its lifecycle.
type State int

const (
	Bootstrapping State = iota
	Unauthenticated
	MFAPending
	Authenticated
)

func (s State) String() string {
	switch s {
	case Bootstrapping:
		return "bootstrapping"
	case Unauthenticated:
		return "unauthenticated"
	case MFAPending:
		return "mfa_pending"
	case Authenticated:
		return "authenticated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var transitions = map[State][]State{
	Bootstrapping:   {Authenticated, Unauthenticated},
	Unauthenticated: {Unauthenticated, MFAPending, Authenticated},
	MFAPending:      {Authenticated, Unauthenticated},
	Authenticated:   {Authenticated, Unauthenticated, MFAPending},
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// There is no terminal state.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Session is a point-in-time snapshot of the authenticated session.
type Session struct {
	User    *users.User // nil when signed out
	Loading bool        // true until the first restore from the store completes
	State   State
}

// Authenticated reports whether a profile is loaded.
func (s Session) Authenticated() bool {
	return s.User != nil
}
