// Package guard decides what a route shows for a given session state.
package guard

import "github.com/trezcool/lms/core/session"

const (
	LoginPath   = "/login"
	LandingPath = "/dashboard"
)

type Outcome uint8

const (
	Render      Outcome = iota // show the wrapped view
	Placeholder                // session still loading
	Redirect                   // go to Decision.Location
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Placeholder:
		return "placeholder"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

type Decision struct {
	Outcome  Outcome
	Location string
}

var (
	render      = Decision{Outcome: Render}
	placeholder = Decision{Outcome: Placeholder}
)

func redirect(loc string) Decision {
	return Decision{Outcome: Redirect, Location: loc}
}

// Authenticated admits a session whose role is in roles, or any session if roles is empty.
// Without a session it redirects to LoginPath, on a role mismatch to LandingPath.
// Loading takes priority over both.
func Authenticated(st session.State, roles ...session.Role) Decision {
	switch {
	case st.Loading:
		return placeholder
	case st.Session == nil:
		return redirect(LoginPath)
	case len(roles) > 0 && !st.Session.Role.In(roles...):
		return redirect(LandingPath)
	default:
		return render
	}
}

// Unauthenticated admits only visitors without a session; others go to LandingPath.
func Unauthenticated(st session.State) Decision {
	switch {
	case st.Loading:
		return placeholder
	case st.Session != nil:
		return redirect(LandingPath)
	default:
		return render
	}
}
