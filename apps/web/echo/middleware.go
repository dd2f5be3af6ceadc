package echoweb

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core/guard"
	"github.com/trezcool/lms/core/session"
)

type guardFunc func(st session.State) guard.Decision

// guardMiddleware waits up to restoreWait for the client's session to load, then applies decide.
func guardMiddleware(name string, restoreWait time.Duration, metrics *Metrics, decide guardFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			c, err := getContextClient(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context client")
			}

			waitCtx, cancel := context.WithTimeout(ctx.Request().Context(), restoreWait)
			st := c.store.WaitLoaded(waitCtx)
			cancel()

			d := decide(st)
			metrics.guardDecision(name, d.Outcome.String())

			switch d.Outcome {
			case guard.Render:
				return next(ctx)
			case guard.Placeholder:
				ctx.Response().Header().Set("Retry-After", "1")
				return ctx.JSON(http.StatusAccepted, echo.Map{"loading": true})
			default:
				return ctx.Redirect(http.StatusFound, d.Location)
			}
		}
	}
}

// requireSession admits signed-in clients whose role is in roles (any role if empty).
func (s *server) requireSession(roles ...session.Role) echo.MiddlewareFunc {
	name := "authenticated"
	if len(roles) > 0 {
		name += ":" + roles[0].String()
	}
	return guardMiddleware(name, s.deps.Conf.Server.RestoreWait, s.deps.Metrics, func(st session.State) guard.Decision {
		return guard.Authenticated(st, roles...)
	})
}

// requireGuest admits clients without a session.
func (s *server) requireGuest() echo.MiddlewareFunc {
	return guardMiddleware("unauthenticated", s.deps.Conf.Server.RestoreWait, s.deps.Metrics, guard.Unauthenticated)
}

// contextSession is the session admitted by requireSession.
func contextSession(ctx echo.Context) (*client, *session.Session, error) {
	c, err := getContextClient(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "getting context client")
	}
	sess := c.store.Current()
	if sess == nil {
		// signed out between the guard and the handler
		return nil, nil, errUnauthorized
	}
	return c, sess, nil
}
