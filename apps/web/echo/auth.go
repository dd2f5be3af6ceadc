package echoweb

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core/guard"
	"github.com/trezcool/lms/core/session"
)

type (
	authPages struct {
		validate *validator.Validate
		metrics  *Metrics
	}

	sessionView struct {
		Authenticated bool          `json:"authenticated"`
		Loading       bool          `json:"loading"`
		User          *session.User `json:"user,omitempty"`
		Portal        string        `json:"portal,omitempty"`
	}
)

func newSessionView(st session.State) sessionView {
	v := sessionView{Loading: st.Loading}
	if st.Session != nil {
		usr := st.Session.User
		v.Authenticated = true
		v.User = &usr
		v.Portal = usr.Role.Portal().String()
	}
	return v
}

func registerAuthPages(s *server, guest echo.MiddlewareFunc) {
	p := authPages{
		validate: s.deps.Validate,
		metrics:  s.deps.Metrics,
	}

	s.app.GET("/login", p.loginPage, guest)
	s.app.POST("/login", p.login, guest)
	s.app.GET("/signup", p.signupPage, guest)
	s.app.POST("/signup", p.signup, guest)

	s.app.POST("/logout", p.logout)
	s.app.GET("/session", p.session)
}

func (p *authPages) loginPage(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"page":   "login",
		"fields": []string{"usernameOrEmail", "password"},
	})
}

func (p *authPages) login(ctx echo.Context) error {
	c, err := getContextClient(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context client")
	}

	var creds session.Credentials
	if err = ctx.Bind(&creds); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err = creds.Validate(p.validate); err != nil {
		return err
	}

	if err = c.store.Login(ctx.Request().Context(), creds); err != nil {
		p.metrics.sessionEvent("login_failed")
		return err
	}
	p.metrics.sessionEvent("login")

	return ctx.JSON(http.StatusOK, echo.Map{
		"redirect": guard.LandingPath,
		"session":  newSessionView(c.store.State()),
	})
}

func (p *authPages) signupPage(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"page":  "signup",
		"roles": []session.Role{session.RoleStudent, session.RoleInstructor},
	})
}

func (p *authPages) signup(ctx echo.Context) error {
	c, err := getContextClient(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context client")
	}

	var acct session.NewAccount
	if err = ctx.Bind(&acct); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}
	if err = acct.Validate(p.validate); err != nil {
		return err
	}

	usr, err := c.store.Signup(ctx.Request().Context(), acct)
	if err != nil {
		p.metrics.sessionEvent("signup_failed")
		return err
	}
	p.metrics.sessionEvent("signup")

	// no auto-login: the new user signs in next
	return ctx.JSON(http.StatusCreated, echo.Map{
		"redirect": guard.LoginPath,
		"user":     usr,
	})
}

func (p *authPages) logout(ctx echo.Context) error {
	c, err := getContextClient(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context client")
	}
	c.signOut(ctx.Request().Context())
	p.metrics.sessionEvent("logout")

	return ctx.JSON(http.StatusOK, echo.Map{"redirect": guard.LoginPath})
}

func (p *authPages) session(ctx echo.Context) error {
	c, err := getContextClient(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context client")
	}
	return ctx.JSON(http.StatusOK, newSessionView(c.store.State()))
}
