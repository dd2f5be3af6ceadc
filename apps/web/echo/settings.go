package echoweb

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/settings"
)

type (
	settingsPages struct {
		validate *validator.Validate
	}

	themeForm struct {
		Theme string `json:"theme" validate:"required,oneof=dark light toggle"`
	}

	// profileForm edits the identity fields of the session. The backend has no profile endpoint.
	profileForm struct {
		FirstName string `json:"firstName" validate:"notblank,max=50"`
		LastName  string `json:"lastName" validate:"notblank,max=50"`
		Email     string `json:"email" validate:"required,email,max=100"`
	}
)

func (f *profileForm) Validate(validate *validator.Validate) error {
	f.FirstName = core.CleanString(f.FirstName)
	f.LastName = core.CleanString(f.LastName)
	f.Email = core.CleanString(f.Email, true /* lower */)
	return validate.Struct(f)
}

func registerSettingsPages(s *server, authed echo.MiddlewareFunc) {
	p := settingsPages{validate: s.deps.Validate}

	s.app.GET("/theme", p.theme)
	s.app.PUT("/theme", p.setTheme)

	s.app.GET("/profile", p.profile, authed)
	s.app.PUT("/profile", p.updateProfile, authed)
	s.app.GET("/settings", p.settings, authed)
}

func (p *settingsPages) theme(ctx echo.Context) error {
	c, err := getContextClient(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context client")
	}
	theme, err := c.themes.Load(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"theme": theme})
}

func (p *settingsPages) setTheme(ctx echo.Context) error {
	c, err := getContextClient(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context client")
	}

	var form themeForm
	if err = ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to themeForm")
	}
	if err = p.validate.Struct(form); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	theme := settings.Theme(form.Theme)
	if form.Theme == "toggle" {
		if theme, err = c.themes.Toggle(reqCtx); err != nil {
			return err
		}
	} else if err = c.themes.Set(reqCtx, theme); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"theme": theme})
}

func (p *settingsPages) profile(ctx echo.Context) error {
	_, sess, err := contextSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"user":     sess.User,
		"fullName": sess.FullName(),
	})
}

func (p *settingsPages) updateProfile(ctx echo.Context) error {
	c, sess, err := contextSession(ctx)
	if err != nil {
		return err
	}

	var form profileForm
	if err = ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to profileForm")
	}
	if err = form.Validate(p.validate); err != nil {
		return err
	}

	usr := sess.User
	usr.FirstName, usr.LastName, usr.Email = form.FirstName, form.LastName, form.Email
	if err = c.store.UpdateUser(usr); err != nil {
		return errUnauthorized
	}
	return ctx.JSON(http.StatusOK, echo.Map{"user": usr})
}

func (p *settingsPages) settings(ctx echo.Context) error {
	c, sess, err := contextSession(ctx)
	if err != nil {
		return err
	}
	theme, err := c.themes.Load(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"user":  sess.User,
		"theme": theme,
	})
}
