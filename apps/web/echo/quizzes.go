package echoweb

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core/quiz"
)

type (
	quizPages struct {
		bank *quiz.Bank
	}

	answerForm struct {
		Option *int `json:"option"`
	}
)

func registerQuizPages(s *server, authed echo.MiddlewareFunc) {
	p := quizPages{bank: s.deps.Bank}

	s.app.GET("/quizzes", p.list, authed)
	s.app.POST("/quizzes/:id/start", p.start, authed)
	s.app.GET("/quizzes/current", p.current, authed)
	s.app.POST("/quizzes/current/answer", p.answer, authed)
	s.app.DELETE("/quizzes/current", p.reset, authed)
}

func (p *quizPages) list(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"quizzes": p.bank.Summaries()})
}

func (p *quizPages) start(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	view, err := c.quiz.Start(id)
	if err != nil {
		return quizError(err)
	}
	return ctx.JSON(http.StatusOK, view)
}

func (p *quizPages) current(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	view, err := c.quiz.Current()
	if err != nil {
		return quizError(err)
	}
	return ctx.JSON(http.StatusOK, view)
}

func (p *quizPages) answer(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	var form answerForm
	if err = ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to answerForm")
	}
	if form.Option == nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"option": "this field is required"})
	}
	view, err := c.quiz.Answer(*form.Option)
	if err != nil {
		return quizError(err)
	}
	return ctx.JSON(http.StatusOK, view)
}

func (p *quizPages) reset(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	c.quiz.Reset()
	return ctx.NoContent(http.StatusNoContent)
}
