package echoweb

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/quiz"
	"github.com/trezcool/lms/core/session"
	"github.com/trezcool/lms/services/lmsapi"
)

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errSessionExpired = echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	errHttpNotFound   = echo.NewHTTPError(http.StatusNotFound, "page not found")
	errBadGateway     = echo.NewHTTPError(http.StatusBadGateway, "the LMS backend is unavailable")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var apiErr *lmsapi.Error
		var authErr *session.AuthError

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == echo.ErrNotFound {
				origErr = errHttpNotFound
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.TranslateValidationErrors(origErr, translator)
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			switch {
			case errors.Is(err, session.ErrSuperseded):
				code = http.StatusConflict
				message = "a newer sign-in or sign-out took over"
			case errors.As(err, &authErr):
				code = http.StatusBadRequest
				message = authErr.Message
			case errors.As(err, &apiErr) && lmsapi.IsUnauthorized(err):
				// the backend no longer accepts the token
				if c := loadedContextClient(ctx); c != nil {
					c.signOut(ctx.Request().Context())
				}
				code = errSessionExpired.Code
				message = errSessionExpired.Message
			case errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError:
				code = apiErr.StatusCode
				message = apiErr.Message
				if message == "" {
					message = http.StatusText(code)
				}
			case errors.As(err, &apiErr):
				logger.Error("backend error", append([]interface{}{err}, personArgs(ctx)...)...)
				code = errBadGateway.Code
				message = errBadGateway.Message
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				logger.Error(msg, append([]interface{}{errors.Wrap(err, msg)}, personArgs(ctx)...)...)
			}
		}

		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func personArgs(ctx echo.Context) []interface{} {
	if p := contextPerson(ctx); p != nil {
		return []interface{}{p}
	}
	return nil
}

// quizError maps the runner's errors to http errors.
func quizError(err error) error {
	switch errors.Cause(err) {
	case quiz.ErrQuizNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case quiz.ErrNoActiveQuiz:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case quiz.ErrAlreadyAnswered, quiz.ErrFinished:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case quiz.ErrInvalidOption, quiz.ErrEmptyQuiz:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
