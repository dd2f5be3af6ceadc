package echoweb

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/lms/core/course"
	"github.com/trezcool/lms/services/lmsapi"
)

// courseQuery is the filter of the course catalog. At most one of its filters applies,
// in this order: q, category, difficulty, free, sort.
type courseQuery struct {
	Search     string
	Category   string
	Difficulty course.Difficulty
	Free       bool
	Sort       string // latest | popular
	Page       lmsapi.Page
}

func (q *courseQuery) Bind(ctx echo.Context) error {
	q.Search = ctx.QueryParam("q")
	q.Category = ctx.QueryParam("category")

	if d := ctx.QueryParam("difficulty"); d != "" {
		parsed, ok := course.ParseDifficulty(d)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "difficulty must be one of BEGINNER, INTERMEDIATE or ADVANCED")
		}
		q.Difficulty = parsed
	}

	if f := ctx.QueryParam("free"); f != "" {
		free, err := strconv.ParseBool(f)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "free must be a boolean")
		}
		q.Free = free
	}

	switch q.Sort = ctx.QueryParam("sort"); q.Sort {
	case "", "latest", "popular":
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "sort must be latest or popular")
	}

	var err error
	if q.Page.Page, err = intParam(ctx, "page", 0); err != nil {
		return err
	}
	if q.Page.Size, err = intParam(ctx, "size", 10); err != nil {
		return err
	}
	return nil
}

func intParam(ctx echo.Context, name string, def int) (int, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a positive integer")
	}
	return n, nil
}

func idParam(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}
