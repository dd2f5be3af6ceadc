package echoweb

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/course"
	"github.com/trezcool/lms/core/session"
)

type staffPages struct {
	logger   core.Logger
	validate *validator.Validate
}

func registerInstructorPages(g *echo.Group, s *server) {
	p := staffPages{logger: s.deps.Logger, validate: s.deps.Validate}

	g.GET("", p.instructorPanel)

	cg := g.Group("/courses")
	cg.GET("", p.teaching)
	cg.POST("", p.createCourse)
	cg.PUT("/:id", p.updateCourse)
	cg.DELETE("/:id", p.deleteCourse)
	cg.POST("/:id/publish", p.publishCourse)
	cg.POST("/:id/unpublish", p.unpublishCourse)
	cg.GET("/:id/enrollments", p.courseEnrollments)

	g.GET("/*", placeholderPanel("instructor"))
}

func registerAdminPages(g *echo.Group, s *server) {
	p := staffPages{logger: s.deps.Logger, validate: s.deps.Validate}

	g.GET("", p.adminPanel)
	g.GET("/*", placeholderPanel("admin"))
}

// placeholderPanel answers the sub-pages of a panel that have no content yet.
func placeholderPanel(panel string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, echo.Map{
			"panel":   panel,
			"page":    ctx.Param("*"),
			"message": "coming soon",
		})
	}
}

func (p *staffPages) instructorPanel(ctx echo.Context) error {
	_, sess, err := contextSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"panel": "instructor",
		"user":  sess.User,
		"links": []string{"/instructor/courses"},
	})
}

func (p *staffPages) adminPanel(ctx echo.Context) error {
	_, sess, err := contextSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"panel": "admin",
		"user":  sess.User,
		"links": []string{"/instructor/courses"},
	})
}

// teaching lists the published courses of the instructor (all of them for admins).
func (p *staffPages) teaching(ctx echo.Context) error {
	c, sess, err := contextSession(ctx)
	if err != nil {
		return err
	}

	view := catalogView{Courses: []course.Course{}}
	courses, err := c.api.PublishedCourses(ctx.Request().Context())
	if err != nil {
		if view.Error, err = fetchBanner(ctx, p.logger, "courses", err); err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, view)
	}
	for _, crs := range courses {
		if sess.Role == session.RoleAdmin || crs.InstructorID == sess.ID {
			view.Courses = append(view.Courses, crs)
		}
	}
	return ctx.JSON(http.StatusOK, view)
}

func (p *staffPages) bindCourseForm(ctx echo.Context) (course.Form, error) {
	var form course.Form
	if err := ctx.Bind(&form); err != nil {
		return form, errors.Wrap(err, "binding to course.Form")
	}
	if err := form.Validate(p.validate); err != nil {
		return form, err
	}
	return form, nil
}

func (p *staffPages) createCourse(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	form, err := p.bindCourseForm(ctx)
	if err != nil {
		return err
	}
	crs, err := c.api.CreateCourse(ctx.Request().Context(), form)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (p *staffPages) updateCourse(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	form, err := p.bindCourseForm(ctx)
	if err != nil {
		return err
	}
	crs, err := c.api.UpdateCourse(ctx.Request().Context(), id, form)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (p *staffPages) deleteCourse(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = c.api.DeleteCourse(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (p *staffPages) publishCourse(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	crs, err := c.api.PublishCourse(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "publishing course")
	}
	notifyPublished(c.inbox, crs)
	return ctx.JSON(http.StatusOK, crs)
}

func (p *staffPages) unpublishCourse(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	crs, err := c.api.UnpublishCourse(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "unpublishing course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (p *staffPages) courseEnrollments(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	enrollments, err := c.api.CourseEnrollments(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "fetching course enrollments")
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"enrollments": enrollments,
		"stats":       course.ComputeStats(enrollments),
	})
}
