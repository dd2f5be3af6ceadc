package echoweb

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/course"
	"github.com/trezcool/lms/core/session"
	"github.com/trezcool/lms/services/lmsapi"
)

const recentCoursesCount = 6

type (
	coursePages struct {
		logger core.Logger
	}

	catalogView struct {
		Courses []course.Course `json:"courses"`
		Error   string          `json:"error,omitempty"`
	}

	courseView struct {
		Course     *course.Course     `json:"course"`
		Enrolled   bool               `json:"enrolled"`
		Enrollment *course.Enrollment `json:"enrollment,omitempty"`
		Error      string             `json:"error,omitempty"`
	}

	lessonView struct {
		CourseID    int64          `json:"courseId"`
		CourseTitle string         `json:"courseTitle"`
		Lesson      *course.Lesson `json:"lesson"`
		Prev        *int64         `json:"prev,omitempty"`
		Next        *int64         `json:"next,omitempty"`
	}

	myCoursesView struct {
		Filter      course.EnrollmentFilter `json:"filter"`
		Enrollments []course.Enrollment     `json:"enrollments"`
		Stats       course.Stats            `json:"stats"`
		Error       string                  `json:"error,omitempty"`
	}
)

func registerCoursePages(s *server, authed echo.MiddlewareFunc) {
	p := coursePages{logger: s.deps.Logger}

	s.app.GET("/dashboard", p.dashboard, authed)
	s.app.GET("/courses", p.catalog, authed)
	s.app.GET("/courses/:id", p.course, authed)
	s.app.GET("/courses/:courseId/lessons/:lessonId", p.lesson, authed)
	s.app.POST("/courses/:id/enrollment", p.enroll, authed)
	s.app.DELETE("/courses/:id/enrollment", p.unenroll, authed)
	s.app.GET("/my-courses", p.myCourses, authed)
}

// fetchBanner logs a failed page fetch and returns the banner shown in place of the data.
// A rejected token is returned as an error instead, so that the client gets signed out.
func fetchBanner(ctx echo.Context, logger core.Logger, what string, err error) (string, error) {
	if lmsapi.IsUnauthorized(err) {
		return "", err
	}
	logger.Warn("fetching "+what, append([]interface{}{err}, personArgs(ctx)...)...)
	return "Could not load " + what + ".", nil
}

func (p *coursePages) listCourses(ctx context.Context, api *lmsapi.Client, q courseQuery) ([]course.Course, error) {
	switch {
	case q.Search != "":
		return api.SearchCourses(ctx, q.Search)
	case q.Category != "":
		return api.CoursesByCategory(ctx, q.Category)
	case q.Difficulty != "":
		return api.CoursesByDifficulty(ctx, q.Difficulty)
	case q.Free:
		return api.FreeCourses(ctx)
	case q.Sort == "latest":
		return api.LatestCourses(ctx, q.Page)
	case q.Sort == "popular":
		return api.PopularCourses(ctx, q.Page)
	default:
		return api.PublishedCourses(ctx)
	}
}

func (p *coursePages) catalog(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}

	var q courseQuery
	if err = q.Bind(ctx); err != nil {
		return err
	}

	view := catalogView{Courses: []course.Course{}}
	courses, err := p.listCourses(ctx.Request().Context(), c.api, q)
	if err != nil {
		if view.Error, err = fetchBanner(ctx, p.logger, "courses", err); err != nil {
			return err
		}
	} else {
		view.Courses = courses
	}
	return ctx.JSON(http.StatusOK, view)
}

func (p *coursePages) course(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	crs, err := c.api.Course(reqCtx, id)
	if err != nil {
		if lmsapi.IsNotFound(err) {
			return errHttpNotFound
		}
		var view courseView
		if view.Error, err = fetchBanner(ctx, p.logger, "course", err); err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, view)
	}

	view := courseView{Course: &crs}
	enrolled, err := c.api.IsEnrolled(reqCtx, id)
	if err != nil {
		if view.Error, err = fetchBanner(ctx, p.logger, "enrollment status", err); err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, view)
	}
	view.Enrolled = enrolled
	if enrolled {
		e, err := c.api.Enrollment(reqCtx, id)
		if err != nil {
			if view.Error, err = fetchBanner(ctx, p.logger, "enrollment", err); err != nil {
				return err
			}
		} else {
			view.Enrollment = &e
		}
	}
	return ctx.JSON(http.StatusOK, view)
}

func (p *coursePages) lesson(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	courseID, err := idParam(ctx, "courseId")
	if err != nil {
		return err
	}
	lessonID, err := idParam(ctx, "lessonId")
	if err != nil {
		return err
	}

	crs, err := c.api.Course(ctx.Request().Context(), courseID)
	if err != nil {
		if lmsapi.IsNotFound(err) {
			return errHttpNotFound
		}
		return err
	}
	lesson, found := crs.Lesson(lessonID)
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "lesson not found")
	}

	view := lessonView{CourseID: crs.ID, CourseTitle: crs.Title, Lesson: &lesson}
	for i, l := range crs.Lessons {
		if l.ID != lessonID {
			continue
		}
		if i > 0 {
			prev := crs.Lessons[i-1].ID
			view.Prev = &prev
		}
		if i < len(crs.Lessons)-1 {
			next := crs.Lessons[i+1].ID
			view.Next = &next
		}
		break
	}
	return ctx.JSON(http.StatusOK, view)
}

func (p *coursePages) enroll(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	e, err := c.api.Enroll(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	notifyEnrolled(c.inbox, e)
	return ctx.JSON(http.StatusCreated, echo.Map{"enrollment": e})
}

func (p *coursePages) unenroll(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = c.api.Unenroll(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (p *coursePages) myCourses(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	filter, err := course.ParseEnrollmentFilter(ctx.QueryParam("filter"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	view := myCoursesView{Filter: filter, Enrollments: []course.Enrollment{}}
	enrollments, err := c.api.MyEnrollments(ctx.Request().Context())
	if err != nil {
		if view.Error, err = fetchBanner(ctx, p.logger, "your courses", err); err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, view)
	}
	view.Enrollments = course.FilterEnrollments(enrollments, filter)
	view.Stats = course.ComputeStats(enrollments)
	return ctx.JSON(http.StatusOK, view)
}

// dashboard is role specific: students see their progress, instructors the courses they teach,
// admins the catalog at large.
func (p *coursePages) dashboard(ctx echo.Context) error {
	c, sess, err := contextSession(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	view := echo.Map{
		"portal": sess.Role.Portal().String(),
		"user":   sess.User,
	}
	var banners []string

	courses, err := c.api.PublishedCourses(reqCtx)
	if err != nil {
		banner, err := fetchBanner(ctx, p.logger, "courses", err)
		if err != nil {
			return err
		}
		banners = append(banners, banner)
		courses = []course.Course{}
	}
	view["totalCourses"] = len(courses)
	recent := courses
	if len(recent) > recentCoursesCount {
		recent = recent[:recentCoursesCount]
	}
	view["recentCourses"] = recent

	switch sess.Role.Portal() {
	case session.RoleAdmin:
		var enrollments int
		for _, crs := range courses {
			enrollments += crs.EnrollmentCount
		}
		view["totalEnrollments"] = enrollments
	case session.RoleInstructor:
		teaching := make([]course.Course, 0)
		var students int
		for _, crs := range courses {
			if crs.InstructorID == sess.ID {
				teaching = append(teaching, crs)
				students += crs.EnrollmentCount
			}
		}
		view["teaching"] = teaching
		view["totalStudents"] = students
	}
	if sess.Role.Portal() != session.RoleAdmin {
		enrollments, err := c.api.MyEnrollments(reqCtx)
		if err != nil {
			banner, err := fetchBanner(ctx, p.logger, "your courses", err)
			if err != nil {
				return err
			}
			banners = append(banners, banner)
			enrollments = []course.Enrollment{}
		}
		view["enrollments"] = enrollments
		view["stats"] = course.ComputeStats(enrollments)
	}

	if len(banners) > 0 {
		view["error"] = banners[0]
	}
	return ctx.JSON(http.StatusOK, view)
}
