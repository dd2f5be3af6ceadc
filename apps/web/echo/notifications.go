package echoweb

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/lms/core/course"
	"github.com/trezcool/lms/core/notify"
	"github.com/trezcool/lms/core/quiz"
)

type notificationPages struct{}

func registerNotificationPages(s *server, authed echo.MiddlewareFunc) {
	p := notificationPages{}

	s.app.GET("/notifications", p.list, authed)
	s.app.POST("/notifications/read", p.markAllRead, authed)
	s.app.POST("/notifications/:id/read", p.markRead, authed)
	s.app.DELETE("/notifications/:id", p.delete, authed)
}

// list accepts filter=all|unread|high|<type> and sort=newest|oldest|priority.
func (p *notificationPages) list(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	filter, err := notify.ParseFilter(ctx.QueryParam("filter"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	order, err := notify.ParseOrder(ctx.QueryParam("sort"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return ctx.JSON(http.StatusOK, c.inbox.List(filter, order))
}

func (p *notificationPages) markRead(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return errHttpNotFound
	}
	if err = c.inbox.MarkRead(id); err != nil {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, echo.Map{"unread": c.inbox.Unread()})
}

func (p *notificationPages) markAllRead(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	c.inbox.MarkAllRead()
	return ctx.JSON(http.StatusOK, echo.Map{"unread": 0})
}

func (p *notificationPages) delete(ctx echo.Context) error {
	c, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return errHttpNotFound
	}
	if err = c.inbox.Delete(id); err != nil {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func notifyEnrolled(inbox *notify.Inbox, e course.Enrollment) {
	inbox.Add(notify.Notification{
		Kind:      notify.KindCourse,
		Title:     "Enrolled",
		Message:   "You are now enrolled in " + e.CourseTitle,
		Course:    e.CourseTitle,
		ActionURL: fmt.Sprintf("/courses/%d", e.CourseID),
		Priority:  notify.PriorityMedium,
	})
}

func notifyPublished(inbox *notify.Inbox, crs course.Course) {
	inbox.Add(notify.Notification{
		Kind:      notify.KindCourse,
		Title:     "Course Published",
		Message:   crs.Title + " is now visible to students",
		Course:    crs.Title,
		ActionURL: fmt.Sprintf("/courses/%d", crs.ID),
		Priority:  notify.PriorityLow,
	})
}

// notifyQuizResult posts the score, plus an achievement for a perfect one.
func notifyQuizResult(inbox *notify.Inbox, q quiz.Quiz, res quiz.Result) {
	inbox.Add(notify.Notification{
		Kind:      notify.KindQuiz,
		Title:     "Quiz Results",
		Message:   fmt.Sprintf("You scored %d%% on the %s quiz", res.Percent, q.Title),
		ActionURL: "/quizzes",
		Priority:  notify.PriorityLow,
	})
	if res.Percent == 100 {
		inbox.Add(notify.Notification{
			Kind:      notify.KindAchievement,
			Title:     "Achievement Unlocked!",
			Message:   "Perfect score on " + q.Title,
			ActionURL: "/quizzes",
			Priority:  notify.PriorityHigh,
		})
	}
}
