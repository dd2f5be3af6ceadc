package lmsapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/trezcool/lms/core/course"
)

func enrollmentPath(courseID int64) string {
	return "/enrollments/" + strconv.FormatInt(courseID, 10)
}

func (c *Client) Enroll(ctx context.Context, courseID int64) (course.Enrollment, error) {
	var e course.Enrollment
	err := c.do(ctx, request{method: http.MethodPost, path: enrollmentPath(courseID)}, &e)
	return e, err
}

func (c *Client) Unenroll(ctx context.Context, courseID int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: enrollmentPath(courseID)}, nil)
}

func (c *Client) MyEnrollments(ctx context.Context) ([]course.Enrollment, error) {
	enrollments := make([]course.Enrollment, 0)
	if err := c.get(ctx, "/enrollments/my-enrollments", nil, &enrollments); err != nil {
		return nil, err
	}
	return enrollments, nil
}

func (c *Client) CourseEnrollments(ctx context.Context, courseID int64) ([]course.Enrollment, error) {
	enrollments := make([]course.Enrollment, 0)
	path := "/enrollments/course/" + strconv.FormatInt(courseID, 10)
	if err := c.get(ctx, path, nil, &enrollments); err != nil {
		return nil, err
	}
	return enrollments, nil
}

func (c *Client) IsEnrolled(ctx context.Context, courseID int64) (bool, error) {
	var enrolled bool
	err := c.get(ctx, enrollmentPath(courseID)+"/status", nil, &enrolled)
	return enrolled, err
}

func (c *Client) Enrollment(ctx context.Context, courseID int64) (course.Enrollment, error) {
	var e course.Enrollment
	err := c.get(ctx, enrollmentPath(courseID), nil, &e)
	return e, err
}
