package lmsapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/trezcool/lms/core/course"
)

// Page selects a page of a sorted course listing. Pages start at 0.
type Page struct {
	Page int
	Size int
}

func (p Page) query() url.Values {
	size := p.Size
	if size <= 0 {
		size = 10
	}
	page := p.Page
	if page < 0 {
		page = 0
	}
	return url.Values{"page": {strconv.Itoa(page)}, "size": {strconv.Itoa(size)}}
}

func (c *Client) listCourses(ctx context.Context, path string, query url.Values) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	if err := c.get(ctx, path, query, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func (c *Client) PublishedCourses(ctx context.Context) ([]course.Course, error) {
	return c.listCourses(ctx, "/courses/public", nil)
}

func (c *Client) SearchCourses(ctx context.Context, q string) ([]course.Course, error) {
	return c.listCourses(ctx, "/courses/public/search", url.Values{"q": {q}})
}

func (c *Client) CoursesByCategory(ctx context.Context, category string) ([]course.Course, error) {
	return c.listCourses(ctx, "/courses/public/category/"+url.PathEscape(category), nil)
}

func (c *Client) CoursesByDifficulty(ctx context.Context, d course.Difficulty) ([]course.Course, error) {
	return c.listCourses(ctx, "/courses/public/difficulty/"+url.PathEscape(string(d)), nil)
}

func (c *Client) FreeCourses(ctx context.Context) ([]course.Course, error) {
	return c.listCourses(ctx, "/courses/public/free", nil)
}

func (c *Client) LatestCourses(ctx context.Context, p Page) ([]course.Course, error) {
	return c.listCourses(ctx, "/courses/public/latest", p.query())
}

func (c *Client) PopularCourses(ctx context.Context, p Page) ([]course.Course, error) {
	return c.listCourses(ctx, "/courses/public/popular", p.query())
}

func coursePath(id int64) string {
	return "/courses/" + strconv.FormatInt(id, 10)
}

func (c *Client) Course(ctx context.Context, id int64) (course.Course, error) {
	var crs course.Course
	err := c.get(ctx, coursePath(id), nil, &crs)
	return crs, err
}

func (c *Client) CreateCourse(ctx context.Context, form course.Form) (course.Course, error) {
	var crs course.Course
	err := c.do(ctx, request{method: http.MethodPost, path: "/courses", body: form}, &crs)
	return crs, err
}

func (c *Client) UpdateCourse(ctx context.Context, id int64, form course.Form) (course.Course, error) {
	var crs course.Course
	err := c.do(ctx, request{method: http.MethodPut, path: coursePath(id), body: form}, &crs)
	return crs, err
}

func (c *Client) DeleteCourse(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: coursePath(id)}, nil)
}

func (c *Client) PublishCourse(ctx context.Context, id int64) (course.Course, error) {
	var crs course.Course
	err := c.do(ctx, request{method: http.MethodPost, path: coursePath(id) + "/publish"}, &crs)
	return crs, err
}

func (c *Client) UnpublishCourse(ctx context.Context, id int64) (course.Course, error) {
	var crs course.Course
	err := c.do(ctx, request{method: http.MethodPost, path: coursePath(id) + "/unpublish"}, &crs)
	return crs, err
}
