// Package testutil provides an in-process LMS backend for tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/lms/core/course"
	"github.com/trezcool/lms/core/session"
)

const contextClaimsKey = "claims"

type (
	envelope struct {
		Success bool        `json:"success"`
		Message string      `json:"message,omitempty"`
		Data    interface{} `json:"data,omitempty"`
		Status  int         `json:"status"`
	}

	account struct {
		session.User
		passwordHash []byte
	}

	failure struct {
		status int
		msg    string
	}

	// Request is a request seen by the Backend.
	Request struct {
		Method        string
		Path          string
		Authorization string
	}
)

// Backend is an httptest LMS REST backend. Its API lives under URL + "/api".
type Backend struct {
	*httptest.Server

	Secret   []byte
	TokenTTL time.Duration

	mu          sync.Mutex
	nextID      int64
	accounts    map[string]*account // by username
	courses     map[int64]*course.Course
	enrollments map[int64]map[int64]*course.Enrollment // user id -> course id
	failures    map[string]failure                     // "METHOD /path" -> forced response
	delay       time.Duration
	requests    []Request
}

// NewBackend starts a Backend closed at the end of the test.
func NewBackend(t testing.TB) *Backend {
	b := &Backend{
		Secret:      []byte("test-secret"),
		TokenTTL:    time.Hour,
		accounts:    make(map[string]*account),
		courses:     make(map[int64]*course.Course),
		enrollments: make(map[int64]map[int64]*course.Enrollment),
		failures:    make(map[string]failure),
	}
	b.Server = httptest.NewServer(b.router())
	t.Cleanup(b.Close)
	return b
}

// APIURL is the base URL clients are configured with.
func (b *Backend) APIURL() string { return b.URL + "/api" }

func (b *Backend) AddUser(usr session.User, password string) session.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err) // only fails for passwords over 72 bytes
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	usr.ID = b.nextID
	b.accounts[usr.Username] = &account{User: usr, passwordHash: hash}
	return usr
}

func (b *Backend) AddCourse(crs course.Course) course.Course {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	crs.ID = b.nextID
	if crs.CreatedAt.IsZero() {
		crs.CreatedAt = course.Time{Time: time.Now().UTC().Truncate(time.Second)}
	}
	crs.LessonCount = len(crs.Lessons)
	for i := range crs.Lessons {
		crs.Lessons[i].CourseID = crs.ID
	}
	b.courses[crs.ID] = &crs
	return crs
}

// Token mints a valid token for usr.
func (b *Backend) Token(t testing.TB, usr session.User) string {
	return MintToken(t, b.Secret, usr, time.Now().Add(b.TokenTTL))
}

// Fail forces the next requests to method path to answer status with msg, until Recover.
func (b *Backend) Fail(method, path string, status int, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = failure{status: status, msg: msg}
}

func (b *Backend) Recover(method, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, method+" "+path)
}

// SetDelay makes every response wait for d.
func (b *Backend) SetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// CountRequests counts the requests to method path.
func (b *Backend) CountRequests(method, path string) int {
	var n int
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (b *Backend) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code, msg := http.StatusInternalServerError, err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code, msg = he.Code, fmt.Sprint(he.Message)
			if he == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
			}
		}
		if !c.Response().Committed {
			_ = fail(c, code, "Error: "+msg)
		}
	}
	e.Use(b.record)

	api := e.Group("/api")
	authn := middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    b.Secret,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextClaimsKey,
		Claims:        new(Claims),
	})

	auth := api.Group("/auth")
	auth.POST("/signin", b.signIn)
	auth.POST("/signup", b.signUp)
	auth.GET("/me", b.me, authn)

	courses := api.Group("/courses")
	courses.GET("/public", b.publicCourses)
	courses.GET("/public/search", b.searchCourses)
	courses.GET("/public/category/:category", b.coursesByCategory)
	courses.GET("/public/difficulty/:difficulty", b.coursesByDifficulty)
	courses.GET("/public/free", b.freeCourses)
	courses.GET("/public/latest", b.latestCourses)
	courses.GET("/public/popular", b.popularCourses)
	courses.GET("/:id", b.getCourse, authn)
	courses.POST("", b.createCourse, authn)
	courses.PUT("/:id", b.updateCourse, authn)
	courses.DELETE("/:id", b.deleteCourse, authn)
	courses.POST("/:id/publish", b.publishCourse(true), authn)
	courses.POST("/:id/unpublish", b.publishCourse(false), authn)

	enrollments := api.Group("/enrollments", authn)
	enrollments.GET("/my-enrollments", b.myEnrollments)
	enrollments.GET("/course/:courseId", b.courseEnrollments)
	enrollments.POST("/:courseId", b.enroll)
	enrollments.DELETE("/:courseId", b.unenroll)
	enrollments.GET("/:courseId/status", b.enrollmentStatus)
	enrollments.GET("/:courseId", b.getEnrollment)

	return e
}

func (b *Backend) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		path := strings.TrimPrefix(req.URL.Path, "/api")

		b.mu.Lock()
		b.requests = append(b.requests, Request{Method: req.Method, Path: path, Authorization: req.Header.Get("Authorization")})
		delay := b.delay
		f, failing := b.failures[req.Method+" "+path]
		b.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return req.Context().Err()
			}
		}
		if failing {
			return fail(c, f.status, f.msg)
		}
		return next(c)
	}
}

func ok(c echo.Context, msg string, data interface{}) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Message: msg, Data: data, Status: http.StatusOK})
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, envelope{Success: false, Message: msg, Status: status})
}

// caller returns the account behind the request's token.
func (b *Backend) caller(c echo.Context) (*account, error) {
	token, _ := c.Get(contextClaimsKey).(*jwt.Token)
	if token == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	claims := token.Claims.(*Claims)

	b.mu.Lock()
	defer b.mu.Unlock()
	acct, found := b.accounts[claims.Username]
	if !found {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "User not found")
	}
	return acct, nil
}

// Auth

func (b *Backend) signIn(c echo.Context) error {
	var creds session.Credentials
	if err := c.Bind(&creds); err != nil {
		return fail(c, http.StatusBadRequest, "Error: invalid request")
	}

	b.mu.Lock()
	var found *account
	for _, acct := range b.accounts {
		if acct.Username == creds.UsernameOrEmail || acct.Email == creds.UsernameOrEmail {
			found = acct
			break
		}
	}
	b.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.passwordHash, []byte(creds.Password)) != nil {
		return fail(c, http.StatusBadRequest, "Error: Bad credentials")
	}
	token, err := signToken(b.Secret, found.User, time.Now().Add(b.TokenTTL))
	if err != nil {
		return err
	}

	resp := map[string]interface{}{
		"accessToken": token,
		"type":        "Bearer",
		"id":          found.ID,
		"username":    found.Username,
		"email":       found.Email,
		"firstName":   found.FirstName,
		"lastName":    found.LastName,
		"role":        map[string]string{"name": found.Role.String()},
		"isApproved":  found.IsApproved,
	}
	return ok(c, "User signed in successfully", resp)
}

func (b *Backend) signUp(c echo.Context) error {
	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		Role      string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Error: invalid request")
	}

	b.mu.Lock()
	for _, acct := range b.accounts {
		switch {
		case acct.Username == req.Username:
			b.mu.Unlock()
			return fail(c, http.StatusBadRequest, "Error: Username is already taken!")
		case acct.Email == req.Email:
			b.mu.Unlock()
			return fail(c, http.StatusBadRequest, "Error: Email is already in use!")
		}
	}
	b.mu.Unlock()

	role := session.ParseRole(req.Role)
	if !role.Known() {
		role = session.RoleStudent
	}
	usr := b.AddUser(session.User{
		Username:   req.Username,
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Role:       role,
		IsApproved: role == session.RoleStudent,
	}, req.Password)
	return ok(c, "User registered successfully", usr)
}

func (b *Backend) me(c echo.Context) error {
	acct, err := b.caller(c)
	if err != nil {
		return err
	}
	return ok(c, "User retrieved successfully", acct.User)
}

// Courses

func (b *Backend) listCourses(c echo.Context, keep func(*course.Course) bool, less func(a, b *course.Course) bool, paged bool) error {
	b.mu.Lock()
	list := make([]course.Course, 0, len(b.courses))
	for _, crs := range b.courses {
		if crs.IsPublished && keep(crs) {
			cp := *crs
			cp.Lessons = nil
			list = append(list, cp)
		}
	}
	b.mu.Unlock()

	if less == nil {
		less = func(x, y *course.Course) bool { return x.ID < y.ID }
	}
	sort.Slice(list, func(i, j int) bool { return less(&list[i], &list[j]) })

	if paged {
		page, _ := strconv.Atoi(c.QueryParam("page"))
		size, err := strconv.Atoi(c.QueryParam("size"))
		if err != nil || size <= 0 {
			size = 10
		}
		start := page * size
		if start > len(list) {
			start = len(list)
		}
		end := start + size
		if end > len(list) {
			end = len(list)
		}
		list = list[start:end]
	}
	return ok(c, "Courses retrieved successfully", list)
}

func all(*course.Course) bool { return true }

func (b *Backend) publicCourses(c echo.Context) error {
	return b.listCourses(c, all, nil, false)
}

func (b *Backend) searchCourses(c echo.Context) error {
	q := strings.ToLower(c.QueryParam("q"))
	return b.listCourses(c, func(crs *course.Course) bool {
		return strings.Contains(strings.ToLower(crs.Title), q) || strings.Contains(strings.ToLower(crs.Description), q)
	}, nil, false)
}

func (b *Backend) coursesByCategory(c echo.Context) error {
	category := c.Param("category")
	return b.listCourses(c, func(crs *course.Course) bool { return strings.EqualFold(crs.Category, category) }, nil, false)
}

func (b *Backend) coursesByDifficulty(c echo.Context) error {
	d, known := course.ParseDifficulty(c.Param("difficulty"))
	if !known {
		return fail(c, http.StatusBadRequest, "Error: unknown difficulty")
	}
	return b.listCourses(c, func(crs *course.Course) bool { return crs.DifficultyLevel == d }, nil, false)
}

func (b *Backend) freeCourses(c echo.Context) error {
	return b.listCourses(c, func(crs *course.Course) bool { return crs.IsFree() }, nil, false)
}

func (b *Backend) latestCourses(c echo.Context) error {
	return b.listCourses(c, all, func(x, y *course.Course) bool {
		if x.CreatedAt.Equal(y.CreatedAt.Time) {
			return x.ID > y.ID
		}
		return x.CreatedAt.After(y.CreatedAt.Time)
	}, true)
}

func (b *Backend) popularCourses(c echo.Context) error {
	return b.listCourses(c, all, func(x, y *course.Course) bool {
		if x.EnrollmentCount == y.EnrollmentCount {
			return x.ID < y.ID
		}
		return x.EnrollmentCount > y.EnrollmentCount
	}, true)
}

func idParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (b *Backend) findCourse(c echo.Context) (*course.Course, error) {
	id, err := idParam(c, "id")
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	crs, found := b.courses[id]
	if !found {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Course not found")
	}
	return crs, nil
}

func (b *Backend) getCourse(c echo.Context) error {
	if _, err := b.caller(c); err != nil {
		return err
	}
	crs, err := b.findCourse(c)
	if err != nil {
		return err
	}
	b.mu.Lock()
	cp := *crs
	b.mu.Unlock()
	return ok(c, "Course retrieved successfully", cp)
}

// owned checks that the caller may manage crs.
func owned(acct *account, crs *course.Course) error {
	if acct.Role == session.RoleAdmin || (acct.Role == session.RoleInstructor && crs.InstructorID == acct.ID) {
		return nil
	}
	return echo.NewHTTPError(http.StatusForbidden, "Access denied")
}

func (b *Backend) createCourse(c echo.Context) error {
	acct, err := b.caller(c)
	if err != nil {
		return err
	}
	if !acct.Role.In(session.RoleInstructor, session.RoleAdmin) {
		return echo.NewHTTPError(http.StatusForbidden, "Access denied")
	}
	var form course.Form
	if err = c.Bind(&form); err != nil {
		return fail(c, http.StatusBadRequest, "Error: invalid request")
	}
	crs := b.AddCourse(course.Course{
		Title:           form.Title,
		Description:     form.Description,
		InstructorID:    acct.ID,
		InstructorName:  acct.FullName(),
		Category:        form.Category,
		DifficultyLevel: form.DifficultyLevel,
		Price:           form.Price,
		ThumbnailURL:    form.ThumbnailURL,
	})
	return ok(c, "Course created successfully", crs)
}

func (b *Backend) updateCourse(c echo.Context) error {
	acct, err := b.caller(c)
	if err != nil {
		return err
	}
	crs, err := b.findCourse(c)
	if err != nil {
		return err
	}
	if err = owned(acct, crs); err != nil {
		return err
	}
	var form course.Form
	if err = c.Bind(&form); err != nil {
		return fail(c, http.StatusBadRequest, "Error: invalid request")
	}

	b.mu.Lock()
	crs.Title, crs.Description, crs.Category = form.Title, form.Description, form.Category
	crs.DifficultyLevel, crs.Price, crs.ThumbnailURL = form.DifficultyLevel, form.Price, form.ThumbnailURL
	crs.UpdatedAt = course.Time{Time: time.Now().UTC().Truncate(time.Second)}
	cp := *crs
	b.mu.Unlock()
	return ok(c, "Course updated successfully", cp)
}

func (b *Backend) deleteCourse(c echo.Context) error {
	acct, err := b.caller(c)
	if err != nil {
		return err
	}
	crs, err := b.findCourse(c)
	if err != nil {
		return err
	}
	if err = owned(acct, crs); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.courses, crs.ID)
	b.mu.Unlock()
	return ok(c, "Course deleted successfully", nil)
}

func (b *Backend) publishCourse(published bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		acct, err := b.caller(c)
		if err != nil {
			return err
		}
		crs, err := b.findCourse(c)
		if err != nil {
			return err
		}
		if err = owned(acct, crs); err != nil {
			return err
		}
		b.mu.Lock()
		crs.IsPublished = published
		cp := *crs
		b.mu.Unlock()
		return ok(c, "Course updated successfully", cp)
	}
}

// Enrollments

func (b *Backend) enroll(c echo.Context) error {
	acct, err := b.caller(c)
	if err != nil {
		return err
	}
	courseID, err := idParam(c, "courseId")
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	crs, found := b.courses[courseID]
	if !found || !crs.IsPublished {
		return fail(c, http.StatusBadRequest, "Error: Course not found")
	}
	mine := b.enrollments[acct.ID]
	if mine == nil {
		mine = make(map[int64]*course.Enrollment)
		b.enrollments[acct.ID] = mine
	}
	if _, enrolled := mine[courseID]; enrolled {
		return fail(c, http.StatusBadRequest, "Error: Already enrolled in this course")
	}
	b.nextID++
	e := &course.Enrollment{
		ID:                b.nextID,
		StudentID:         acct.ID,
		StudentName:       acct.FullName(),
		CourseID:          courseID,
		CourseTitle:       crs.Title,
		EnrolledAt:        course.Time{Time: time.Now().UTC().Truncate(time.Second)},
		TotalLessonsCount: crs.LessonCount,
	}
	mine[courseID] = e
	crs.EnrollmentCount++
	return ok(c, "Enrolled successfully", *e)
}

func (b *Backend) unenroll(c echo.Context) error {
	acct, err := b.caller(c)
	if err != nil {
		return err
	}
	courseID, err := idParam(c, "courseId")
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, enrolled := b.enrollments[acct.ID][courseID]; !enrolled {
		return fail(c, http.StatusBadRequest, "Error: Not enrolled in this course")
	}
	delete(b.enrollments[acct.ID], courseID)
	if crs, found := b.courses[courseID]; found {
		crs.EnrollmentCount--
	}
	return ok(c, "Unenrolled successfully", nil)
}

// SetProgress updates the progress of usr in a course; 100 completes it.
func (b *Backend) SetProgress(usr session.User, courseID int64, percent float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, found := b.enrollments[usr.ID][courseID]; found {
		e.ProgressPercentage = percent
		e.IsCompleted = percent >= 100
		if e.IsCompleted {
			e.CompletedAt = course.Time{Time: time.Now().UTC().Truncate(time.Second)}
		}
	}
}

func (b *Backend) myEnrollments(c echo.Context) error {
	acct, err := b.caller(c)
	if err != nil {
		return err
	}
	b.mu.Lock()
	list := make([]course.Enrollment, 0, len(b.enrollments[acct.ID]))
	for _, e := range b.enrollments[acct.ID] {
		list = append(list, *e)
	}
	b.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return ok(c, "Enrollments retrieved successfully", list)
}

func (b *Backend) courseEnrollments(c echo.Context) error {
	acct, err := b.caller(c)
	if err != nil {
		return err
	}
	courseID, err := idParam(c, "courseId")
	if err != nil {
		return err
	}
	b.mu.Lock()
	crs, found := b.courses[courseID]
	b.mu.Unlock()
	if !found {
		return fail(c, http.StatusBadRequest, "Error: Course not found")
	}
	if err = owned(acct, crs); err != nil {
		return err
	}

	b.mu.Lock()
	list := make([]course.Enrollment, 0)
	for _, mine := range b.enrollments {
		if e, enrolled := mine[courseID]; enrolled {
			list = append(list, *e)
		}
	}
	b.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return ok(c, "Enrollments retrieved successfully", list)
}

func (b *Backend) enrollmentStatus(c echo.Context) error {
	acct, err := b.caller(c)
	if err != nil {
		return err
	}
	courseID, err := idParam(c, "courseId")
	if err != nil {
		return err
	}
	b.mu.Lock()
	_, enrolled := b.enrollments[acct.ID][courseID]
	b.mu.Unlock()
	return ok(c, "Enrollment status retrieved successfully", enrolled)
}

func (b *Backend) getEnrollment(c echo.Context) error {
	acct, err := b.caller(c)
	if err != nil {
		return err
	}
	courseID, err := idParam(c, "courseId")
	if err != nil {
		return err
	}
	b.mu.Lock()
	e, enrolled := b.enrollments[acct.ID][courseID]
	var cp course.Enrollment
	if enrolled {
		cp = *e
	}
	b.mu.Unlock()
	if !enrolled {
		return fail(c, http.StatusBadRequest, "Error: Enrollment not found")
	}
	return ok(c, "Enrollment retrieved successfully", cp)
}
