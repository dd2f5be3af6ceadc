package lmsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/lms/core/course"
	"github.com/trezcool/lms/core/session"
	testutil "github.com/trezcool/lms/tests"
)

var ctx = context.Background()

func setup(t *testing.T) (*testutil.Backend, *Client) {
	t.Helper()
	backend := testutil.NewBackend(t)
	client, err := New(backend.APIURL(), &http.Client{Timeout: 5 * time.Second})
	require.NoError(t, err)
	return backend, client
}

func TestNew(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{url: "http://localhost:8080/api"},
		{url: "http://localhost:8080/api/"},
		{url: "localhost:8080", wantErr: true},
		{url: "/api", wantErr: true},
		{url: "http://[::1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, err := New(tt.url, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q) error = %v; wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestClient_SignIn(t *testing.T) {
	backend, client := setup(t)
	student := backend.AddUser(testutil.Student, testutil.Password)

	tests := []struct {
		name    string
		creds   session.Credentials
		wantErr string
	}{
		{name: "username", creds: session.Credentials{UsernameOrEmail: "student", Password: testutil.Password}},
		{name: "email", creds: session.Credentials{UsernameOrEmail: "student@lms.test", Password: testutil.Password}},
		{name: "bad password", creds: session.Credentials{UsernameOrEmail: "student", Password: "nope"}, wantErr: "Error: Bad credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := client.SignIn(ctx, tt.creds)
			if tt.wantErr != "" {
				var apiErr *Error
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
				assert.Equal(t, tt.wantErr, apiErr.UserMessage())
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.Token)
			assert.Equal(t, student, res.User)
		})
	}
}

func TestClient_SignUp(t *testing.T) {
	backend, client := setup(t)
	backend.AddUser(testutil.Student, testutil.Password)

	usr, err := client.SignUp(ctx, session.NewAccount{
		FirstName: "New", LastName: "Comer", Username: "newcomer", Email: "new@lms.test",
		Password: "S3cure!pass", PasswordConfirm: "S3cure!pass", Role: "INSTRUCTOR",
	})
	require.NoError(t, err)
	assert.Equal(t, "newcomer", usr.Username)
	assert.Equal(t, session.RoleInstructor, usr.Role)
	assert.False(t, usr.IsApproved)

	_, err = client.SignUp(ctx, session.NewAccount{Username: "student", Email: "other@lms.test"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Error: Username is already taken!", apiErr.Message)
}

func TestClient_CurrentUser(t *testing.T) {
	backend, client := setup(t)
	student := backend.AddUser(testutil.Student, testutil.Password)

	usr, err := client.CurrentUser(ctx, backend.Token(t, student))
	require.NoError(t, err)
	assert.Equal(t, student, usr)

	expired := testutil.MintToken(t, backend.Secret, student, time.Now().Add(-time.Minute))
	_, err = client.CurrentUser(ctx, expired)
	assert.True(t, IsUnauthorized(err), "CurrentUser() error = %v; want unauthorized", err)

	_, err = client.CurrentUser(ctx, "")
	assert.True(t, IsUnauthorized(err), "CurrentUser() error = %v; want unauthorized", err)
}

func TestClient_WithToken(t *testing.T) {
	backend, client := setup(t)
	student := backend.AddUser(testutil.Student, testutil.Password)
	token := backend.Token(t, student)

	var current string
	authed := client.WithToken(TokenFunc(func() string { return current }))

	_, err := authed.MyEnrollments(ctx)
	assert.True(t, IsUnauthorized(err))

	current = token
	_, err = authed.MyEnrollments(ctx)
	require.NoError(t, err)

	// the original client is left untouched
	_, err = client.MyEnrollments(ctx)
	assert.True(t, IsUnauthorized(err))

	reqs := backend.Requests()
	assert.Equal(t, "", reqs[0].Authorization)
	assert.Equal(t, "Bearer "+token, reqs[1].Authorization)
	assert.Equal(t, "", reqs[2].Authorization)
}

func TestClient_Courses(t *testing.T) {
	backend, client := setup(t)
	student := backend.AddUser(testutil.Student, testutil.Password)
	client = client.WithToken(TokenFunc(func() string { return backend.Token(t, student) }))

	old := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	goCourse := backend.AddCourse(course.Course{
		Title: "Go Basics", Description: "Learn Go", Category: "Programming", DifficultyLevel: course.Beginner,
		IsPublished: true, CreatedAt: course.Time{Time: old},
		Lessons: []course.Lesson{{ID: 100, Title: "Hello"}},
	})
	rust := backend.AddCourse(course.Course{
		Title: "Rust", Category: "Programming", DifficultyLevel: course.Advanced, Price: 49.9, IsPublished: true,
	})
	backend.AddCourse(course.Course{Title: "Draft", Category: "Design", IsPublished: false})

	ids := func(courses []course.Course, err error) []int64 {
		t.Helper()
		require.NoError(t, err)
		out := make([]int64, 0, len(courses))
		for _, c := range courses {
			out = append(out, c.ID)
		}
		return out
	}

	assert.Equal(t, []int64{goCourse.ID, rust.ID}, ids(client.PublishedCourses(ctx)))
	assert.Equal(t, []int64{goCourse.ID}, ids(client.SearchCourses(ctx, "learn go")))
	assert.Equal(t, []int64{goCourse.ID, rust.ID}, ids(client.CoursesByCategory(ctx, "Programming")))
	assert.Equal(t, []int64{rust.ID}, ids(client.CoursesByDifficulty(ctx, course.Advanced)))
	assert.Equal(t, []int64{goCourse.ID}, ids(client.FreeCourses(ctx)))
	assert.Equal(t, []int64{rust.ID, goCourse.ID}, ids(client.LatestCourses(ctx, Page{})))
	assert.Equal(t, []int64{goCourse.ID}, ids(client.LatestCourses(ctx, Page{Page: 1, Size: 1})))

	_, err := client.Enroll(ctx, rust.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{rust.ID, goCourse.ID}, ids(client.PopularCourses(ctx, Page{})))

	crs, err := client.Course(ctx, goCourse.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go Basics", crs.Title)
	assert.True(t, crs.CreatedAt.Equal(old))
	_, found := crs.Lesson(100)
	assert.True(t, found)

	_, err = client.Course(ctx, 9999)
	assert.True(t, IsNotFound(err), "Course() error = %v; want not found", err)
}

func TestClient_CoursesByCategory(t *testing.T) {
	backend, client := setup(t)
	student := backend.AddUser(testutil.Student, testutil.Password)
	client = client.WithToken(TokenFunc(func() string { return backend.Token(t, student) }))

	web := backend.AddCourse(course.Course{Title: "HTML", Category: "Web Development", IsPublished: true})
	data := backend.AddCourse(course.Course{Title: "Pandas", Category: "Data Science", IsPublished: true})
	backend.AddCourse(course.Course{Title: "Go", Category: "Programming", IsPublished: true})

	tests := []struct {
		name     string
		category string
		wantPath string
		want     []int64
	}{
		{name: "two words", category: "Web Development", wantPath: "/courses/public/category/Web Development", want: []int64{web.ID}},
		{name: "other case", category: "data science", wantPath: "/courses/public/category/data science", want: []int64{data.ID}},
		{name: "unknown", category: "Cooking", wantPath: "/courses/public/category/Cooking", want: []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses, err := client.CoursesByCategory(ctx, tt.category)
			require.NoError(t, err)
			got := make([]int64, 0, len(courses))
			for _, c := range courses {
				got = append(got, c.ID)
			}
			assert.Equal(t, tt.want, got)

			reqs := backend.Requests()
			assert.Equal(t, tt.wantPath, reqs[len(reqs)-1].Path)
		})
	}
}

func TestClient_ManageCourses(t *testing.T) {
	backend, client := setup(t)
	teacher := backend.AddUser(testutil.Instructor, testutil.Password)
	student := backend.AddUser(testutil.Student, testutil.Password)
	asTeacher := client.WithToken(TokenFunc(func() string { return backend.Token(t, teacher) }))
	asStudent := client.WithToken(TokenFunc(func() string { return backend.Token(t, student) }))

	form := course.Form{Title: "Go", Category: "Programming", DifficultyLevel: course.Beginner}
	_, err := asStudent.CreateCourse(ctx, form)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.False(t, IsUnauthorized(err), "CreateCourse() error = %v; want forbidden only", err)

	crs, err := asTeacher.CreateCourse(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, crs.InstructorID)
	assert.False(t, crs.IsPublished)

	form.Title = "Go, revised"
	crs, err = asTeacher.UpdateCourse(ctx, crs.ID, form)
	require.NoError(t, err)
	assert.Equal(t, "Go, revised", crs.Title)

	crs, err = asTeacher.PublishCourse(ctx, crs.ID)
	require.NoError(t, err)
	assert.True(t, crs.IsPublished)

	crs, err = asTeacher.UnpublishCourse(ctx, crs.ID)
	require.NoError(t, err)
	assert.False(t, crs.IsPublished)

	require.NoError(t, asTeacher.DeleteCourse(ctx, crs.ID))
	_, err = asTeacher.Course(ctx, crs.ID)
	assert.True(t, IsNotFound(err))
}

func TestClient_Enrollments(t *testing.T) {
	backend, client := setup(t)
	teacher := backend.AddUser(testutil.Instructor, testutil.Password)
	student := backend.AddUser(testutil.Student, testutil.Password)
	asStudent := client.WithToken(TokenFunc(func() string { return backend.Token(t, student) }))
	asTeacher := client.WithToken(TokenFunc(func() string { return backend.Token(t, teacher) }))

	crs := backend.AddCourse(course.Course{Title: "Go", InstructorID: teacher.ID, IsPublished: true})

	enrolled, err := asStudent.IsEnrolled(ctx, crs.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)

	e, err := asStudent.Enroll(ctx, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, crs.ID, e.CourseID)
	assert.Equal(t, "Go", e.CourseTitle)

	_, err = asStudent.Enroll(ctx, crs.ID)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Error: Already enrolled in this course", apiErr.UserMessage())

	enrolled, _ = asStudent.IsEnrolled(ctx, crs.ID)
	assert.True(t, enrolled)

	got, err := asStudent.Enrollment(ctx, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)

	mine, err := asStudent.MyEnrollments(ctx)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	roster, err := asTeacher.CourseEnrollments(ctx, crs.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, student.ID, roster[0].StudentID)

	require.NoError(t, asStudent.Unenroll(ctx, crs.ID))
	mine, err = asStudent.MyEnrollments(ctx)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestClient_Envelope(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantStatus int
		wantMsg    string
		want       bool
	}{
		{name: "data", status: 200, body: `{"success":true,"data":true,"status":200}`, want: true},
		{name: "no data", status: 200, body: `{"success":true,"status":200}`},
		{name: "unsuccessful 200", status: 200, body: `{"success":false,"message":"nope","status":400}`, wantErr: true, wantStatus: 200, wantMsg: "nope"},
		{name: "server error without envelope", status: 502, body: `<html>bad gateway</html>`, wantErr: true, wantStatus: 502},
		{name: "not json", status: 200, body: `<html></html>`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := New(srv.URL, nil)
			require.NoError(t, err)

			got, err := client.IsEnrolled(ctx, 1)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			require.Error(t, err)
			if tt.wantStatus != 0 {
				var apiErr *Error
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
				assert.Equal(t, tt.wantMsg, apiErr.Message)
				assert.Equal(t, tt.body, string(apiErr.Body))
			}
		})
	}
}
