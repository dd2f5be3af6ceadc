// Package course holds the course, lesson and enrollment view models fetched from the backend.
package course

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/lms/core"
)

type Difficulty string

const (
	Beginner     Difficulty = "BEGINNER"
	Intermediate Difficulty = "INTERMEDIATE"
	Advanced     Difficulty = "ADVANCED"
)

var Difficulties = []Difficulty{Beginner, Intermediate, Advanced}

// ParseDifficulty is case-insensitive; ok is false for anything else.
func ParseDifficulty(s string) (d Difficulty, ok bool) {
	d = Difficulty(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Difficulties {
		if d == known {
			return d, true
		}
	}
	return "", false
}

type Course struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	InstructorID    int64      `json:"instructorId"`
	InstructorName  string     `json:"instructorName"`
	Category        string     `json:"category"`
	DifficultyLevel Difficulty `json:"difficultyLevel"`
	Price           float64    `json:"price"`
	IsPublished     bool       `json:"isPublished"`
	ThumbnailURL    string     `json:"thumbnailUrl,omitempty"`
	CreatedAt       Time       `json:"createdAt"`
	UpdatedAt       Time       `json:"updatedAt"`
	EnrollmentCount int        `json:"enrollmentCount"`
	LessonCount     int        `json:"lessonCount"`
	Lessons         []Lesson   `json:"lessons,omitempty"`
}

func (c Course) IsFree() bool { return c.Price <= 0 }

// Lesson finds a lesson of c by id.
func (c Course) Lesson(id int64) (Lesson, bool) {
	for _, l := range c.Lessons {
		if l.ID == id {
			return l, true
		}
	}
	return Lesson{}, false
}

type Lesson struct {
	ID                int64  `json:"id"`
	CourseID          int64  `json:"courseId"`
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	LessonType        string `json:"lessonType"`
	Content           string `json:"content,omitempty"`
	FileURL           string `json:"fileUrl,omitempty"`
	FileName          string `json:"fileName,omitempty"`
	FileSize          int64  `json:"fileSize,omitempty"`
	DurationMinutes   int    `json:"durationMinutes"`
	OrderIndex        int    `json:"orderIndex"`
	IsPublished       bool   `json:"isPublished"`
	FormattedDuration string `json:"formattedDuration,omitempty"`
}

type Enrollment struct {
	ID                    int64   `json:"id"`
	StudentID             int64   `json:"studentId"`
	StudentName           string  `json:"studentName"`
	CourseID              int64   `json:"courseId"`
	CourseTitle           string  `json:"courseTitle"`
	EnrolledAt            Time    `json:"enrolledAt"`
	ProgressPercentage    float64 `json:"progressPercentage"`
	LastAccessedAt        Time    `json:"lastAccessedAt"`
	IsCompleted           bool    `json:"isCompleted"`
	CompletedAt           Time    `json:"completedAt"`
	CompletedLessonsCount int     `json:"completedLessonsCount"`
	TotalLessonsCount     int     `json:"totalLessonsCount"`
}

// Form is the instructor's create/update course form.
type Form struct {
	Title           string     `json:"title" validate:"notblank,max=200"`
	Description     string     `json:"description" validate:"max=5000"`
	Category        string     `json:"category" validate:"notblank,max=100"`
	DifficultyLevel Difficulty `json:"difficultyLevel" validate:"required,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	Price           float64    `json:"price" validate:"gte=0"`
	ThumbnailURL    string     `json:"thumbnailUrl,omitempty" validate:"omitempty,url"`
}

func (f *Form) Validate(validate *validator.Validate) error {
	f.Title = core.CleanString(f.Title)
	f.Description = core.CleanString(f.Description)
	f.Category = core.CleanString(f.Category)
	f.ThumbnailURL = core.CleanString(f.ThumbnailURL)
	if d, ok := ParseDifficulty(string(f.DifficultyLevel)); ok {
		f.DifficultyLevel = d
	}
	return validate.Struct(f)
}
