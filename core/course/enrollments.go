package course

import "github.com/pkg/errors"

type EnrollmentFilter string

const (
	FilterAll        EnrollmentFilter = "all"
	FilterInProgress EnrollmentFilter = "in-progress"
	FilterCompleted  EnrollmentFilter = "completed"
)

var ErrUnknownFilter = errors.New("filter must be one of all, in-progress or completed")

// ParseEnrollmentFilter treats "" as FilterAll.
func ParseEnrollmentFilter(s string) (EnrollmentFilter, error) {
	switch f := EnrollmentFilter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterInProgress, FilterCompleted:
		return f, nil
	default:
		return "", ErrUnknownFilter
	}
}

func (f EnrollmentFilter) Match(e Enrollment) bool {
	switch f {
	case FilterInProgress:
		return !e.IsCompleted
	case FilterCompleted:
		return e.IsCompleted
	default:
		return true
	}
}

// FilterEnrollments keeps the order of enrollments.
func FilterEnrollments(enrollments []Enrollment, f EnrollmentFilter) []Enrollment {
	out := make([]Enrollment, 0, len(enrollments))
	for _, e := range enrollments {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Stats are the enrollment counters shown on the student dashboard.
type Stats struct {
	Enrolled        int     `json:"enrolled"`
	Completed       int     `json:"completed"`
	InProgress      int     `json:"inProgress"`
	AverageProgress float64 `json:"averageProgress"`
}

func ComputeStats(enrollments []Enrollment) Stats {
	var (
		stats Stats
		sum   float64
	)
	for _, e := range enrollments {
		stats.Enrolled++
		if e.IsCompleted {
			stats.Completed++
		} else {
			stats.InProgress++
		}
		sum += e.ProgressPercentage
	}
	if stats.Enrolled > 0 {
		stats.AverageProgress = sum / float64(stats.Enrolled)
	}
	return stats
}
