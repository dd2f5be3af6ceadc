package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/lms/core/course"
	"github.com/trezcool/lms/core/settings"
)

func parseCourseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid course id %q", arg)
	}
	return id, nil
}

func (cli *commandLine) coursesCmd() *cobra.Command {
	var search, category, difficulty string
	var free bool

	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List the published courses",
		Args:  cobra.NoArgs,
	}
	flags := cmd.Flags()
	flags.StringVarP(&search, "search", "s", "", "Search in titles and descriptions")
	flags.StringVar(&category, "category", "", "Only this category")
	flags.StringVar(&difficulty, "difficulty", "", "BEGINNER, INTERMEDIATE or ADVANCED")
	flags.BoolVar(&free, "free", false, "Only free courses")

	cmd.RunE = cli.authenticated(func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var courses []course.Course
		var err error
		switch {
		case search != "":
			courses, err = cli.api.SearchCourses(ctx, search)
		case category != "":
			courses, err = cli.api.CoursesByCategory(ctx, category)
		case difficulty != "":
			d, ok := course.ParseDifficulty(difficulty)
			if !ok {
				return errors.Errorf("unknown difficulty %q", difficulty)
			}
			courses, err = cli.api.CoursesByDifficulty(ctx, d)
		case free:
			courses, err = cli.api.FreeCourses(ctx)
		default:
			courses, err = cli.api.PublishedCourses(ctx)
		}
		if err != nil {
			return err
		}

		if len(courses) == 0 {
			fmt.Fprintln(cli.out, "No courses found")
			return nil
		}
		w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tLEVEL\tPRICE\tSTUDENTS")
		for _, crs := range courses {
			price := "free"
			if !crs.IsFree() {
				price = fmt.Sprintf("%.2f", crs.Price)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n",
				crs.ID, crs.Title, crs.Category, crs.DifficultyLevel, price, crs.EnrollmentCount)
		}
		return w.Flush()
	})
	return cmd
}

func (cli *commandLine) enrollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enroll COURSE_ID",
		Short: "Enroll in a course",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = cli.authenticated(func(cmd *cobra.Command, args []string) error {
		id, err := parseCourseID(args[0])
		if err != nil {
			return err
		}
		e, err := cli.api.Enroll(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "Enrolled in %s\n", e.CourseTitle)
		return nil
	})
	return cmd
}

func (cli *commandLine) unenrollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unenroll COURSE_ID",
		Short: "Leave a course",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = cli.authenticated(func(cmd *cobra.Command, args []string) error {
		id, err := parseCourseID(args[0])
		if err != nil {
			return err
		}
		if err = cli.api.Unenroll(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "Unenrolled from course %d\n", id)
		return nil
	})
	return cmd
}

func (cli *commandLine) myCoursesCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "my-courses",
		Short: "List your enrollments",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", string(course.FilterAll), "all, in-progress or completed")

	cmd.RunE = cli.authenticated(func(cmd *cobra.Command, args []string) error {
		f, err := course.ParseEnrollmentFilter(filter)
		if err != nil {
			return err
		}
		enrollments, err := cli.api.MyEnrollments(cmd.Context())
		if err != nil {
			return err
		}

		stats := course.ComputeStats(enrollments)
		fmt.Fprintf(cli.out, "enrolled: %d  in progress: %d  completed: %d  average progress: %.0f%%\n",
			stats.Enrolled, stats.InProgress, stats.Completed, stats.AverageProgress)

		w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "COURSE\tTITLE\tPROGRESS\tCOMPLETED")
		for _, e := range course.FilterEnrollments(enrollments, f) {
			fmt.Fprintf(w, "%d\t%s\t%.0f%%\t%t\n", e.CourseID, e.CourseTitle, e.ProgressPercentage, e.IsCompleted)
		}
		return w.Flush()
	})
	return cmd
}

func (cli *commandLine) themeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [dark|light|toggle]",
		Short:     "Show or change the theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"dark", "light", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			theme, err := cli.applyTheme(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "theme: %s\n", theme)
			return nil
		},
	}
}

func (cli *commandLine) applyTheme(ctx context.Context, args []string) (settings.Theme, error) {
	if len(args) == 0 {
		return cli.themes.Load(ctx)
	}
	if args[0] == "toggle" {
		return cli.themes.Toggle(ctx)
	}
	theme, err := settings.ParseTheme(args[0])
	if err != nil {
		return "", err
	}
	return theme, cli.themes.Set(ctx, theme)
}
