package app

import (
	"context"
	"fmt"

	"github.com/lecturenote/lecturenote/internal/cli"
	"github.com/lecturenote/lecturenote/internal/config"
	"github.com/lecturenote/lecturenote/internal/lecture"
	"github.com/lecturenote/lecturenote/internal/output"
)

// withLibrary opens the lecture library for one command.
func (r Runner) withLibrary(ctx context.Context, cfg config.Config, fn func(*lecture.Store) error) int {
	path, err := config.ResolveLibraryPath(cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	store, err := lecture.Open(ctx, path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer store.Close()

	if err := fn(store); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (r Runner) commandLibrary(ctx context.Context, store *lecture.Store, parsed cli.Parsed) error {
	switch parsed.Command {
	case cli.CommandCourses:
		return r.listCourses(ctx, store)
	case cli.CommandCourse:
		if parsed.Action == "rm" {
			if err := store.DeleteCourse(ctx, parsed.Args[0]); err != nil {
				return err
			}
			fmt.Fprintf(r.Stdout, "deleted course %s\n", parsed.Args[0])
			return nil
		}
		return r.addCourse(ctx, store, parsed.Args)
	case cli.CommandLectures:
		return r.listLectures(ctx, store, parsed.Args[0])
	case cli.CommandLecture:
		if err := store.DeleteLecture(ctx, parsed.Args[0]); err != nil {
			return err
		}
		fmt.Fprintf(r.Stdout, "deleted lecture %s\n", parsed.Args[0])
		return nil
	case cli.CommandTags:
		return r.listTags(ctx, store)
	case cli.CommandTag:
		if parsed.Action == "rm" {
			if err := store.DeleteTag(ctx, parsed.Args[0]); err != nil {
				return err
			}
			fmt.Fprintf(r.Stdout, "deleted tag %s\n", parsed.Args[0])
			return nil
		}
		color := ""
		if len(parsed.Args) > 1 {
			color = parsed.Args[1]
		}
		tag, err := store.CreateTag(ctx, parsed.Args[0], color)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.Stdout, "%s  %s  %s\n", tag.ID, tag.ColorHex, tag.Name)
		return nil
	default:
		return fmt.Errorf("unsupported library command %q", parsed.Command)
	}
}

func (r Runner) addCourse(ctx context.Context, store *lecture.Store, args []string) error {
	input := lecture.CourseInput{Name: args[0]}
	if len(args) > 1 {
		input.Code = args[1]
	}
	if len(args) > 2 {
		input.ThemeColorHex = args[2]
	}
	if len(args) > 3 {
		input.Icon = args[3]
	}
	course, err := store.CreateCourse(ctx, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.Stdout, "%s  %s  %s\n", course.ID, course.ThemeColorHex, course.Name)
	return nil
}

func (r Runner) listCourses(ctx context.Context, store *lecture.Store) error {
	courses, err := store.ListCourses(ctx)
	if err != nil {
		return err
	}
	if len(courses) == 0 {
		fmt.Fprintln(r.Stdout, "no courses yet; add one with `lecturenote course add NAME`")
		return nil
	}
	for _, course := range courses {
		name := course.Name
		if course.Code != "" {
			name = fmt.Sprintf("%s [%s]", course.Name, course.Code)
		}
		fmt.Fprintf(r.Stdout, "%s  %s  %s  (%d lectures)\n", course.ID, course.ThemeColorHex, name, course.Lectures)
	}
	return nil
}

func (r Runner) listLectures(ctx context.Context, store *lecture.Store, courseID string) error {
	if _, err := store.Course(ctx, courseID); err != nil {
		return err
	}
	lectures, err := store.ListLectures(ctx, courseID)
	if err != nil {
		return err
	}
	if len(lectures) == 0 {
		fmt.Fprintln(r.Stdout, "no lectures yet")
		return nil
	}
	for _, l := range lectures {
		if err := output.WriteLecture(r.Stdout, l); err != nil {
			return err
		}
	}
	return nil
}

func (r Runner) listTags(ctx context.Context, store *lecture.Store) error {
	tags, err := store.ListTags(ctx)
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		fmt.Fprintln(r.Stdout, "no tags yet")
		return nil
	}
	for _, tag := range tags {
		fmt.Fprintf(r.Stdout, "%s  %s  %s\n", tag.ID, tag.ColorHex, tag.Name)
	}
	return nil
}
