package lecture

import "time"

type Course struct {
	ID            string
	Name          string
	Code          string
	ThemeColorHex string
	Icon          string
	CreatedAt     time.Time
	Lectures      int
}

// CourseInput is the user-supplied part of a course.
type CourseInput struct {
	Name          string `validate:"required,max=120"`
	Code          string `validate:"max=32"`
	ThemeColorHex string `validate:"omitempty,hexcolor6"`
	Icon          string `validate:"max=64"`
}

type Tag struct {
	ID       string
	Name     string
	ColorHex string
}

type Lecture struct {
	ID        string
	CourseID  string
	Title     string
	Duration  string
	Summary   string
	CreatedAt time.Time
	Tags      []Tag
}
