package lecture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrUnknownTag = errors.New("unknown tag")
)

const schema = `
CREATE TABLE IF NOT EXISTS courses (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	code TEXT NOT NULL DEFAULT '',
	theme_color_hex TEXT NOT NULL,
	icon TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS lectures (
	id TEXT PRIMARY KEY,
	course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	duration TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	color_hex TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS lecture_tags (
	lecture_id TEXT NOT NULL REFERENCES lectures(id) ON DELETE CASCADE,
	tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (lecture_id, tag_id)
);

CREATE INDEX IF NOT EXISTS lectures_by_course ON lectures(course_id, created_at);
`

// Store is the lecture library.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the library at path. ":memory:" opens a private
// in-memory library.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create library dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	// Pragmas are per connection; one connection keeps them and ":memory:" consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateCourse validates input and inserts a course. A blank color becomes
// DefaultThemeColor.
func (s *Store) CreateCourse(ctx context.Context, input CourseInput) (Course, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Code = strings.TrimSpace(input.Code)
	input.Icon = strings.TrimSpace(input.Icon)
	if err := validatorInstance().Struct(input); err != nil {
		return Course{}, fmt.Errorf("invalid course: %w", err)
	}

	color := DefaultThemeColor
	if strings.TrimSpace(input.ThemeColorHex) != "" {
		normalized, err := NormalizeHex(input.ThemeColorHex)
		if err != nil {
			return Course{}, err
		}
		color = normalized
	}

	course := Course{
		ID:            uuid.NewString(),
		Name:          input.Name,
		Code:          input.Code,
		ThemeColorHex: color,
		Icon:          input.Icon,
		CreatedAt:     s.now().UTC().Truncate(time.Millisecond),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO courses (id, name, code, theme_color_hex, icon, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, course.ID, course.Name, course.Code, course.ThemeColorHex, course.Icon, course.CreatedAt.UnixMilli())
	if err != nil {
		return Course{}, fmt.Errorf("insert course: %w", err)
	}
	return course, nil
}

// Course returns one course with its lecture count.
func (s *Store) Course(ctx context.Context, id string) (Course, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.name, c.code, c.theme_color_hex, c.icon, c.created_at,
			(SELECT COUNT(*) FROM lectures l WHERE l.course_id = c.id)
		FROM courses c
		WHERE c.id = ?
	`, id)
	course, err := scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	return course, err
}

// ListCourses returns courses oldest first.
func (s *Store) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.code, c.theme_color_hex, c.icon, c.created_at,
			(SELECT COUNT(*) FROM lectures l WHERE l.course_id = c.id)
		FROM courses c
		ORDER BY c.created_at ASC, c.name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCourse(row scanner) (Course, error) {
	var (
		course    Course
		createdAt int64
	)
	if err := row.Scan(&course.ID, &course.Name, &course.Code, &course.ThemeColorHex,
		&course.Icon, &createdAt, &course.Lectures); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, err
		}
		return Course{}, fmt.Errorf("scan course: %w", err)
	}
	course.CreatedAt = time.UnixMilli(createdAt).UTC()
	return course, nil
}

// DeleteCourse removes a course and its lectures. Tags are kept.
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "courses", id)
}

// CreateTag inserts a tag. name is trimmed and must not be empty.
func (s *Store) CreateTag(ctx context.Context, name, colorHex string) (Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tag{}, errors.New("tag name is required")
	}
	if strings.TrimSpace(colorHex) == "" {
		colorHex = DefaultThemeColor
	}
	color, err := NormalizeHex(colorHex)
	if err != nil {
		return Tag{}, err
	}

	tag := Tag{ID: uuid.NewString(), Name: name, ColorHex: color}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO tags (id, name, color_hex) VALUES (?, ?, ?)`,
		tag.ID, tag.Name, tag.ColorHex); err != nil {
		return Tag{}, fmt.Errorf("insert tag: %w", err)
	}
	return tag, nil
}

// ListTags returns every tag sorted by name.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color_hex FROM tags ORDER BY name COLLATE NOCASE ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.ColorHex); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// DeleteTag removes a tag from the library and from every lecture.
func (s *Store) DeleteTag(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "tags", id)
}

// SaveLecture stores draft under courseID in one transaction.
func (s *Store) SaveLecture(ctx context.Context, courseID string, draft Draft) (Lecture, error) {
	if err := validatorInstance().Struct(draft); err != nil {
		return Lecture{}, fmt.Errorf("invalid lecture: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Lecture{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses WHERE id = ?`, courseID).Scan(&exists); err != nil {
		return Lecture{}, fmt.Errorf("lookup course: %w", err)
	}
	if exists == 0 {
		return Lecture{}, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}

	lecture := Lecture{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		Title:     draft.Title,
		Duration:  draft.Duration,
		Summary:   draft.Summary,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO lectures (id, course_id, title, duration, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, lecture.ID, lecture.CourseID, lecture.Title, lecture.Duration, lecture.Summary, lecture.CreatedAt.UnixMilli()); err != nil {
		return Lecture{}, fmt.Errorf("insert lecture: %w", err)
	}

	seen := make(map[string]bool, len(draft.TagIDs))
	for _, tagID := range draft.TagIDs {
		if seen[tagID] {
			continue
		}
		seen[tagID] = true

		var tag Tag
		err := tx.QueryRowContext(ctx, `SELECT id, name, color_hex FROM tags WHERE id = ?`, tagID).
			Scan(&tag.ID, &tag.Name, &tag.ColorHex)
		if errors.Is(err, sql.ErrNoRows) {
			return Lecture{}, fmt.Errorf("%w: %s", ErrUnknownTag, tagID)
		}
		if err != nil {
			return Lecture{}, fmt.Errorf("lookup tag: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO lecture_tags (lecture_id, tag_id) VALUES (?, ?)`,
			lecture.ID, tag.ID); err != nil {
			return Lecture{}, fmt.Errorf("attach tag: %w", err)
		}
		lecture.Tags = append(lecture.Tags, tag)
	}

	if err := tx.Commit(); err != nil {
		return Lecture{}, fmt.Errorf("commit: %w", err)
	}
	sortTags(lecture.Tags)
	return lecture, nil
}

// ListLectures returns a course's lectures newest first, with tags.
func (s *Store) ListLectures(ctx context.Context, courseID string) ([]Lecture, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, course_id, title, duration, summary, created_at
		FROM lectures
		WHERE course_id = ?
		ORDER BY created_at DESC, id ASC
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("query lectures: %w", err)
	}

	var (
		lectures []Lecture
		index    = map[string]int{}
	)
	for rows.Next() {
		var (
			lecture   Lecture
			createdAt int64
		)
		if err := rows.Scan(&lecture.ID, &lecture.CourseID, &lecture.Title, &lecture.Duration,
			&lecture.Summary, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan lecture: %w", err)
		}
		lecture.CreatedAt = time.UnixMilli(createdAt).UTC()
		index[lecture.ID] = len(lectures)
		lectures = append(lectures, lecture)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	tagRows, err := s.db.QueryContext(ctx, `
		SELECT lt.lecture_id, t.id, t.name, t.color_hex
		FROM lecture_tags lt
		JOIN tags t ON t.id = lt.tag_id
		JOIN lectures l ON l.id = lt.lecture_id
		WHERE l.course_id = ?
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("query lecture tags: %w", err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var (
			lectureID string
			tag       Tag
		)
		if err := tagRows.Scan(&lectureID, &tag.ID, &tag.Name, &tag.ColorHex); err != nil {
			return nil, fmt.Errorf("scan lecture tag: %w", err)
		}
		if i, ok := index[lectureID]; ok {
			lectures[i].Tags = append(lectures[i].Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, err
	}

	for i := range lectures {
		sortTags(lectures[i].Tags)
	}
	return lectures, nil
}

// DeleteLecture removes one lecture.
func (s *Store) DeleteLecture(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "lectures", id)
}

func (s *Store) deleteByID(ctx context.Context, table, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), id, ErrNotFound)
	}
	return nil
}

func sortTags(tags []Tag) {
	sort.Slice(tags, func(i, j int) bool {
		a, b := strings.ToLower(tags[i].Name), strings.ToLower(tags[j].Name)
		if a != b {
			return a < b
		}
		return tags[i].ID < tags[j].ID
	})
}
