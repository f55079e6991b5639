package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/lecturenote/lecturenote/internal/lecture"
)

// WriteDraft prints an unsaved lecture in a plain text layout.
func WriteDraft(w io.Writer, courseName string, draft lecture.Draft) error {
	var b strings.Builder
	title := draft.Title
	if title == "" {
		title = "(untitled lecture)"
	}
	fmt.Fprintf(&b, "%s\n", title)
	if courseName != "" {
		fmt.Fprintf(&b, "course:   %s\n", courseName)
	}
	fmt.Fprintf(&b, "duration: %s\n", draft.Duration)
	if draft.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", draft.Summary)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteLecture prints a saved lecture as one list entry.
func WriteLecture(w io.Writer, l lecture.Lecture) error {
	names := make([]string, 0, len(l.Tags))
	for _, tag := range l.Tags {
		names = append(names, "#"+tag.Name)
	}
	line := fmt.Sprintf("%s  %s  %s", l.ID, l.Duration, l.Title)
	if len(names) > 0 {
		line += "  " + strings.Join(names, " ")
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	if summary := strings.TrimSpace(l.Summary); summary != "" {
		_, err := fmt.Fprintf(w, "    %s\n", truncate(summary, 100))
		return err
	}
	return nil
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
