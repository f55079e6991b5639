package output

import (
	"strings"
	"testing"
	"time"

	"github.com/lecturenote/lecturenote/internal/lecture"
	"github.com/stretchr/testify/require"
)

func TestWriteDraft(t *testing.T) {
	var b strings.Builder
	err := WriteDraft(&b, "Calculus I", lecture.Draft{Duration: "75:03", Summary: "limits and continuity"})
	require.NoError(t, err)
	require.Equal(t, "(untitled lecture)\ncourse:   Calculus I\nduration: 75:03\n\nlimits and continuity\n", b.String())
}

func TestWriteLecture(t *testing.T) {
	var b strings.Builder
	l := lecture.Lecture{
		ID:        "6f1c",
		Title:     "Kinematics",
		Duration:  "50:00",
		Summary:   strings.Repeat("a", 120),
		CreatedAt: time.Now(),
		Tags:      []lecture.Tag{{Name: "basics"}, {Name: "exam"}},
	}
	require.NoError(t, WriteLecture(&b, l))

	lines := strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "6f1c  50:00  Kinematics  #basics #exam", lines[0])
	require.Equal(t, "    "+strings.Repeat("a", 99)+"…", lines[1])
}
