// Package lecture stores courses, lectures, and tags in a local SQLite library.
package lecture

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lecturenote/lecturenote/internal/transcript"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("hexcolor6", func(fl validator.FieldLevel) bool {
			_, err := NormalizeHex(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Draft is a finished recording ready to be saved.
type Draft struct {
	Title    string `validate:"required,max=200"`
	Duration string `validate:"required"`
	Summary  string
	TagIDs   []string `validate:"dive,uuid"`
}

// NewDraft builds a draft from a stopped session. A blank summary falls back
// to the transcript.
func NewDraft(title string, elapsed time.Duration, summary, text string, tagIDs []string) (Draft, error) {
	draft := Draft{
		Title:    strings.TrimSpace(title),
		Duration: FormatDuration(elapsed),
		Summary:  strings.TrimSpace(summary),
		TagIDs:   tagIDs,
	}
	if draft.Summary == "" {
		draft.Summary = transcript.Normalize(text)
	}
	if err := validatorInstance().Struct(draft); err != nil {
		return Draft{}, fmt.Errorf("invalid lecture: %w", err)
	}
	return draft, nil
}

// FormatDuration renders elapsed as MM:SS with total minutes, so 75m3s is "75:03".
func FormatDuration(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	seconds := int(elapsed / time.Second)
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
