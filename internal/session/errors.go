package session

import (
	"errors"

	"github.com/lecturenote/lecturenote/internal/speech"
)

// ErrorCode identifies a session failure class.
type ErrorCode string

const (
	CodeNotAuthorizedToRecognize ErrorCode = "notAuthorizedToRecognize"
	CodeNotPermittedToRecord     ErrorCode = "notPermittedToRecord"
	CodeNilRecognizer            ErrorCode = "nilRecognizer"
	CodeRecognizerIsUnavailable  ErrorCode = "recognizerIsUnavailable"
)

var messages = map[ErrorCode]string{
	CodeNotAuthorizedToRecognize: "Not authorized to recognize speech",
	CodeNotPermittedToRecord:     "Not permitted to record audio",
	CodeNilRecognizer:            "Can't initialize speech recognizer",
	CodeRecognizerIsUnavailable:  "Recognizer is unavailable",
}

// ErrorInfo is the user-facing session error. Only the most recent one is kept.
type ErrorInfo struct {
	Code    ErrorCode
	Message string

	cause error
}

func newErrorInfo(code ErrorCode, cause error) *ErrorInfo {
	return &ErrorInfo{Code: code, Message: messages[code], cause: cause}
}

func (e *ErrorInfo) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.cause.Error()
}

func (e *ErrorInfo) Unwrap() error {
	return e.cause
}

// Is matches any *ErrorInfo with the same code.
func (e *ErrorInfo) Is(target error) bool {
	var other *ErrorInfo
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Sentinels usable with errors.Is.
var (
	ErrNotAuthorizedToRecognize = &ErrorInfo{Code: CodeNotAuthorizedToRecognize, Message: messages[CodeNotAuthorizedToRecognize]}
	ErrNotPermittedToRecord     = &ErrorInfo{Code: CodeNotPermittedToRecord, Message: messages[CodeNotPermittedToRecord]}
	ErrNilRecognizer            = &ErrorInfo{Code: CodeNilRecognizer, Message: messages[CodeNilRecognizer]}
	ErrRecognizerIsUnavailable  = &ErrorInfo{Code: CodeRecognizerIsUnavailable, Message: messages[CodeRecognizerIsUnavailable]}
)

// beginErrorCode classifies an Engine.Begin failure.
func beginErrorCode(err error) ErrorCode {
	if errors.Is(err, speech.ErrNilRecognizer) {
		return CodeNilRecognizer
	}
	return CodeRecognizerIsUnavailable
}
