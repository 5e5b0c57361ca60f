package service

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

type ErrorType int

const (
	ErrFileNotFound ErrorType = iota
	ErrFileRead
	ErrFileWrite
	ErrParse
	ErrAPI
	ErrValidation
	ErrConfig
	ErrNetwork
	ErrGeneration
	ErrUnknown
)

var errorTypeNames = [...]string{
	ErrFileNotFound: "FileNotFound",
	ErrFileRead:     "FileRead",
	ErrFileWrite:    "FileWrite",
	ErrParse:        "Parse",
	ErrAPI:          "API",
	ErrValidation:   "Validation",
	ErrConfig:       "Config",
	ErrNetwork:      "Network",
	ErrGeneration:   "Generation",
	ErrUnknown:      "Unknown",
}

func (t ErrorType) String() string {
	if t < 0 || int(t) >= len(errorTypeNames) {
		return "Unknown"
	}
	return errorTypeNames[t]
}

// EdQAError classifies a failure so callers can map it to an exit message
// or an HTTP status.
type EdQAError struct {
	Type    ErrorType
	Message string
	Fields  map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *EdQAError {
	return &EdQAError{Type: errorType, Message: message}
}

func WrapError(err error, errorType ErrorType, message string) *EdQAError {
	return &EdQAError{Type: errorType, Message: message, Cause: err}
}

// With attaches a key/value shown in Error, e.g. the offending path.
func (e *EdQAError) With(key string, value any) *EdQAError {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

func (e *EdQAError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Type, e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
		}
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *EdQAError) Unwrap() error {
	return e.Cause
}

// TypeOf returns the type of the first EdQAError in err's chain, or
// ErrUnknown.
func TypeOf(err error) ErrorType {
	var edErr *EdQAError
	if errors.As(err, &edErr) {
		return edErr.Type
	}
	return ErrUnknown
}

func IsErrorType(err error, errorType ErrorType) bool {
	var edErr *EdQAError
	return errors.As(err, &edErr) && edErr.Type == errorType
}

// Hint suggests a fix for err, for command line output. It is empty for
// errors without a known type.
func Hint(err error) string {
	var edErr *EdQAError
	if !errors.As(err, &edErr) {
		return ""
	}
	switch edErr.Type {
	case ErrFileNotFound, ErrFileRead:
		return "check the caption file path and its permissions"
	case ErrValidation:
		return "pass a YouTube URL, captions or a caption file inside CAPTION_DIR, and positive counts"
	case ErrParse:
		return "captions must be SRT or WebVTT with HH:MM:SS,mmm timestamps"
	case ErrAPI:
		return "check LLM_API_KEY, LLM_API_URL and LLM_MODEL"
	case ErrNetwork:
		return "the model endpoint did not answer in time; check connectivity or raise LLM_TIMEOUT"
	case ErrGeneration:
		return "the model reply could not be turned into questions; retry or lower QUIZ_CONCURRENCY"
	case ErrConfig:
		return "check the environment and the runtime settings file"
	default:
		return ""
	}
}
