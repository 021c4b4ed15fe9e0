package errs

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidReference     = errors.New("invalid reference")
	ErrCaptureFailed        = errors.New("capture failed")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrExportUnavailable    = errors.New("export unavailable")
	ErrDimensionMismatch    = errors.New("dimension mismatch")
	ErrEncoding             = errors.New("encoding error")
)

var kinds = []error{
	ErrInvalidReference,
	ErrCaptureFailed,
	ErrAuthenticationFailed,
	ErrExportUnavailable,
	ErrDimensionMismatch,
	ErrEncoding,
}

// Error reports a failed comparison run together with the source reference
// that caused it. errors.Is matches both Kind and the underlying cause.
type Error struct {
	Kind   error
	Source string
	Err    error
}

func New(kind error, source string, err error) error {
	return &Error{
		Kind:   kind,
		Source: source,
		Err:    err,
	}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Source != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Source)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the taxonomy sentinel carried by err, or nil.
func KindOf(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// SourceOf returns the source reference of the outermost *Error in err.
func SourceOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Source
	}
	return ""
}

// WithSource fills in the source reference of err when it carries an *Error
// that has none yet.
func WithSource(err error, source string) error {
	var e *Error
	if errors.As(err, &e) && e.Source == "" {
		return &Error{
			Kind:   e.Kind,
			Source: source,
			Err:    e.Err,
		}
	}
	return err
}
