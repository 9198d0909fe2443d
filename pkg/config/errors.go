package config

import (
	"errors"
	"fmt"
)

// Kind classifies interpreter errors.
type Kind string

const (
	// KindParse is a malformed statement: bad syntax, a statement shape
	// other than assignment or macro call, multiple assignment.
	KindParse Kind = "parse"

	// KindSafety is an expression outside the safe grammar.
	KindSafety Kind = "safety"

	// KindReservedName is an assignment to a reserved control name or to
	// the name of a registered safe function.
	KindReservedName Kind = "reserved_name"

	// KindStructural is a control binding with the wrong literal shape.
	KindStructural Kind = "structural"

	// KindDuplicateRegistration is a registry name collision.
	KindDuplicateRegistration Kind = "duplicate_registration"

	// KindMissingBinding is a required binding absent after all sources
	// were executed.
	KindMissingBinding Kind = "missing_binding"

	// KindEvaluation is a failure while evaluating a safe expression:
	// an unbound identifier, a plugin error, a bad spread argument.
	KindEvaluation Kind = "evaluation"
)

// Sentinels for use with errors.Is. Matching compares Kind only.
var (
	ErrParse                 = &Error{Kind: KindParse}
	ErrSafety                = &Error{Kind: KindSafety}
	ErrReservedName          = &Error{Kind: KindReservedName}
	ErrStructural            = &Error{Kind: KindStructural}
	ErrDuplicateRegistration = &Error{Kind: KindDuplicateRegistration}
	ErrMissingBinding        = &Error{Kind: KindMissingBinding}
	ErrEvaluation            = &Error{Kind: KindEvaluation}
)

// Error is a classified interpreter error. Source and Line locate the
// offending statement or expression when known.
type Error struct {
	Kind    Kind
	Source  string
	Line    int
	Col     int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	switch {
	case e.Source != "" && e.Line > 0:
		return fmt.Sprintf("%s, l.%d: %s", e.Source, e.Line, msg)
	case e.Line > 0:
		return fmt.Sprintf("l.%d: %s", e.Line, msg)
	case e.Source != "":
		return fmt.Sprintf("%s: %s", e.Source, msg)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, pos Pos, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Line:    pos.Line,
		Col:     pos.Col,
		Message: fmt.Sprintf(format, args...),
	}
}

func wrapError(kind Kind, pos Pos, err error, format string, args ...interface{}) *Error {
	e := newError(kind, pos, format, args...)
	e.Err = err
	return e
}

// withSource stamps the source name on interpreter errors that do not
// carry one yet. Other errors are wrapped as evaluation errors.
func withSource(err error, source string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Source == "" {
			e.Source = source
		}
		return e
	}
	return &Error{Kind: KindEvaluation, Source: source, Err: err}
}

// KindOf returns the Kind of err, or the empty string when err is not an
// interpreter error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
