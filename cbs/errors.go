package cbs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies a script diagnostic.
type ErrorType int

const (
	// Lexical and syntactic.
	UnexpectedToken ErrorType = iota
	MissingToken
	CannotStartStatement
	UnsupportedSyntax

	// Semantic.
	InvalidArgument
	InvalidType
	MissingMember
	DuplicateIdentifier
	UndefinedIdentifier
	DivideByZero
	AssignToConstant
	InvalidAssignment
	NullReference
	IndexOutOfRange
	DoesNotStartWithVersion
	InvalidVersion
	InvalidCommand
	NotSupported
	NotIterable
	ArgumentCount

	// Call shape.
	NotCallable

	// Internal signals. These never reach Program.Errors.
	NotCompileTimeConstant
	BreakLoop
	ContinueLoop
	ReturnValue
)

var errorTypeNames = map[ErrorType]string{
	UnexpectedToken:         "UnexpectedToken",
	MissingToken:            "MissingToken",
	CannotStartStatement:    "CannotStartStatement",
	UnsupportedSyntax:       "UnsupportedSyntax",
	InvalidArgument:         "InvalidArgument",
	InvalidType:             "InvalidType",
	MissingMember:           "MissingMember",
	DuplicateIdentifier:     "DuplicateIdentifier",
	UndefinedIdentifier:     "UndefinedIdentifier",
	DivideByZero:            "DivideByZero",
	AssignToConstant:        "AssignToConstant",
	InvalidAssignment:       "InvalidAssignment",
	NullReference:           "NullReference",
	IndexOutOfRange:         "IndexOutOfRange",
	DoesNotStartWithVersion: "DoesNotStartWithVersion",
	InvalidVersion:          "InvalidVersion",
	InvalidCommand:          "InvalidCommand",
	NotSupported:            "NotSupported",
	NotIterable:             "NotIterable",
	ArgumentCount:           "ArgumentCount",
	NotCallable:             "NotCallable",
	NotCompileTimeConstant:  "NotCompileTimeConstant",
	BreakLoop:               "BreakLoop",
	ContinueLoop:            "ContinueLoop",
	ReturnValue:             "ReturnValue",
}

func (k ErrorType) String() string {
	if name, ok := errorTypeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorType(%d)", int(k))
}

// internal reports whether the kind is a control signal rather than a fault.
func (k ErrorType) internal() bool {
	switch k {
	case NotCompileTimeConstant, BreakLoop, ContinueLoop, ReturnValue:
		return true
	default:
		return false
	}
}

// Error is a single script diagnostic.
type Error struct {
	Kind    ErrorType
	Message string
	Pos     Position

	// value carries the result of a ReturnValue signal.
	value Value
}

func (e *Error) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%s at %d:%d: %s", e.Kind, e.Pos.Line, e.Pos.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches errors of the same kind so callers can use errors.Is with a
// template such as &Error{Kind: DivideByZero}.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

func newError(kind ErrorType, pos Position, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// Errorf builds a script error for host natives. The VM fills in the
// position of the failing call.
func Errorf(kind ErrorType, format string, args ...any) *Error {
	return newError(kind, Position{}, format, args...)
}

var (
	errNotConstant  = &Error{Kind: NotCompileTimeConstant, Message: "not a compile-time constant"}
	errBreakLoop    = &Error{Kind: BreakLoop, Message: "break outside loop"}
	errContinueLoop = &Error{Kind: ContinueLoop, Message: "continue outside loop"}
)

func returnSignal(v Value) *Error {
	return &Error{Kind: ReturnValue, Message: "return outside function", value: v}
}

// at fills in the position of an error produced without one.
func at(err error, pos Position) error {
	var se *Error
	if errors.As(err, &se) && se.Pos == (Position{}) && !se.Kind.internal() {
		copied := *se
		copied.Pos = pos
		return &copied
	}
	return err
}

// ErrorKind extracts the diagnostic kind from err. ok is false when err is
// not (and does not wrap) an *Error.
func ErrorKind(err error) (ErrorType, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

func isSignal(err error, kind ErrorType) bool {
	k, ok := ErrorKind(err)
	return ok && k == kind
}

// CompileError aggregates the diagnostics of a failed compilation.
type CompileError struct {
	Errors []*Error
	source string
}

func (ce *CompileError) Error() string {
	var b strings.Builder
	for i, err := range ce.Errors {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(err.Error())
		if frame := formatCodeFrame(ce.source, err.Pos); frame != "" {
			b.WriteString("\n")
			b.WriteString(frame)
		}
	}
	return b.String()
}

// Unwrap exposes the individual diagnostics to errors.Is / errors.As.
func (ce *CompileError) Unwrap() []error {
	out := make([]error, len(ce.Errors))
	for i, err := range ce.Errors {
		out[i] = err
	}
	return out
}

func newCompileError(source string, errs []*Error) *CompileError {
	return &CompileError{Errors: append([]*Error(nil), errs...), source: source}
}
