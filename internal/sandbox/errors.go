package sandbox

import (
	"errors"
	"fmt"
)

// Kind classifies a load or invocation failure.
type Kind int

// Failure kinds. The first group is produced while loading, the second while
// invoking a loaded unit.
const (
	KindInvalidSyntax Kind = iota + 1
	KindModuleNotAllowed
	KindModuleInit
	KindMissingEntryPoint
	KindNotCallable
	KindBadSignature

	KindInvocation
	KindTimeout
	KindStepLimit
)

var kindNames = map[Kind]string{
	KindInvalidSyntax:     "InvalidSyntax",
	KindModuleNotAllowed:  "ModuleNotAllowed",
	KindModuleInit:        "ModuleInit",
	KindMissingEntryPoint: "MissingEntryPoint",
	KindNotCallable:       "NotCallable",
	KindBadSignature:      "BadSignature",
	KindInvocation:        "Invocation",
	KindTimeout:           "Timeout",
	KindStepLimit:         "StepLimit",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrInvalidSyntax     = errors.New("invalid syntax")
	ErrModuleNotAllowed  = errors.New("module not allowed")
	ErrModuleInit        = errors.New("module initialization failed")
	ErrMissingEntryPoint = errors.New("missing entry point")
	ErrNotCallable       = errors.New("entry point not callable")
	ErrBadSignature      = errors.New("entry point has wrong signature")
	ErrInvocation        = errors.New("invocation failed")
	ErrTimeout           = errors.New("execution timed out")
	ErrStepLimit         = errors.New("execution step limit exceeded")
)

var sentinels = map[Kind]error{
	KindInvalidSyntax:     ErrInvalidSyntax,
	KindModuleNotAllowed:  ErrModuleNotAllowed,
	KindModuleInit:        ErrModuleInit,
	KindMissingEntryPoint: ErrMissingEntryPoint,
	KindNotCallable:       ErrNotCallable,
	KindBadSignature:      ErrBadSignature,
	KindInvocation:        ErrInvocation,
	KindTimeout:           ErrTimeout,
	KindStepLimit:         ErrStepLimit,
}

// Error is a load or invocation failure of generated code.
type Error struct {
	Kind  Kind
	Entry string // entry point name, e.g. "extract"
	Msg   string // human readable description, fed back to generation
	Err   error  // underlying interpreter error, if any
}

func (e *Error) Error() string {
	return e.Msg
}

// Unwrap exposes the interpreter error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the Kind's sentinel.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// IsLoad reports whether the failure happened before any invocation.
func (e *Error) IsLoad() bool {
	return e.Kind < KindInvocation
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func newError(kind Kind, entry string, err error, format string, args ...any) *Error {
	return &Error{
		Kind:  kind,
		Entry: entry,
		Msg:   fmt.Sprintf(format, args...),
		Err:   err,
	}
}
