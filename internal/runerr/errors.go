package runerr

import (
	"errors"
	"fmt"
)

// Kind classifies why a run stopped.
type Kind string

const (
	KindUnknown          Kind = "unknown"
	KindValidation       Kind = "validation"
	KindTransport        Kind = "transport"
	KindExtraction       Kind = "extraction"
	KindRanking          Kind = "ranking"
	KindDefinition       Kind = "definition"
	KindGeneration       Kind = "generation"
	KindKillEngaged      Kind = "kill_engaged"
	KindApprovalRequired Kind = "approval_required"
)

// Sentinels usable with errors.Is regardless of the wrapped cause.
var (
	ErrKillEngaged      = errors.New("kill switch engaged")
	ErrApprovalRequired = errors.New("approval required")
)

// Error wraps a cause with its Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrKillEngaged) match any kill-kinded error.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrKillEngaged:
		return e.Kind == KindKillEngaged
	case ErrApprovalRequired:
		return e.Kind == KindApprovalRequired
	}
	return false
}

// New wraps err with kind. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a kinded error from a format string.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func Validation(op string, err error) error { return New(KindValidation, op, err) }
func Transport(op string, err error) error  { return New(KindTransport, op, err) }

// KindOf reports the Kind of the outermost kinded error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsHalt reports whether err is an expected halting condition rather than a failure.
func IsHalt(err error) bool {
	switch KindOf(err) {
	case KindKillEngaged, KindApprovalRequired:
		return true
	}
	return false
}
