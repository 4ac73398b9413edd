package calc

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the stage that produced it.
type Kind uint8

const (
	// KindSyntax means the input is not a single parseable expression.
	KindSyntax Kind = iota + 1
	// KindUnsupported means the input parsed but uses something outside the whitelist.
	KindUnsupported
	// KindEvaluation means a whitelisted expression faulted while computing.
	KindEvaluation
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "SyntaxError"
	case KindUnsupported:
		return "UnsupportedExpression"
	case KindEvaluation:
		return "EvaluationError"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

var (
	ErrSyntax      = errors.New("syntax error")
	ErrUnsupported = errors.New("Unsupported expression")
	ErrEvaluation  = errors.New("evaluation error")
)

const unsupportedReason = "Unsupported expression"

// Error is the single error type returned by Parse, Eval and Evaluate.
//
// Reason is what callers see. Detail narrows it down for logs and is never
// part of Error(), so an unsupported construct always reads the same way
// no matter which construct it was.
type Error struct {
	Kind   Kind
	Reason string
	Detail string
	Offset int
}

func (e *Error) Error() string {
	return e.Reason
}

// Is lets errors.Is match on the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrSyntax:
		return e.Kind == KindSyntax
	case ErrUnsupported:
		return e.Kind == KindUnsupported
	case ErrEvaluation:
		return e.Kind == KindEvaluation
	}
	return false
}

func syntaxErrorf(offset int, format string, args ...any) *Error {
	return &Error{
		Kind:   KindSyntax,
		Reason: fmt.Sprintf(format, args...),
		Offset: offset,
	}
}

func unsupported(n Node, detail string) *Error {
	return &Error{
		Kind:   KindUnsupported,
		Reason: unsupportedReason,
		Detail: detail,
		Offset: n.Pos(),
	}
}

func evalError(n Node, reason string) *Error {
	return &Error{
		Kind:   KindEvaluation,
		Reason: reason,
		Offset: n.Pos(),
	}
}
