package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/gustavoatec2-lang/havencomics/internal/fetch"
	"github.com/gustavoatec2-lang/havencomics/internal/repository"
)

type Kind string

const (
	KindTransient     Kind = "transient"
	KindZeroResults   Kind = "zero_results"
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindPartial       Kind = "partial"
	KindConflict      Kind = "conflict"
	KindBusy          Kind = "busy"
	KindCancelled     Kind = "cancelled"
	KindInternal      Kind = "internal"
)

// Error is returned by every pipeline operation. Message is meant for the
// operator; Err keeps the underlying cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err. Errors that did not come from the
// pipeline are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pipelineErr *Error
	if errors.As(err, &pipelineErr) {
		return pipelineErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ItemFailure is attached to one chapter of a batch without aborting it.
type ItemFailure struct {
	Chapter float64 `json:"chapter"`
	Kind    Kind    `json:"kind"`
	Message string  `json:"message"`
}

func newError(kind Kind, op string, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func validationError(op string, format string, args ...any) *Error {
	return newError(KindValidation, op, fmt.Sprintf(format, args...), nil)
}

// classify maps a lower layer failure onto a kind.
func classify(err error) Kind {
	var statusErr *fetch.StatusError
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, repository.ErrChapterExists), errors.Is(err, repository.ErrMangaExists):
		return KindConflict
	case errors.Is(err, fetch.ErrRetriesExhausted), errors.Is(err, context.DeadlineExceeded), errors.As(err, &statusErr):
		return KindTransient
	default:
		return KindInternal
	}
}

func wrap(op string, message string, err error) *Error {
	return newError(classify(err), op, message, err)
}
