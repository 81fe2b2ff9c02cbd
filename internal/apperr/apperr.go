// Package apperr is the error taxonomy shared by the core packages.
// Handlers map a Kind to an HTTP status; everything else only wraps.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUpstream
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	case KindState:
		return "state"
	}
	return "internal"
}

// Message is a user-facing text pair.
type Message struct {
	En string `json:"en"`
	Ar string `json:"ar"`
}

type Error struct {
	Kind Kind
	Code string // machine readable, e.g. "DISCOUNT_EXPIRED"
	Msg  Message
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(code, en, ar string) *Error {
	return &Error{Kind: KindValidation, Code: code, Msg: Message{En: en, Ar: ar}}
}

func NotFound(what string) *Error {
	return &Error{
		Kind: KindNotFound,
		Code: what + "_NOT_FOUND",
		Msg:  Message{En: what + " not found", Ar: "غير موجود"},
	}
}

func Conflict(code string, err error) *Error {
	return &Error{
		Kind: KindConflict,
		Code: code,
		Msg:  Message{En: "already exists", Ar: "موجود مسبقاً"},
		Err:  err,
	}
}

func Upstream(code string, err error) *Error {
	return &Error{
		Kind: KindUpstream,
		Code: code,
		Msg:  Message{En: "payment service unavailable, please try again", Ar: "خدمة الدفع غير متاحة، يرجى المحاولة مرة أخرى"},
		Err:  err,
	}
}

// State marks an attempted transition out of a terminal state. Callers treat it as a no-op.
func State(code string) *Error {
	return &Error{Kind: KindState, Code: code}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
