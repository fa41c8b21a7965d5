package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies errors into the buckets the CLI reports on.
type Kind int

const (
	KindInternal Kind = iota // Unclassified failure.
	KindConfig               // Missing or invalid configuration / credentials.
	KindNetwork              // Transport failure talking to a remote service.
	KindAuth                 // Remote service rejected the credentials.
	KindMismatch             // Row counts differ.
	KindNotFound             // Expected remote object (table, dataset) is absent.
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "CONFIGURATION"
	case KindNetwork:
		return "NETWORK"
	case KindAuth:
		return "AUTHENTICATION"
	case KindMismatch:
		return "MISMATCH"
	case KindNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}

// Fatal reports whether an error of this kind aborts the running command.
// Mismatch and NotFound are collected per dataset instead.
func (k Kind) Fatal() bool {
	switch k {
	case KindConfig, KindNetwork, KindAuth:
		return true
	default:
		return false
	}
}

// ExitCode maps a kind to the process exit status.
func (k Kind) ExitCode() int {
	switch k {
	case KindConfig:
		return 2
	case KindNetwork, KindAuth:
		return 3
	default:
		return 1
	}
}

// Error carries a kind, an operator-facing message and an optional cause.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.err != nil:
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	case e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	default:
		return e.kind.String()
	}
}

func (e *Error) Kind() Kind {
	return e.kind
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is matches another *Error by kind, so errors.Is(err, apperr.NotFound) works
// regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.msg == "" && t.err == nil && t.kind == e.kind
}

// Sentinels for errors.Is checks.
var (
	Config   = &Error{kind: KindConfig}
	Network  = &Error{kind: KindNetwork}
	Auth     = &Error{kind: KindAuth}
	Mismatch = &Error{kind: KindMismatch}
	NotFound = &Error{kind: KindNotFound}
)

func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to err. A nil err yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: msg, err: err}
}

func Wrapf(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}
