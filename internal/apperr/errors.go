// Package apperr defines sentinel errors and the tagged sync failure value.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNetwork        = errors.New("network failure")
	ErrReadFile       = errors.New("read failure")
	ErrEmptyResult    = errors.New("empty result")
	ErrInvalidVersion = errors.New("invalid version")
	ErrCache          = errors.New("cache failure")
)

// Codes used when no HTTP status applies.
const (
	CodeTransport      = -1
	CodeReadFile       = -2
	CodeEmptyResult    = -3
	CodeInvalidVersion = -4
	CodeCache          = -5
)

// User-facing messages.
const (
	MsgReadFile = "Can't access the github repository files."
	MsgNoTopics = "There are no topics to show."
)

// Failure is the single failure value surfaced by a sync attempt.
// Kind is one of the sentinel errors above.
type Failure struct {
	Kind    error  `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%v (%d): %s: %v", f.Kind, f.Code, f.Message, f.Err)
	}
	return fmt.Sprintf("%v (%d): %s", f.Kind, f.Code, f.Message)
}

// Is reports whether target is the failure kind.
func (f *Failure) Is(target error) bool {
	return f.Kind != nil && target == f.Kind
}

func (f *Failure) Unwrap() error { return f.Err }

// Network wraps a non-2xx response or transport error.
func Network(code int, msg string, err error) *Failure {
	return &Failure{Kind: ErrNetwork, Code: code, Message: msg, Err: err}
}

// ReadFile reports content that decoded to nothing.
func ReadFile(err error) *Failure {
	return &Failure{Kind: ErrReadFile, Code: CodeReadFile, Message: MsgReadFile, Err: err}
}

// EmptyResult reports a successful fetch that produced no items.
func EmptyResult(msg string) *Failure {
	if msg == "" {
		msg = MsgNoTopics
	}
	return &Failure{Kind: ErrEmptyResult, Code: CodeEmptyResult, Message: msg}
}

// InvalidVersion reports a version string that could not be parsed.
func InvalidVersion(err error) *Failure {
	return &Failure{Kind: ErrInvalidVersion, Code: CodeInvalidVersion, Message: "invalid version string", Err: err}
}

// Cache wraps a local store error.
func Cache(msg string, err error) *Failure {
	return &Failure{Kind: ErrCache, Code: CodeCache, Message: msg, Err: err}
}

// AsFailure returns err as a *Failure. Errors that are not failures
// are wrapped as cache failures since every remote path already tags its own.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return Cache(err.Error(), err)
}
