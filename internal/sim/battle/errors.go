package battle

import (
	"errors"
	"fmt"
)

// Kinds of generation failure. Every fatal error returned by map generation or
// deployment wraps exactly one of these.
var (
	ErrFormat        = errors.New("format error")
	ErrConfiguration = errors.New("configuration error")
	ErrPlacement     = errors.New("placement exhausted")
)

// GenerationError carries a human-readable diagnostic for a failed generation pass.
type GenerationError struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *GenerationError) Error() string {
	s := e.Kind.Error()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *GenerationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Formatf(op, format string, args ...any) error {
	return &GenerationError{Kind: ErrFormat, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func FormatWrap(op string, err error, format string, args ...any) error {
	return &GenerationError{Kind: ErrFormat, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Configf(op, format string, args ...any) error {
	return &GenerationError{Kind: ErrConfiguration, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Placementf(op, format string, args ...any) error {
	return &GenerationError{Kind: ErrPlacement, Op: op, Msg: fmt.Sprintf(format, args...)}
}
