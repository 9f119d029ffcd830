// Package errs defines the error kinds shared across the BTZen packages
// (§7 of the design: ConnectionError, ConfigurationError, DataReadError,
// DataWriteError, CallError, NotFound, BusError).
package errs

import "fmt"

// Kind classifies a BTZen error so callers can branch on it with
// errors.Is against the matching sentinel below, rather than comparing
// strings.
type Kind int

const (
	Connection Kind = iota
	Configuration
	DataRead
	DataWrite
	Call
	NotFound
	Bus
)

func (k Kind) String() string {
	switch k {
	case Connection:
		return "connection error"
	case Configuration:
		return "configuration error"
	case DataRead:
		return "data read error"
	case DataWrite:
		return "data write error"
	case Call:
		return "call error"
	case NotFound:
		return "not found"
	case Bus:
		return "bus error"
	default:
		return "error"
	}
}

// Error is a BTZen error tagged with a Kind, so callers can use
// errors.Is(err, errs.ErrConnection) etc. instead of matching text.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's Kind, so
// errors.Is(err, errs.ErrConnection) works for any *Error of that Kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*Error)
	return ok && sentinel.Kind == e.Kind && sentinel.Msg == ""
}

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind, wrapping an underlying cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Sentinels for errors.Is comparisons: errors.Is(err, errs.ErrNotFound).
var (
	ErrConnection   = &Error{Kind: Connection}
	ErrConfiguration = &Error{Kind: Configuration}
	ErrDataRead     = &Error{Kind: DataRead}
	ErrDataWrite    = &Error{Kind: DataWrite}
	ErrCall         = &Error{Kind: Call}
	ErrNotFound     = &Error{Kind: NotFound}
	ErrBus          = &Error{Kind: Bus}
)
