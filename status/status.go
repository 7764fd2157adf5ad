package status

import "strconv"

// Code is a libuv-style status code: 0 is success, negative values name an error class.
type Code int

const (
	OK            Code = 0
	EOF           Code = -4095
	UNKNOWN       Code = -4094
	EADDRINUSE    Code = -98
	EADDRNOTAVAIL Code = -99
	ECONNREFUSED  Code = -111
	ENOTCONN      Code = -107
	ECONNRESET    Code = -104
	ECONNABORTED  Code = -103
	EPIPE         Code = -32
	EBADF         Code = -9
	EINVAL        Code = -22
	ENOTSUP       Code = -95
	ETIMEDOUT     Code = -110
	EACCES        Code = -13
	EMFILE        Code = -24
	ENFILE        Code = -23
	ENOBUFS       Code = -105
	EHOSTUNREACH  Code = -113
	ENETUNREACH   Code = -101
	EAGAIN        Code = -11
	ECANCELED     Code = -125
	ENOMEM        Code = -12
	EISCONN       Code = -106
	EALREADY      Code = -114
)

var names = map[Code]string{
	OK:            "OK",
	EOF:           "EOF",
	UNKNOWN:       "UNKNOWN",
	EADDRINUSE:    "EADDRINUSE",
	EADDRNOTAVAIL: "EADDRNOTAVAIL",
	ECONNREFUSED:  "ECONNREFUSED",
	ENOTCONN:      "ENOTCONN",
	ECONNRESET:    "ECONNRESET",
	ECONNABORTED:  "ECONNABORTED",
	EPIPE:         "EPIPE",
	EBADF:         "EBADF",
	EINVAL:        "EINVAL",
	ENOTSUP:       "ENOTSUP",
	ETIMEDOUT:     "ETIMEDOUT",
	EACCES:        "EACCES",
	EMFILE:        "EMFILE",
	ENFILE:        "ENFILE",
	ENOBUFS:       "ENOBUFS",
	EHOSTUNREACH:  "EHOSTUNREACH",
	ENETUNREACH:   "ENETUNREACH",
	EAGAIN:        "EAGAIN",
	ECANCELED:     "ECANCELED",
	ENOMEM:        "ENOMEM",
	EISCONN:       "EISCONN",
	EALREADY:      "EALREADY",
}

var messages = map[Code]string{
	EOF:           "end of file",
	UNKNOWN:       "unknown error",
	EADDRINUSE:    "address already in use",
	EADDRNOTAVAIL: "address not available",
	ECONNREFUSED:  "connection refused",
	ENOTCONN:      "socket is not connected",
	ECONNRESET:    "connection reset by peer",
	ECONNABORTED:  "software caused connection abort",
	EPIPE:         "broken pipe",
	EBADF:         "bad file descriptor",
	EINVAL:        "invalid argument",
	ENOTSUP:       "operation not supported on socket",
	ETIMEDOUT:     "connection timed out",
	EACCES:        "permission denied",
	EMFILE:        "too many open files",
	ENFILE:        "file table overflow",
	ENOBUFS:       "no buffer space available",
	EHOSTUNREACH:  "host is unreachable",
	ENETUNREACH:   "network is unreachable",
	EAGAIN:        "resource temporarily unavailable",
	ECANCELED:     "operation canceled",
	ENOMEM:        "not enough memory",
	EISCONN:       "socket is already connected",
	EALREADY:      "connection already in progress",
}

// Name returns the symbolic name of the code, e.g. "EADDRINUSE".
func (c Code) Name() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "E" + strconv.Itoa(int(c))
}

// String implements fmt.Stringer.
func (c Code) String() string {
	return c.Name()
}

// Message returns the human-readable description of the code.
func (c Code) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	if c == OK {
		return "success"
	}
	return "unknown error " + strconv.Itoa(int(c))
}

// OK reports whether c signals success.
func (c Code) OK() bool { return c == OK }

// Err returns nil for OK and an *Error otherwise.
func (c Code) Err() error {
	if c >= 0 {
		return nil
	}
	return &Error{Code: c}
}

// Error carries a status code through Go error chains.
type Error struct {
	Code Code
}

func (e *Error) Error() string {
	return e.Code.Name() + ": " + e.Code.Message()
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}
