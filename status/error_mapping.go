package status

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// FromError converts Go net package errors to status codes.
// A nil error maps to OK, io.EOF to EOF, and anything unrecognized to UNKNOWN.
func FromError(err error) Code {
	if err == nil {
		return OK
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}

	if errors.Is(err, io.EOF) {
		return EOF
	}

	if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
		return EBADF
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return fromErrno(errno)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fromOpError(opErr)
	}

	var addrErr *net.AddrError
	if errors.As(err, &addrErr) {
		return EINVAL
	}

	if os.IsTimeout(err) {
		return ETIMEDOUT
	}

	if os.IsPermission(err) {
		return EACCES
	}

	return UNKNOWN
}

// fromOpError handles net.OpError values whose cause is not a syscall.Errno.
func fromOpError(opErr *net.OpError) Code {
	if opErr.Timeout() {
		return ETIMEDOUT
	}

	if opErr.Err != nil {
		switch opErr.Err.Error() {
		case "connection refused":
			return ECONNREFUSED
		case "connection reset", "connection reset by peer":
			return ECONNRESET
		case "broken pipe":
			return EPIPE
		case "network is unreachable":
			return ENETUNREACH
		case "host is unreachable", "no route to host":
			return EHOSTUNREACH
		case "address already in use":
			return EADDRINUSE
		case "cannot assign requested address":
			return EADDRNOTAVAIL
		}
	}

	return UNKNOWN
}

// fromErrno converts syscall.Errno to status codes.
func fromErrno(errno syscall.Errno) Code {
	switch errno {
	case syscall.EACCES, syscall.EPERM:
		return EACCES
	case syscall.EADDRINUSE:
		return EADDRINUSE
	case syscall.EADDRNOTAVAIL:
		return EADDRNOTAVAIL
	case syscall.ECONNREFUSED:
		return ECONNREFUSED
	case syscall.ECONNRESET:
		return ECONNRESET
	case syscall.ECONNABORTED:
		return ECONNABORTED
	case syscall.EPIPE:
		return EPIPE
	case syscall.EHOSTUNREACH:
		return EHOSTUNREACH
	case syscall.ENETUNREACH:
		return ENETUNREACH
	case syscall.ETIMEDOUT:
		return ETIMEDOUT
	case syscall.EINVAL:
		return EINVAL
	case syscall.ENOMEM:
		return ENOMEM
	case syscall.ENOBUFS:
		return ENOBUFS
	case syscall.EAGAIN:
		return EAGAIN
	case syscall.ENOTCONN:
		return ENOTCONN
	case syscall.EBADF:
		return EBADF
	case syscall.EMFILE:
		return EMFILE
	case syscall.ENFILE:
		return ENFILE
	case syscall.ECANCELED:
		return ECANCELED
	case syscall.EISCONN:
		return EISCONN
	case syscall.EALREADY:
		return EALREADY
	default:
		return UNKNOWN
	}
}

// Temporary reports whether the code describes a condition worth retrying:
// descriptor exhaustion, memory pressure, or a connection aborted before accept.
func (c Code) Temporary() bool {
	switch c {
	case EMFILE, ENFILE, ENOBUFS, ENOMEM, EAGAIN, ECONNABORTED, ECONNRESET:
		return true
	}
	return false
}
