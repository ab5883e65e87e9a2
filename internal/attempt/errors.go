package attempt

import (
	"errors"
	"strings"
	"syscall"
)

// IsBlockedError reports whether err looks like the network refusing or
// dropping the route to the API, as opposed to a failure of the request
// itself. It only affects how an attempt is reported; every failed attempt
// rotates to the next method.
func IsBlockedError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EHOSTUNREACH,
			syscall.ENETUNREACH,
			syscall.ECONNREFUSED,
			syscall.ECONNRESET:
			return true
		}
	}

	// Proxy libraries often flatten the errno into the message.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no route to host") ||
		strings.Contains(msg, "network is unreachable") ||
		strings.Contains(msg, "host is unreachable") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset by peer")
}
