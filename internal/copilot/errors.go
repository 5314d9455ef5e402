package copilot

import (
	"errors"
	"strings"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
)

// The server does not expose a typed error taxonomy, so authentication
// failures are recognized from error text. Fragile, and kept on purpose:
// structured codes are attached here at the boundary so callers can match
// on the code instead of the text.
var authKeywords = []string{"auth", "login", "unauthorized"}

func isAuthMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, kw := range authKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func codeForMessage(msg string) errbuilder.ErrCode {
	if isAuthMessage(msg) {
		return errbuilder.CodeUnauthenticated
	}
	return errbuilder.CodeUnavailable
}

func codeForRPCError(e *rpcError) errbuilder.ErrCode {
	return codeForMessage(e.Message)
}

// IsAuthError reports whether err looks like an authentication failure,
// preferring the structured code and falling back to keyword matching for
// opaque errors.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var eb *errbuilder.ErrBuilder
	if errors.As(err, &eb) && eb.Code == errbuilder.CodeUnauthenticated {
		return true
	}
	return isAuthMessage(err.Error())
}
