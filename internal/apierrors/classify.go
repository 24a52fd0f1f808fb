package apierrors

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"
)

// Classify maps a raw fault from the transport layer to a ServiceError.
// Priority order: already-classified errors pass through, then deadline
// expiry, then connection-level failures. Anything unrecognized becomes a
// network error carrying the original message so nothing is silently
// swallowed.
func Classify(err error) *ServiceError {
	if err == nil {
		return nil
	}

	if se, ok := AsServiceError(err); ok {
		return se
	}

	if isTimeout(err) {
		return NewTimeoutError("request deadline exceeded", err)
	}

	if isConnectionFailure(err) {
		return NewNetworkError("connection to upstream failed", err)
	}

	return NewNetworkError(err.Error(), err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func isConnectionFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
