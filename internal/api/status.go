package api

import (
	"context"
	"errors"
	"net"
)

// Status classifies the outcome of one API attempt. The retry policy is
// keyed on these values rather than raw status codes, so transport-level
// failures and HTTP responses share one taxonomy.
type Status int

const (
	// StatusOK: the attempt succeeded.
	StatusOK Status = iota

	// StatusNoData: the API confirmed there is no data for the interval.
	StatusNoData

	// StatusUnauthorized: the token was rejected (401).
	StatusUnauthorized

	// StatusThrottled: the request was rate limited (429).
	StatusThrottled

	// StatusMaintenance: the service is down for maintenance (503).
	StatusMaintenance

	// StatusTimeout: the connection or read timed out.
	StatusTimeout

	// StatusFatal: any other failure; not worth retrying.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoData:
		return "no-data"
	case StatusUnauthorized:
		return "unauthorized"
	case StatusThrottled:
		return "throttled"
	case StatusMaintenance:
		return "maintenance"
	case StatusTimeout:
		return "timeout"
	default:
		return "fatal"
	}
}

// Classify maps an error from Do or FetchBundle to a Status.
func Classify(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNoData):
		return StatusNoData
	case errors.Is(err, ErrUnauthorized):
		return StatusUnauthorized
	case errors.Is(err, ErrThrottled):
		return StatusThrottled
	case errors.Is(err, ErrMaintenance):
		return StatusMaintenance
	case isTimeout(err):
		return StatusTimeout
	default:
		return StatusFatal
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
