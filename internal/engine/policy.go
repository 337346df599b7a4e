package engine

import (
	"math/rand/v2"
	"time"

	"github.com/GEGE-UNESP/ismr-downloader/internal/api"
)

// Action is what the policy tells a worker to do after one attempt.
type Action int

const (
	// Complete: the chunk succeeded.
	Complete Action = iota

	// RecordNoData: the interval holds no data; terminal, not a failure.
	RecordNoData

	// Retry: wait Decision.Delay and attempt again.
	Retry

	// RefreshToken: force a token refresh, then attempt again at once.
	RefreshToken

	// FailChunk: give up on this chunk; the run continues.
	FailChunk

	// HaltRun: stop dispatching new chunks; in-flight work drains.
	HaltRun
)

func (a Action) String() string {
	switch a {
	case Complete:
		return "complete"
	case RecordNoData:
		return "record-no-data"
	case Retry:
		return "retry"
	case RefreshToken:
		return "refresh-token"
	case FailChunk:
		return "fail-chunk"
	default:
		return "halt-run"
	}
}

// Decision is one policy verdict.
type Decision struct {
	Action Action
	Delay  time.Duration
}

// Attempt carries the per-chunk retry state between policy calls. Owned
// by the worker processing the chunk; never shared.
type Attempt struct {
	Throttles int
	Timeouts  int
	Refreshed bool
}

// Policy maps an attempt's classified status to the next action. The
// table, per status:
//
//	ok           -> complete
//	no-data      -> record-no-data
//	unauthorized -> refresh token and retry once; a second 401 halts the run
//	throttled    -> exponential backoff with jitter, bounded attempts
//	maintenance  -> halt the run, drain in-flight work
//	timeout      -> fixed-delay retry, bounded attempts
//	fatal        -> fail the chunk, run continues
//
// Ceilings and delays are configuration, not constants; the upstream
// service never documented the right values.
type Policy struct {
	// ThrottleAttempts is the retry budget for 429 responses.
	ThrottleAttempts int

	// ThrottleBackoff is the initial backoff after a 429.
	ThrottleBackoff time.Duration

	// ThrottleMaxBackoff caps the exponential backoff.
	ThrottleMaxBackoff time.Duration

	// TimeoutAttempts is the retry budget for timeouts.
	TimeoutAttempts int

	// TimeoutDelay is the fixed wait between timeout retries.
	TimeoutDelay time.Duration

	// jitter overrides the backoff jitter factor, for tests.
	jitter func() float64
}

// DefaultPolicy returns a policy with the defaults used by the CLI.
func DefaultPolicy() Policy {
	return Policy{
		ThrottleAttempts:   5,
		ThrottleBackoff:    time.Second,
		ThrottleMaxBackoff: 30 * time.Second,
		TimeoutAttempts:    3,
		TimeoutDelay:       5 * time.Second,
	}
}

// Decide advances the attempt state and returns the next action.
func (p Policy) Decide(status api.Status, a *Attempt) Decision {
	switch status {
	case api.StatusOK:
		return Decision{Action: Complete}

	case api.StatusNoData:
		return Decision{Action: RecordNoData}

	case api.StatusUnauthorized:
		if a.Refreshed {
			return Decision{Action: HaltRun}
		}
		a.Refreshed = true
		return Decision{Action: RefreshToken}

	case api.StatusThrottled:
		a.Throttles++
		if a.Throttles > p.ThrottleAttempts {
			return Decision{Action: FailChunk}
		}
		return Decision{Action: Retry, Delay: p.backoff(a.Throttles)}

	case api.StatusMaintenance:
		return Decision{Action: HaltRun}

	case api.StatusTimeout:
		a.Timeouts++
		if a.Timeouts > p.TimeoutAttempts {
			return Decision{Action: FailChunk}
		}
		return Decision{Action: Retry, Delay: p.TimeoutDelay}

	default:
		return Decision{Action: FailChunk}
	}
}

// backoff computes the nth throttle delay: exponential, capped, with a
// 0.5-1.5x jitter so parallel workers do not retry in lockstep.
func (p Policy) backoff(attempt int) time.Duration {
	d := p.ThrottleBackoff * time.Duration(1<<uint(attempt-1))
	if d > p.ThrottleMaxBackoff {
		d = p.ThrottleMaxBackoff
	}
	j := p.jitter
	if j == nil {
		j = rand.Float64
	}
	return time.Duration(float64(d) * (0.5 + j()))
}
