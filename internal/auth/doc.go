// Package auth manages the bearer token for the ISMR query API.
//
// The API issues short-lived tokens from an email/password exchange.
// Store owns the current token and a small JSON cache file, so repeated
// runs reuse a live token instead of re-authenticating.
//
// Refreshes are coalesced with singleflight: when many workers hit an
// expired token at once, exactly one exchange runs and every waiter
// receives its result. The cache file is only ever written by the store,
// atomically, before the new token is handed to any caller.
//
// Authentication failure is fatal for the run; callers detect it with
// errors.Is(err, ErrAuthFailed).
package auth
