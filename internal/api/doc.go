// Package api is the HTTP client for the ISMR query tool.
//
// Two endpoints matter: the token exchange (email/password in, bearer
// token out) and the data endpoint (station, data type, time range in,
// bundle reference or artifact bytes out). The client does no retrying of
// its own; it surfaces each outcome as a typed error and leaves pacing
// and retry decisions to the fetch engine.
//
// Status codes the engine cares about each have a sentinel error
// (ErrUnauthorized, ErrNoData, ErrThrottled, ErrMaintenance); everything
// else comes back as a StatusError. Classify collapses any error from
// this package into the Status taxonomy the retry policy is keyed on.
package api
