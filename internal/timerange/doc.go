// Package timerange splits date ranges into API-sized query windows.
//
// The ISMR query API rejects requests spanning more than a maximum number
// of days, so a multi-month request has to be issued as a sequence of
// bounded sub-ranges. Split produces that sequence: contiguous, ordered,
// non-overlapping, covering the input exactly.
//
// The package also normalizes user-supplied instants: a bare date expands
// to the start (00:00:00) or end (23:59:59) of that day in UTC, while a
// full timestamp is taken as-is.
package timerange
