// Package ratelimit bounds the outbound request rate to the ISMR API.
//
// The query tool enforces a per-account requests-per-minute ceiling; a
// burst of parallel workers would trip it immediately. The limiter spaces
// requests evenly (60s / N between grants) on top of golang.org/x/time/rate,
// which keeps any rolling 60-second window at or below N requests.
package ratelimit
