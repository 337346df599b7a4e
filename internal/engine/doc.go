// Package engine is the download orchestration core.
//
// A RequestSpec (stations, data type, time range) expands into per-station
// chunks sized to the API's maximum query span. A bounded worker pool
// fetches them concurrently: each worker takes a rate-limiter slot, reads
// a valid bearer token, performs the HTTP exchange, and persists the
// artifact. A retry policy classifies every failed attempt and decides
// between backoff retry, token refresh, recording a no-data interval,
// failing the chunk, or halting the whole run.
//
// # Halting
//
// Chunk-scoped failures never stop sibling chunks. Only three conditions
// halt a run: the service reporting maintenance (503), a token rejected
// again right after a forced refresh, and a failed authentication
// exchange. A halt drains in-flight work and reports never-dispatched
// chunks as NotAttempted, so every chunk is accounted for exactly once.
//
// The pool's collaborators (token store, rate limiter, artifact store,
// API client) are passed in as interfaces; tests run the engine against
// fake backends and an in-memory bucket.
package engine
