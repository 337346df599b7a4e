// Package storage writes downloaded artifacts through gocloud.dev/blob,
// so the same engine can target a local directory, S3, or an in-memory
// bucket in tests. Keys are the deterministic per-chunk artifact names
// chosen by the engine.
package storage
