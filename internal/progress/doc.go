// Package progress provides a live progress display for runs.
//
// The Reporter implements engine.Sink, so it is wired into a run the
// same way as the log sink and counts chunk outcomes as they arrive.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    TotalChunks: numChunks,
//	    Workers:     workers,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
// # Output Format
//
//	[ismr] Chunks: 48 | Workers: 4
//	[ismr] Progress: 62% | 30/48 chunks | 1.13 GB | failed: 1
//	[ismr] Done: 28 downloaded | 1 skipped | 0 no-data | 1 failed | 1.13 GB in 4m 12s
package progress
