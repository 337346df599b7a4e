// Package report turns engine events into run output: structured log
// lines, the per-run downloaded-files list, and the end-of-run summary
// block. The engine emits each chunk outcome exactly once; everything
// about on-disk formatting lives here.
package report
