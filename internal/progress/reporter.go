package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GEGE-UNESP/ismr-downloader/internal/engine"
)

// Options configures the progress reporter.
type Options struct {
	// TotalChunks is the number of chunks in the run.
	TotalChunks int

	// Workers is the number of parallel workers (for display).
	Workers int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to redraw the progress line.
	// Default: 500ms
	UpdateInterval time.Duration
}

// Reporter renders a live progress line for a run. It implements
// engine.Sink, so it can be teed with the log sink; counters are atomics
// because outcomes arrive while the redraw loop reads them.
type Reporter struct {
	opts Options

	downloaded atomic.Int32
	skipped    atomic.Int32
	noData     atomic.Int32
	failed     atomic.Int32
	bytes      atomic.Int64

	startTime time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewReporter creates a progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}
	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start prints the header and begins redrawing until Stop is called.
func (r *Reporter) Start() {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	r.startTime = time.Now()
	fmt.Fprintf(r.opts.Output, "[ismr] Chunks: %d | Workers: %d\n",
		r.opts.TotalChunks, r.opts.Workers)
	go r.updateLoop()
}

// Stop halts the redraw loop and waits for the final line to be
// written. Safe to call more than once.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped || !r.started {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

func (r *Reporter) Downloaded(c engine.Chunk, files []string, bytes int64) {
	r.downloaded.Add(1)
	r.bytes.Add(bytes)
}

func (r *Reporter) Skipped(engine.Chunk)       { r.skipped.Add(1) }
func (r *Reporter) NoData(engine.Chunk)        { r.noData.Add(1) }
func (r *Reporter) Failed(engine.Chunk, error) { r.failed.Add(1) }

// NotAttempted chunks never run, so they do not advance the bar; the
// final line accounts for them as the gap to TotalChunks.
func (r *Reporter) NotAttempted(engine.Chunk) {}

func (r *Reporter) done() int {
	return int(r.downloaded.Load() + r.skipped.Load() + r.noData.Load() + r.failed.Load())
}

func (r *Reporter) updateLoop() {
	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-r.stopCh:
			r.printFinal()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

func (r *Reporter) printProgress() {
	done := r.done()

	var percent float64
	if r.opts.TotalChunks > 0 {
		percent = float64(done) / float64(r.opts.TotalChunks) * 100
	}

	fmt.Fprintf(r.opts.Output, "\r[ismr] Progress: %.0f%% | %d/%d chunks | %s | failed: %d    ",
		percent,
		done,
		r.opts.TotalChunks,
		formatBytes(r.bytes.Load()),
		r.failed.Load(),
	)
}

func (r *Reporter) printFinal() {
	elapsed := time.Since(r.startTime)
	fmt.Fprintf(r.opts.Output, "\r[ismr] Done: %d downloaded | %d skipped | %d no-data | %d failed | %s in %s\n",
		r.downloaded.Load(),
		r.skipped.Load(),
		r.noData.Load(),
		r.failed.Load(),
		formatBytes(r.bytes.Load()),
		formatDuration(elapsed),
	)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}
