package report

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/GEGE-UNESP/ismr-downloader/internal/engine"
	"github.com/GEGE-UNESP/ismr-downloader/internal/progress"
)

// LogSink renders chunk events as structured log lines and appends every
// downloaded artifact path to a per-run files list, one path per line.
type LogSink struct {
	log *slog.Logger

	mu    sync.Mutex
	files io.Writer
}

// NewLogSink creates a sink. filesList may be nil when no list file is
// wanted.
func NewLogSink(log *slog.Logger, filesList io.Writer) *LogSink {
	return &LogSink{log: log, files: filesList}
}

func (s *LogSink) Downloaded(c engine.Chunk, files []string, bytes int64) {
	s.log.Info("file downloaded",
		"station", c.Station,
		"type", string(c.DataType),
		"range", c.Range.String(),
		"size", progress.FormatBytes(bytes),
	)
	if s.files == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range files {
		fmt.Fprintln(s.files, f)
	}
}

func (s *LogSink) Skipped(c engine.Chunk) {
	s.log.Info("artifact exists, skipped",
		"station", c.Station,
		"range", c.Range.String(),
	)
}

func (s *LogSink) NoData(c engine.Chunk) {
	s.log.Info("no data for interval",
		"station", c.Station,
		"type", string(c.DataType),
		"range", c.Range.String(),
	)
}

func (s *LogSink) Failed(c engine.Chunk, err error) {
	s.log.Error("chunk failed",
		"station", c.Station,
		"type", string(c.DataType),
		"range", c.Range.String(),
		"err", err,
	)
}

func (s *LogSink) NotAttempted(c engine.Chunk) {
	s.log.Warn("chunk not attempted",
		"station", c.Station,
		"range", c.Range.String(),
	)
}

// Multi fans every event out to each sink, in order.
func Multi(sinks ...engine.Sink) engine.Sink {
	return multiSink(sinks)
}

type multiSink []engine.Sink

func (m multiSink) Downloaded(c engine.Chunk, files []string, bytes int64) {
	for _, s := range m {
		s.Downloaded(c, files, bytes)
	}
}

func (m multiSink) Skipped(c engine.Chunk) {
	for _, s := range m {
		s.Skipped(c)
	}
}

func (m multiSink) NoData(c engine.Chunk) {
	for _, s := range m {
		s.NoData(c)
	}
}

func (m multiSink) Failed(c engine.Chunk, err error) {
	for _, s := range m {
		s.Failed(c, err)
	}
}

func (m multiSink) NotAttempted(c engine.Chunk) {
	for _, s := range m {
		s.NotAttempted(c)
	}
}

// WriteSummary renders the end-of-run block.
func WriteSummary(w io.Writer, s engine.Summary, elapsed time.Duration) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(w, "========== summary ==========")
	fmt.Fprintf(w, "downloaded:    %s (%s)\n", green(s.Downloaded), progress.FormatBytes(s.Bytes))
	fmt.Fprintf(w, "skipped:       %d\n", s.Skipped)
	fmt.Fprintf(w, "no data:       %d\n", s.NoData)
	if s.Failed > 0 {
		fmt.Fprintf(w, "failed:        %s\n", red(s.Failed))
	} else {
		fmt.Fprintf(w, "failed:        %d\n", s.Failed)
	}
	if s.NotAttempted > 0 {
		fmt.Fprintf(w, "not attempted: %s\n", yellow(s.NotAttempted))
	}
	if s.Halted {
		fmt.Fprintln(w, yellow("run halted early"))
	}
	fmt.Fprintf(w, "elapsed:       %s\n", elapsed.Round(time.Second))

	if len(s.NoDataIntervals) > 0 {
		fmt.Fprintln(w, "\nintervals with no data:")
		for _, c := range s.NoDataIntervals {
			fmt.Fprintf(w, "  %s %s %s\n", c.Station, c.DataType, c.Range)
		}
	}
	if len(s.Failures) > 0 {
		fmt.Fprintln(w, "\nfailed intervals:")
		for _, f := range s.Failures {
			fmt.Fprintf(w, "  %s %s %s: %v\n", f.Chunk.Station, f.Chunk.DataType, f.Chunk.Range, f.Err)
		}
	}
	fmt.Fprintln(w, "=============================")
}
