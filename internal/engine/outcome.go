package engine

// OutcomeKind is the terminal state of one chunk. Every chunk ends in
// exactly one of these; none is ever left pending at run end.
type OutcomeKind int

const (
	// Downloaded: the artifact was fetched and persisted.
	Downloaded OutcomeKind = iota

	// Skipped: the artifact already existed and overwrite was off; no
	// request was made.
	Skipped

	// NoData: the API confirmed the interval holds no data.
	NoData

	// Failed: the chunk exhausted its retries or hit a fatal status.
	Failed

	// NotAttempted: the run halted before the chunk was dispatched.
	NotAttempted
)

func (k OutcomeKind) String() string {
	switch k {
	case Downloaded:
		return "downloaded"
	case Skipped:
		return "skipped"
	case NoData:
		return "no-data"
	case Failed:
		return "failed"
	default:
		return "not-attempted"
	}
}

// Outcome is the result of one chunk, produced by a worker and consumed
// once by the orchestrator.
type Outcome struct {
	Chunk Chunk
	Kind  OutcomeKind
	Files []string
	Bytes int64
	Err   error
}

// Failure pairs a failed chunk with its cause, retained in the summary
// so the caller can re-run just the failed intervals.
type Failure struct {
	Chunk Chunk
	Err   error
}

// Summary aggregates a whole run.
type Summary struct {
	Downloaded   int
	Skipped      int
	NoData       int
	Failed       int
	NotAttempted int
	Bytes        int64

	NoDataIntervals []Chunk
	Failures        []Failure

	// Halted is set when the run stopped early (maintenance or a fatal
	// auth condition) instead of draining every chunk.
	Halted bool
}

// Total returns the number of accounted chunks.
func (s Summary) Total() int {
	return s.Downloaded + s.Skipped + s.NoData + s.Failed + s.NotAttempted
}

func (s *Summary) add(o Outcome) {
	switch o.Kind {
	case Downloaded:
		s.Downloaded++
		s.Bytes += o.Bytes
	case Skipped:
		s.Skipped++
	case NoData:
		s.NoData++
		s.NoDataIntervals = append(s.NoDataIntervals, o.Chunk)
	case Failed:
		s.Failed++
		s.Failures = append(s.Failures, Failure{Chunk: o.Chunk, Err: o.Err})
	case NotAttempted:
		s.NotAttempted++
	}
}

// Sink receives one structured event per chunk outcome. Implementations
// own all on-disk formatting; the engine only guarantees exactly-once
// emission.
type Sink interface {
	Downloaded(c Chunk, files []string, bytes int64)
	Skipped(c Chunk)
	NoData(c Chunk)
	Failed(c Chunk, err error)
	NotAttempted(c Chunk)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Downloaded(Chunk, []string, int64) {}
func (NopSink) Skipped(Chunk)                     {}
func (NopSink) NoData(Chunk)                      {}
func (NopSink) Failed(Chunk, error)               {}
func (NopSink) NotAttempted(Chunk)                {}
