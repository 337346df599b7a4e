package report

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/GEGE-UNESP/ismr-downloader/internal/api"
	"github.com/GEGE-UNESP/ismr-downloader/internal/engine"
	"github.com/GEGE-UNESP/ismr-downloader/internal/timerange"
)

func testChunk() engine.Chunk {
	return engine.Chunk{
		Station:  "PRU2",
		DataType: api.DataISMR,
		Range: timerange.Range{
			Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestLogSinkWritesFilesList(t *testing.T) {
	var logs, files bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&logs, nil)), &files)

	sink.Downloaded(testChunk(), []string{"a.zip", "b.zip"}, 42)

	got := files.String()
	if got != "a.zip\nb.zip\n" {
		t.Errorf("files list = %q", got)
	}
	if !strings.Contains(logs.String(), "file downloaded") {
		t.Errorf("log missing download event: %s", logs.String())
	}
}

func TestLogSinkNilFilesList(t *testing.T) {
	var logs bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&logs, nil)), nil)

	// Must not panic.
	sink.Downloaded(testChunk(), []string{"a.zip"}, 1)
	sink.Skipped(testChunk())
	sink.NoData(testChunk())
	sink.Failed(testChunk(), errors.New("boom"))
	sink.NotAttempted(testChunk())

	for _, want := range []string{"file downloaded", "skipped", "no data", "chunk failed", "not attempted"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("log missing %q event", want)
		}
	}
}

func TestMultiFansOut(t *testing.T) {
	var a, b countingSink
	sink := Multi(&a, &b)

	sink.Downloaded(testChunk(), nil, 0)
	sink.Failed(testChunk(), errors.New("boom"))

	if a.events != 2 || b.events != 2 {
		t.Errorf("events = %d/%d, want 2/2", a.events, b.events)
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	summary := engine.Summary{
		Downloaded:      3,
		Skipped:         1,
		NoData:          2,
		Failed:          1,
		NotAttempted:    4,
		Bytes:           1024,
		Halted:          true,
		NoDataIntervals: []engine.Chunk{testChunk()},
		Failures:        []engine.Failure{{Chunk: testChunk(), Err: errors.New("boom")}},
	}

	WriteSummary(&buf, summary, 90*time.Second)
	out := buf.String()

	for _, want := range []string{
		"downloaded", "skipped", "no data", "failed", "not attempted",
		"run halted early", "intervals with no data", "failed intervals", "PRU2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

type countingSink struct {
	events int
}

func (s *countingSink) Downloaded(engine.Chunk, []string, int64) { s.events++ }
func (s *countingSink) Skipped(engine.Chunk)                     { s.events++ }
func (s *countingSink) NoData(engine.Chunk)                      { s.events++ }
func (s *countingSink) Failed(engine.Chunk, error)               { s.events++ }
func (s *countingSink) NotAttempted(engine.Chunk)                { s.events++ }
