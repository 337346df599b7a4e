package engine

import (
	"fmt"
	"time"

	"github.com/GEGE-UNESP/ismr-downloader/internal/api"
	"github.com/GEGE-UNESP/ismr-downloader/internal/timerange"
)

// RequestSpec is one validated logical request: which stations, which
// product, and over what time range, plus the run's pacing knobs.
// Immutable once constructed by the config layer.
type RequestSpec struct {
	Stations          []string
	DataType          api.DataType
	Start             time.Time
	End               time.Time
	MaxDays           int
	Workers           int
	RequestsPerMinute int
	Overwrite         bool
}

func (s RequestSpec) validate() error {
	if len(s.Stations) == 0 {
		return fmt.Errorf("%w: no stations", timerange.ErrInvalidRange)
	}
	if !s.Start.Before(s.End) {
		return fmt.Errorf("%w: start %v is not before end %v", timerange.ErrInvalidRange, s.Start, s.End)
	}
	if s.MaxDays <= 0 {
		return fmt.Errorf("%w: max days %d", timerange.ErrInvalidRange, s.MaxDays)
	}
	if s.Workers <= 0 {
		return fmt.Errorf("%w: workers %d", timerange.ErrInvalidRange, s.Workers)
	}
	if s.RequestsPerMinute <= 0 {
		return fmt.Errorf("%w: requests per minute %d", timerange.ErrInvalidRange, s.RequestsPerMinute)
	}
	return nil
}

// Chunk is one bounded query: a single station and sub-range. Each chunk
// is owned exclusively by the worker processing it.
type Chunk struct {
	Station  string
	DataType api.DataType
	Range    timerange.Range
	Seq      int
}

// ArtifactKey is the deterministic storage key for this chunk's artifact.
// Deterministic naming lets the overwrite=false check skip the network
// entirely.
func (c Chunk) ArtifactKey() string {
	const layout = "20060102T150405"
	return fmt.Sprintf("%s_%s_%s_%s.zip",
		c.Station, c.DataType,
		c.Range.Start.UTC().Format(layout),
		c.Range.End.UTC().Format(layout))
}

func (c Chunk) String() string {
	return fmt.Sprintf("%s/%s %s", c.Station, c.DataType, c.Range)
}

// chunks expands a spec into per-station chunk streams. Every station
// gets the same boundaries; sequence indices are per station.
func chunks(spec RequestSpec) ([]Chunk, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	ranges, err := timerange.Split(spec.Start, spec.End, spec.MaxDays)
	if err != nil {
		return nil, err
	}

	out := make([]Chunk, 0, len(ranges)*len(spec.Stations))
	for _, station := range spec.Stations {
		for i, r := range ranges {
			out = append(out, Chunk{
				Station:  station,
				DataType: spec.DataType,
				Range:    r,
				Seq:      i,
			})
		}
	}
	return out, nil
}
