package timerange

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned when a range is empty, inverted, or the
// maximum chunk span is not positive.
var ErrInvalidRange = errors.New("timerange: invalid range")

// Layouts accepted for start/end inputs.
const (
	layoutDate     = "2006-01-02"
	layoutDateTime = "2006-01-02T15:04:05"
)

// Range is a half-open time interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the range.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r Range) String() string {
	return fmt.Sprintf("%s/%s", r.Start.Format(layoutDateTime), r.End.Format(layoutDateTime))
}

// Split divides [start, end) into consecutive ranges of at most maxDays
// each. The returned ranges are in ascending order, contiguous, and cover
// the input exactly; the final range may be shorter than maxDays.
func Split(start, end time.Time, maxDays int) ([]Range, error) {
	if maxDays <= 0 {
		return nil, fmt.Errorf("%w: max days must be positive, got %d", ErrInvalidRange, maxDays)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start %s is not before end %s",
			ErrInvalidRange, start.Format(layoutDateTime), end.Format(layoutDateTime))
	}

	span := time.Duration(maxDays) * 24 * time.Hour

	var ranges []Range
	for cur := start; cur.Before(end); {
		next := cur.Add(span)
		if next.After(end) {
			next = end
		}
		ranges = append(ranges, Range{Start: cur, End: next})
		cur = next
	}

	return ranges, nil
}

// ParseStart parses a start instant. A date-only value expands to the
// beginning of that day (00:00:00 UTC); a full timestamp passes through
// unchanged.
func ParseStart(s string) (time.Time, error) {
	return parse(s, false)
}

// ParseEnd parses an end instant. A date-only value expands to the end of
// that day (23:59:59 UTC); a full timestamp passes through unchanged.
func ParseEnd(s string) (time.Time, error) {
	return parse(s, true)
}

func parse(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.ParseInLocation(layoutDate, s, time.UTC); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Second)
		}
		return t, nil
	}
	if t, err := time.ParseInLocation(layoutDateTime, s, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("timerange: parse %q: want %s or %s", s, layoutDate, layoutDateTime)
}
