// Package months builds the calendar month index that frames are keyed by.
package months

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"conflictmap/pkg/dataset"
)

// LabelLayout is the month label form, e.g. "Jan 2015"
const LabelLayout = "Jan 2006"

// DefaultOrigin is the first month covered by the dataset
var DefaultOrigin = time.Date(1998, time.January, 1, 0, 0, 0, 0, time.UTC)

// Index is an ordered list of month starts from an origin through the
// current month
type Index struct {
	starts []time.Time
	labels map[string]int
}

// NewIndex builds the index from origin through the clock's current month.
// A zero origin means DefaultOrigin and a nil clock means the real clock.
func NewIndex(origin time.Time, clock clockwork.Clock) *Index {
	if origin.IsZero() {
		origin = DefaultOrigin
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	first := monthStart(origin)
	last := monthStart(clock.Now())

	idx := &Index{labels: make(map[string]int)}
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		idx.labels[m.Format(LabelLayout)] = len(idx.starts)
		idx.starts = append(idx.starts, m)
	}
	return idx
}

// ParseLabel parses a "Jan 2006" label into the month start
func ParseLabel(label string) (time.Time, error) {
	t, err := time.Parse(LabelLayout, label)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month label %q: want form %q", label, LabelLayout)
	}
	return t, nil
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Len returns the number of months in the index
func (x *Index) Len() int {
	return len(x.starts)
}

// At returns the start of month i
func (x *Index) At(i int) time.Time {
	return x.starts[i]
}

// End returns the exclusive upper bound of month i, the start of the next
// calendar month
func (x *Index) End(i int) time.Time {
	return x.starts[i].AddDate(0, 1, 0)
}

// IndexOf returns the position of the month with the given label
func (x *Index) IndexOf(label string) (int, error) {
	t, err := ParseLabel(label)
	if err != nil {
		return 0, err
	}
	if x.Len() == 0 {
		return 0, fmt.Errorf("month index is empty")
	}
	i, ok := x.labels[t.Format(LabelLayout)]
	if !ok {
		return 0, fmt.Errorf("month %q is outside the index (%s to %s)",
			label, x.Label(0), x.Label(x.Len()-1))
	}
	return i, nil
}

// Range returns the indexes of the months from from (inclusive) to until
// (exclusive)
func (x *Index) Range(from, until string) ([]int, error) {
	start, err := x.IndexOf(from)
	if err != nil {
		return nil, err
	}
	end, err := x.IndexOf(until)
	if err != nil {
		return nil, err
	}
	if end <= start {
		return nil, fmt.Errorf("month range %s to %s is empty", from, until)
	}

	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out, nil
}

// Select returns the events dated within month i, At(i) <= date < End(i)
func (x *Index) Select(events []dataset.Event, i int) []dataset.Event {
	lo, hi := x.At(i), x.End(i)
	var out []dataset.Event
	for _, e := range events {
		if !e.Date.Before(lo) && e.Date.Before(hi) {
			out = append(out, e)
		}
	}
	return out
}

// Label returns the "Jan 2006" label of month i
func (x *Index) Label(i int) string {
	return x.starts[i].Format(LabelLayout)
}

// FrameName returns the PNG file name of month i, e.g. "Jan_2015.png"
func (x *Index) FrameName(i int) string {
	return FrameName(x.starts[i])
}

// FrameName returns the PNG file name for the month containing t
func FrameName(t time.Time) string {
	return t.Format("Jan_2006") + ".png"
}

// ParseFrameName reverses FrameName
func ParseFrameName(name string) (time.Time, error) {
	t, err := time.Parse("Jan_2006.png", name)
	if err != nil {
		return time.Time{}, fmt.Errorf("not a frame name: %q", name)
	}
	return t, nil
}
