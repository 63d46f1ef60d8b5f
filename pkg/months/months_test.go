package months

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conflictmap/pkg/dataset"
)

func fixedIndex(t *testing.T) *Index {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2019, time.June, 14, 15, 10, 0, 0, time.UTC))
	return NewIndex(time.Time{}, clock)
}

func TestNewIndex(t *testing.T) {
	idx := fixedIndex(t)

	// Jan 1998 through Jun 2019 inclusive
	assert.Equal(t, 21*12+6, idx.Len())
	assert.Equal(t, DefaultOrigin, idx.At(0))
	assert.Equal(t, "Jun 2019", idx.Label(idx.Len()-1))

	for i := 1; i < idx.Len(); i++ {
		require.True(t, idx.At(i).After(idx.At(i-1)), "months must be strictly increasing at %d", i)
	}
}

func TestNewIndexCustomOrigin(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2015, time.March, 1, 0, 0, 0, 0, time.UTC))
	idx := NewIndex(time.Date(2014, time.November, 20, 0, 0, 0, 0, time.UTC), clock)

	require.Equal(t, 5, idx.Len())
	assert.Equal(t, "Nov 2014", idx.Label(0))
	assert.Equal(t, "Mar 2015", idx.Label(4))
}

func TestIndexOf(t *testing.T) {
	idx := fixedIndex(t)

	i, err := idx.IndexOf("Jan 2015")
	require.NoError(t, err)
	assert.Equal(t, 17*12, i)

	_, err = idx.IndexOf("Jan 1990")
	assert.Error(t, err)

	_, err = idx.IndexOf("2015-01")
	assert.Error(t, err)
}

func TestRangeDefaults(t *testing.T) {
	idx := fixedIndex(t)

	r, err := idx.Range("Jan 2015", "Feb 2019")
	require.NoError(t, err)

	require.Len(t, r, 49)
	assert.Equal(t, "Jan 2015", idx.Label(r[0]))
	assert.Equal(t, "Jan 2019", idx.Label(r[len(r)-1]))
}

func TestRangeErrors(t *testing.T) {
	idx := fixedIndex(t)

	_, err := idx.Range("Feb 2019", "Jan 2015")
	assert.Error(t, err)

	_, err = idx.Range("Jan 2015", "Jan 2015")
	assert.Error(t, err)

	_, err = idx.Range("Jan 2015", "Jan 2030")
	assert.Error(t, err)
}

func TestSelectHalfOpenBounds(t *testing.T) {
	idx := fixedIndex(t)
	jan, err := idx.IndexOf("Jan 2015")
	require.NoError(t, err)

	events := []dataset.Event{
		{ID: "dec31", Date: time.Date(2014, time.December, 31, 0, 0, 0, 0, time.UTC)},
		{ID: "jan1", Date: time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "jan31", Date: time.Date(2015, time.January, 31, 0, 0, 0, 0, time.UTC)},
		{ID: "feb1", Date: time.Date(2015, time.February, 1, 0, 0, 0, 0, time.UTC)},
	}

	selected := idx.Select(events, jan)
	ids := make([]string, 0, len(selected))
	for _, e := range selected {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"jan1", "jan31"}, ids)
}

func TestSelectLastMonth(t *testing.T) {
	idx := fixedIndex(t)
	last := idx.Len() - 1

	events := []dataset.Event{
		{ID: "jun30", Date: time.Date(2019, time.June, 30, 0, 0, 0, 0, time.UTC)},
		{ID: "jul1", Date: time.Date(2019, time.July, 1, 0, 0, 0, 0, time.UTC)},
	}

	selected := idx.Select(events, last)
	require.Len(t, selected, 1)
	assert.Equal(t, "jun30", selected[0].ID)
	assert.Equal(t, time.Date(2019, time.July, 1, 0, 0, 0, 0, time.UTC), idx.End(last))
}

func TestFrameNames(t *testing.T) {
	idx := fixedIndex(t)
	i, err := idx.IndexOf("Sep 2016")
	require.NoError(t, err)

	assert.Equal(t, "Sep_2016.png", idx.FrameName(i))

	parsed, err := ParseFrameName("Sep_2016.png")
	require.NoError(t, err)
	assert.Equal(t, idx.At(i), parsed)

	_, err = ParseFrameName("tempmap-0.png")
	assert.Error(t, err)
}
