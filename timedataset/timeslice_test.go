package timedataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartTime(t *testing.T) {
	testData := map[string]struct {
		tSlice   TimeSlice
		expected time.Time
	}{
		"nil input for start time": {
			tSlice:   nil,
			expected: time.Time{},
		},
		"valid start time": {
			tSlice: TimeSlice([]time.Time{
				time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC),
				time.Date(1970, 1, 3, 0, 0, 0, 0, time.UTC),
			}),
			expected: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res := td.tSlice.StartTime()
			assert.Equal(t, td.expected, res)
		})
	}
}

func TestEndTime(t *testing.T) {
	testData := map[string]struct {
		tSlice   TimeSlice
		expected time.Time
	}{
		"nil input for end time": {
			tSlice:   nil,
			expected: time.Time{},
		},
		"valid end time": {
			tSlice: TimeSlice([]time.Time{
				time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC),
				time.Date(1970, 1, 3, 0, 0, 0, 0, time.UTC),
			}),
			expected: time.Date(1970, 1, 3, 0, 0, 0, 0, time.UTC),
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res := td.tSlice.EndTime()
			assert.Equal(t, td.expected, res)
		})
	}
}

func TestMedianInterval(t *testing.T) {
	tSlice := TimeSlice(GenerateMonthlyT(13, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
	res, err := tSlice.MedianInterval()
	require.NoError(t, err)
	assert.Equal(t, 31*24*time.Hour, res)

	_, err = TimeSlice(nil).MedianInterval()
	assert.ErrorIs(t, err, ErrCannotInferFreq)
}

func TestNextMonthEnds(t *testing.T) {
	testData := map[string]struct {
		after    time.Time
		n        int
		expected []time.Time
	}{
		"no periods": {
			after: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			n:     0,
		},
		"mid month start": {
			after: time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC),
			n:     3,
			expected: []time.Time{
				time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC),
				time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
				time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC),
			},
		},
		"on month end crosses year": {
			after: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
			n:     2,
			expected: []time.Time{
				time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			},
		},
		"first of month": {
			after: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
			n:     1,
			expected: []time.Time{
				time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, NextMonthEnds(td.after, td.n))
		})
	}
}
