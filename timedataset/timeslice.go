package timedataset

import (
	"sort"
	"time"
)

type TimeSlice []time.Time

func (t TimeSlice) StartTime() time.Time {
	var startTime time.Time
	if len(t) < 1 {
		return startTime
	}
	return t[0]
}

func (t TimeSlice) EndTime() time.Time {
	var lastTime time.Time
	if len(t) < 1 {
		return lastTime
	}

	lastTime = t[len(t)-1]
	return lastTime
}

// MedianInterval returns the median delta between consecutive points. Calendar months vary
// in length so this is steadier than the modal delta for monthly data.
func (t TimeSlice) MedianInterval() (time.Duration, error) {
	if len(t) < 2 {
		return 0, ErrCannotInferFreq
	}
	deltas := make([]time.Duration, 0, len(t)-1)
	for i := 1; i < len(t); i++ {
		deltas = append(deltas, t[i].Sub(t[i-1]))
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	return deltas[len(deltas)/2], nil
}

// MonthEnd returns the last day of the month containing t at midnight in t's location.
func MonthEnd(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
	return firstOfNext.AddDate(0, 0, -1)
}

// NextMonthEnds returns n consecutive month-end dates with the first strictly after the
// input time.
func NextMonthEnds(after time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	res := make([]time.Time, 0, n)

	curr := MonthEnd(after)
	if !curr.After(after) {
		curr = MonthEnd(time.Date(after.Year(), after.Month()+1, 1, 0, 0, 0, 0, after.Location()))
	}
	for i := 0; i < n; i++ {
		res = append(res, curr)
		curr = MonthEnd(time.Date(curr.Year(), curr.Month()+1, 1, 0, 0, 0, 0, curr.Location()))
	}
	return res
}
