package store

import (
	"sort"
	"time"
)

// MinTrainingPoints is the fewest observations a series needs before a model is fit.
const MinTrainingPoints = 10

// Observation is a single demand measurement. Value is never negative.
type Observation struct {
	T     time.Time
	Value float64
}

// EntityKey identifies one forecastable series by category (medicine) and locality (region).
type EntityKey struct {
	Category string
	Locality string
}

// String renders the key as "<category>_<locality>".
func (k EntityKey) String() string {
	return k.Category + "_" + k.Locality
}

// Less orders keys by category then locality.
func (k EntityKey) Less(o EntityKey) bool {
	if k.Category != o.Category {
		return k.Category < o.Category
	}
	return k.Locality < o.Locality
}

// LocalityClass labels the market a key belongs to.
type LocalityClass string

const (
	LocalityUrban LocalityClass = "Urban"
	LocalityRural LocalityClass = "Rural"
)

func (c LocalityClass) IsUrban() bool {
	return c == LocalityUrban
}

func (c LocalityClass) IsRural() bool {
	return c == LocalityRural
}

// TimeSeries is an ordered run of observations for one key. Timestamps are
// non-decreasing and may repeat.
type TimeSeries []Observation

func (ts TimeSeries) Len() int {
	return len(ts)
}

// Times returns a copy of the observation timestamps.
func (ts TimeSeries) Times() []time.Time {
	t := make([]time.Time, 0, len(ts))
	for _, o := range ts {
		t = append(t, o.T)
	}
	return t
}

// Values returns a copy of the observation values.
func (ts TimeSeries) Values() []float64 {
	y := make([]float64, 0, len(ts))
	for _, o := range ts {
		y = append(y, o.Value)
	}
	return y
}

// Last returns the final observation time or the zero time on an empty series.
func (ts TimeSeries) Last() time.Time {
	if len(ts) == 0 {
		return time.Time{}
	}
	return ts[len(ts)-1].T
}

func (ts TimeSeries) Copy() TimeSeries {
	res := make(TimeSeries, len(ts))
	copy(res, ts)
	return res
}

func (ts TimeSeries) sort() {
	sort.SliceStable(ts, func(i, j int) bool {
		return ts[i].T.Before(ts[j].T)
	})
}
