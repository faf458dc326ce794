// Package season buckets demand history into fixed calendar seasons.
package season

import (
	"math"
	"time"

	"github.com/aouyang1/go-demand-forecaster/store"
)

type Season int

const (
	Winter Season = iota
	Summer
	Monsoon
	PostMonsoon
)

// Seasons lists every season in output order.
var Seasons = []Season{Winter, Summer, Monsoon, PostMonsoon}

var (
	names  = [...]string{"Winter", "Summer", "Monsoon", "Post-Monsoon"}
	colors = [...]string{"#3b82f6", "#f59e0b", "#10b981", "#8b5cf6"}
)

func (s Season) String() string {
	return names[s]
}

// Color is the display color associated with the season.
func (s Season) Color() string {
	return colors[s]
}

// Of maps a calendar month to its season. Winter is December through February, Summer
// March through May, Monsoon June through September and Post-Monsoon the rest.
func Of(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Summer
	case time.June, time.July, time.August, time.September:
		return Monsoon
	default:
		return PostMonsoon
	}
}

// Bucket is the mean demand observed within one season, rounded half to even.
type Bucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

// Buckets averages the series per season. Only seasons with observations are returned,
// in the order of Seasons.
func Buckets(ts store.TimeSeries) []Bucket {
	var sums [len(names)]float64
	var counts [len(names)]int
	for _, o := range ts {
		s := Of(o.T.Month())
		sums[s] += o.Value
		counts[s]++
	}

	res := make([]Bucket, 0, len(Seasons))
	for _, s := range Seasons {
		if counts[s] == 0 {
			continue
		}
		res = append(res, Bucket{
			Name:  s.String(),
			Value: int(math.RoundToEven(sums[s] / float64(counts[s]))),
			Color: s.Color(),
		})
	}
	return res
}

// SeriesSource returns the stored series for a key.
type SeriesSource interface {
	SeriesFor(key store.EntityKey) store.TimeSeries
}

// Analyzer computes seasonal patterns directly from stored history. It never touches a
// trained model.
type Analyzer struct {
	src SeriesSource
}

func NewAnalyzer(src SeriesSource) *Analyzer {
	return &Analyzer{src: src}
}

// Patterns returns the seasonal buckets for the key. An unknown key yields no buckets.
func (a *Analyzer) Patterns(key store.EntityKey) []Bucket {
	if a == nil || a.src == nil {
		return []Bucket{}
	}
	return Buckets(a.src.SeriesFor(key))
}
