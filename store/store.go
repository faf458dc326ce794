package store

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row is one raw tabular record before validation.
type Row struct {
	Date       string
	Medicine   string
	Region     string
	UrbanRural string
	Demand     string
}

// DefaultDateLayouts are tried in order when parsing a row date.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	time.RFC3339,
}

type loadOptions struct {
	layouts  []string
	location *time.Location
}

type LoadOption func(*loadOptions)

// WithDateLayouts appends extra layouts tried after the defaults.
func WithDateLayouts(layouts ...string) LoadOption {
	return func(o *loadOptions) {
		o.layouts = append(o.layouts, layouts...)
	}
}

// WithLocation sets the location used for dates without a zone. Defaults to UTC.
func WithLocation(loc *time.Location) LoadOption {
	return func(o *loadOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// Store is an immutable, validated set of demand series keyed by EntityKey. It is safe
// for concurrent reads.
type Store struct {
	series  map[EntityKey]TimeSeries
	classes map[EntityKey]LocalityClass
	keys    []EntityKey
	start   time.Time
	end     time.Time
	n       int
}

// Load validates the raw rows and groups them per key. Rows failing validation are
// dropped and counted in the returned report, never repaired.
func Load(rows []Row, opts ...LoadOption) (*Store, *LoadReport, error) {
	o := &loadOptions{
		layouts:  append([]string{}, DefaultDateLayouts...),
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(o)
	}

	report := newLoadReport(len(rows))
	if len(rows) == 0 {
		return nil, report, &LoadError{Reason: "no rows in input", Report: report}
	}

	s := &Store{
		series:  make(map[EntityKey]TimeSeries),
		classes: make(map[EntityKey]LocalityClass),
	}
	for i, row := range rows {
		obs, key, class, reason, ok := parseRow(row, o)
		if !ok {
			report.drop(i, row, reason)
			continue
		}
		report.Kept++

		if _, exists := s.classes[key]; !exists {
			s.classes[key] = class
			s.keys = append(s.keys, key)
		}
		s.series[key] = append(s.series[key], obs)

		if s.n == 0 || obs.T.Before(s.start) {
			s.start = obs.T
		}
		if s.n == 0 || obs.T.After(s.end) {
			s.end = obs.T
		}
		s.n++
	}

	if report.Kept == 0 {
		return nil, report, &LoadError{Reason: "every row failed validation", Report: report}
	}

	for _, ts := range s.series {
		ts.sort()
	}
	sort.Slice(s.keys, func(i, j int) bool {
		return s.keys[i].Less(s.keys[j])
	})
	return s, report, nil
}

func parseRow(row Row, o *loadOptions) (Observation, EntityKey, LocalityClass, DropReason, bool) {
	var obs Observation
	var key EntityKey

	date := strings.TrimSpace(row.Date)
	medicine := strings.TrimSpace(row.Medicine)
	region := strings.TrimSpace(row.Region)
	class := strings.TrimSpace(row.UrbanRural)
	demand := strings.TrimSpace(row.Demand)
	if date == "" || medicine == "" || region == "" || class == "" || demand == "" {
		return obs, key, "", DropMissingField, false
	}

	val, err := strconv.ParseFloat(demand, 64)
	if err != nil {
		return obs, key, "", DropNonNumeric, false
	}
	if math.IsNaN(val) || math.IsInf(val, 0) || val < 0 {
		return obs, key, "", DropInvalidDemand, false
	}

	t, ok := parseDate(date, o)
	if !ok {
		return obs, key, "", DropUnparseableDate, false
	}

	obs = Observation{T: t, Value: val}
	key = EntityKey{Category: medicine, Locality: region}
	return obs, key, LocalityClass(class), "", true
}

func parseDate(s string, o *loadOptions) (time.Time, bool) {
	for _, layout := range o.layouts {
		t, err := time.ParseInLocation(layout, s, o.location)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SeriesFor returns a copy of the series for the key sorted by time, or an empty series
// when the key is unknown.
func (s *Store) SeriesFor(key EntityKey) TimeSeries {
	if s == nil {
		return TimeSeries{}
	}
	ts, exists := s.series[key]
	if !exists {
		return TimeSeries{}
	}
	return ts.Copy()
}

// LocalityClassFor returns the class of the first loaded row for the key.
func (s *Store) LocalityClassFor(key EntityKey) (LocalityClass, bool) {
	if s == nil {
		return "", false
	}
	class, exists := s.classes[key]
	return class, exists
}

// Keys returns every distinct key in sorted order.
func (s *Store) Keys() []EntityKey {
	if s == nil {
		return nil
	}
	res := make([]EntityKey, len(s.keys))
	copy(res, s.keys)
	return res
}

// Categories returns the sorted distinct categories.
func (s *Store) Categories() []string {
	return s.distinct(func(k EntityKey) string { return k.Category })
}

// Localities returns the sorted distinct localities.
func (s *Store) Localities() []string {
	return s.distinct(func(k EntityKey) string { return k.Locality })
}

func (s *Store) distinct(field func(EntityKey) string) []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{})
	res := make([]string, 0)
	for _, k := range s.keys {
		v := field(k)
		if _, exists := seen[v]; exists {
			continue
		}
		seen[v] = struct{}{}
		res = append(res, v)
	}
	sort.Strings(res)
	return res
}

// Len returns the number of stored observations across all keys.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return s.n
}

// DateRange returns the earliest and latest observation times.
func (s *Store) DateRange() (time.Time, time.Time) {
	if s == nil {
		return time.Time{}, time.Time{}
	}
	return s.start, s.end
}
