package feature

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Set tracks the data of each feature keyed by the string representation of the feature.
// All feature data is kept at the same length, m, zero padding shorter columns.
type Set struct {
	m      int
	set    map[string][]float64
	labels []Feature
}

func NewSet() *Set {
	return &Set{
		set:    make(map[string][]float64),
		labels: []Feature{},
	}
}

// Set stores the feature data overriding any existing data for the same feature
func (s *Set) Set(f Feature, data []float64) *Set {
	if s.set == nil {
		s.set = make(map[string][]float64)
	}
	if len(data) > s.m {
		for key, vals := range s.set {
			s.set[key] = pad(vals, len(data))
		}
		s.m = len(data)
	}

	key := f.String()
	if _, exists := s.set[key]; !exists {
		s.labels = append(s.labels, f)
		sort.Slice(s.labels, func(i, j int) bool {
			return s.labels[i].String() < s.labels[j].String()
		})
	}
	s.set[key] = pad(data, s.m)
	return s
}

func pad(data []float64, m int) []float64 {
	res := make([]float64, m)
	copy(res, data)
	return res
}

// Get returns the feature data and whether it exists
func (s *Set) Get(f Feature) ([]float64, bool) {
	if s == nil {
		return nil, false
	}
	vals, exists := s.set[f.String()]
	return vals, exists
}

// Del removes a feature from the set. Removing the last feature resets the set.
func (s *Set) Del(f Feature) *Set {
	key := f.String()
	if _, exists := s.set[key]; !exists {
		return s
	}
	delete(s.set, key)
	for i, l := range s.labels {
		if l.String() == key {
			s.labels = append(s.labels[:i], s.labels[i+1:]...)
			break
		}
	}
	if len(s.set) == 0 {
		s.m = 0
	}
	return s
}

// Update merges all features of the input set into this set
func (s *Set) Update(next *Set) *Set {
	if next == nil {
		return s
	}
	for _, f := range next.labels {
		s.Set(f, next.set[f.String()])
	}
	return s
}

// Labels returns the features sorted by their string representation
func (s *Set) Labels() []Feature {
	if s == nil {
		return nil
	}
	res := make([]Feature, len(s.labels))
	copy(res, s.labels)
	return res
}

// Len returns the number of features
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.labels)
}

// Rows returns the number of observations of each feature
func (s *Set) Rows() int {
	if s == nil {
		return 0
	}
	return s.m
}

// RemoveZeroOnlyFeatures drops every feature whose data is all zeros
func (s *Set) RemoveZeroOnlyFeatures() []Feature {
	if s == nil {
		return nil
	}
	var removed []Feature
	for _, f := range s.Labels() {
		zeroOnly := true
		for _, v := range s.set[f.String()] {
			if v != 0 {
				zeroOnly = false
				break
			}
		}
		if zeroOnly {
			s.Del(f)
			removed = append(removed, f)
		}
	}
	return removed
}

// Matrix returns a matrix representation of the Set to be used with matrix methods.
// The matrix has m rows representing the number of observations and n columns representing
// the number of features in label order, optionally led by a column of ones.
func (s *Set) Matrix(intercept bool) *mat.Dense {
	if s == nil || len(s.labels) == 0 || s.m == 0 {
		return nil
	}

	m := s.m
	n := len(s.labels)
	if intercept {
		n += 1
	}

	obs := make([]float64, m*n)
	featNum := 0
	if intercept {
		for i := 0; i < m; i++ {
			obs[n*i] = 1.0
		}
		featNum += 1
	}

	for _, label := range s.labels {
		data := s.set[label.String()]
		for i := 0; i < m; i++ {
			obs[n*i+featNum] = data[i]
		}
		featNum += 1
	}
	return mat.NewDense(m, n, obs)
}
