package forecast

import "github.com/aouyang1/go-demand-forecaster/feature"

// FeatureLabels maps each trend, seasonal and regressor column to its coefficient.
type FeatureLabels struct {
	idx    map[string]int
	labels []feature.Feature
}

func NewFeatureLabels(labels []feature.Feature) *FeatureLabels {
	idx := make(map[string]int)
	for i := 0; i < len(labels); i++ {
		idx[labels[i].String()] = i
	}
	fl := &FeatureLabels{
		labels: labels,
		idx:    idx,
	}
	return fl
}

func (f *FeatureLabels) Len() int {
	if f == nil {
		return 0
	}
	return len(f.labels)
}

func (f *FeatureLabels) Labels() []feature.Feature {
	if f == nil {
		return nil
	}
	labels := make([]feature.Feature, len(f.labels))
	copy(labels, f.labels)
	return labels
}

// Index reports the coefficient position of a feature or -1 when the model lacks it.
func (f *FeatureLabels) Index(label feature.Feature) (int, bool) {
	if f == nil {
		return -1, false
	}
	if idx, exists := f.idx[label.String()]; exists {
		return idx, exists
	}
	return -1, false
}
