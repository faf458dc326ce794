// Package feature describes the labeled columns of the design matrix used when fitting a
// demand model: growth, changepoints, Fourier seasonality and external regressors.
package feature

import "errors"

var ErrUnknownFeatureType = errors.New("unknown feature type")

type FeatureType string

const (
	FeatureTypeGrowth      FeatureType = "growth"
	FeatureTypeChangepoint FeatureType = "changepoint"
	FeatureTypeSeasonality FeatureType = "seasonality"
	FeatureTypeRegressor   FeatureType = "regressor"
)

// Feature is a single labeled column. String must be unique across features since it is
// used to key the feature data.
type Feature interface {
	String() string
	Get(string) (string, bool)
	Type() FeatureType
	Decode() map[string]string
}

// FromLabels rebuilds a feature from its type and decoded labels
func FromLabels(ft FeatureType, labels map[string]string) (Feature, error) {
	switch ft {
	case FeatureTypeGrowth:
		return NewGrowth(labels["name"]), nil
	case FeatureTypeChangepoint:
		return NewChangepoint(labels["name"], ChangepointComp(labels["changepoint_component"])), nil
	case FeatureTypeSeasonality:
		s := new(Seasonality)
		if err := s.fromLabels(labels); err != nil {
			return nil, err
		}
		return s, nil
	case FeatureTypeRegressor:
		return NewRegressor(labels["name"]), nil
	}
	return nil, ErrUnknownFeatureType
}
