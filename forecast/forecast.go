// Package forecast defines the narrow fit and predict contract used to forecast a single demand
// series along with a default linear trend and seasonality implementation.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUninitializedForecast    = errors.New("uninitialized forecast")
	ErrInsufficientTrainingData = errors.New("insufficient training data after removing NaNs")
	ErrMismatchedDataLen        = errors.New("input data has different length than time")
	ErrMissingRegressor         = errors.New("regressor used in training was not provided")
	ErrNegativeObservation      = errors.New("negative observation cannot be fit in multiplicative mode")
	ErrNoModelCoefficients      = errors.New("no model coefficients from fit")
)

// Regressors holds named external columns aligned with the time slice passed alongside
type Regressors map[string][]float64

func (r Regressors) validate(n int) error {
	for name, vals := range r {
		if len(vals) != n {
			return fmt.Errorf("regressor %s has length %d instead of %d, %w", name, len(vals), n, ErrMismatchedDataLen)
		}
	}
	return nil
}

// Fitter trains a Model from an ordered, strictly increasing time slice with matching values
// and optional regressors.
type Fitter interface {
	Fit(ctx context.Context, t []time.Time, y []float64, regressors Regressors) (Model, error)
}

// Model produces point forecasts and uncertainty bounds for arbitrary times. Every regressor
// used during training must be supplied with the same name.
type Model interface {
	Predict(t []time.Time, regressors Regressors) (*Results, error)
	TrainEndTime() time.Time
}
