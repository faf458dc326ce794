package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/aouyang1/go-demand-forecaster/forecast/util"
)

var (
	ErrResLenMismatch     = errors.New("predicted and actual have different lengths")
	ErrNoValidPoints      = errors.New("no valid points to score")
	ErrDivisionDegenerate = errors.New("every actual value is zero, percent error is undefined")
)

// Scores tracks accuracy of predictions against actuals. MAPE and Accuracy are percentages.
type Scores struct {
	MAE      float64 `json:"mae"`
	MAPE     float64 `json:"mape"`
	RMSE     float64 `json:"rmse"`
	Accuracy float64 `json:"accuracy"`

	// ExcludedZeroActuals is the number of zero actuals left out of MAPE
	ExcludedZeroActuals int `json:"excluded_zero_actuals"`
}

// NewScores calculates the scores given the predicted and actual input slice values. Points
// where either value is NaN are skipped.
func NewScores(predicted, actual []float64) (*Scores, error) {
	mae, err := MAE(predicted, actual)
	if err != nil {
		return nil, fmt.Errorf("unable to compute mean absolute error, %w", err)
	}
	rmse, err := RMSE(predicted, actual)
	if err != nil {
		return nil, fmt.Errorf("unable to compute root mean squared error, %w", err)
	}
	mape, excluded, err := MAPE(predicted, actual)
	if err != nil {
		return nil, fmt.Errorf("unable to compute mean absolute percent error, %w", err)
	}

	return &Scores{
		MAE:                 mae,
		MAPE:                mape,
		RMSE:                rmse,
		Accuracy:            100.0 - mape,
		ExcludedZeroActuals: excluded,
	}, nil
}

// Round returns a copy of the scores rounded to the given number of decimals
func (s Scores) Round(decimals int) Scores {
	return Scores{
		MAE:                 util.Round(s.MAE, decimals),
		MAPE:                util.Round(s.MAPE, decimals),
		RMSE:                util.Round(s.RMSE, decimals),
		Accuracy:            util.Round(s.Accuracy, decimals),
		ExcludedZeroActuals: s.ExcludedZeroActuals,
	}
}

func valid(p, a float64) bool {
	return !math.IsNaN(a) && !math.IsNaN(p)
}

// MAE computes the mean absolute error. A score of 0 means a perfect match with no errors.
func MAE(predicted, actual []float64) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, fmt.Errorf("expected %d, but got %d, %w", len(actual), len(predicted), ErrResLenMismatch)
	}

	var sum float64
	var n int
	for i := 0; i < len(actual); i++ {
		if !valid(predicted[i], actual[i]) {
			continue
		}
		sum += math.Abs(actual[i] - predicted[i])
		n++
	}
	if n == 0 {
		return 0, ErrNoValidPoints
	}
	return sum / float64(n), nil
}

// RMSE computes the root mean squared error
func RMSE(predicted, actual []float64) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, fmt.Errorf("expected %d, but got %d, %w", len(actual), len(predicted), ErrResLenMismatch)
	}

	var sum float64
	var n int
	for i := 0; i < len(actual); i++ {
		if !valid(predicted[i], actual[i]) {
			continue
		}
		sum += math.Pow(actual[i]-predicted[i], 2.0)
		n++
	}
	if n == 0 {
		return 0, ErrNoValidPoints
	}
	return math.Sqrt(sum / float64(n)), nil
}

// MAPE calculates the mean absolute percent error as a percentage. Zero actuals are excluded
// and counted. If every valid actual is zero the result is ErrDivisionDegenerate.
func MAPE(predicted, actual []float64) (float64, int, error) {
	if len(predicted) != len(actual) {
		return 0, 0, fmt.Errorf("expected %d, but got %d, %w", len(actual), len(predicted), ErrResLenMismatch)
	}

	var sum float64
	var n, excluded int
	for i := 0; i < len(actual); i++ {
		if !valid(predicted[i], actual[i]) {
			continue
		}
		if actual[i] == 0 {
			excluded++
			continue
		}
		sum += math.Abs((actual[i] - predicted[i]) / actual[i])
		n++
	}
	if n == 0 {
		if excluded > 0 {
			return 0, excluded, ErrDivisionDegenerate
		}
		return 0, 0, ErrNoValidPoints
	}
	return sum / float64(n) * 100.0, excluded, nil
}
