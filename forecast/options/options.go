// Package options contains all forecast options for a linear fit of a univariate demand series
package options

import (
	"errors"
	"fmt"
	"io"

	"github.com/aouyang1/go-demand-forecaster/forecast/util"
	"github.com/aouyang1/go-demand-forecaster/linearmodel"
)

type SeasonalityMode string

const (
	SeasonalityModeAdditive       SeasonalityMode = "additive"
	SeasonalityModeMultiplicative SeasonalityMode = "multiplicative"
)

const (
	DefaultChangepointPenalty = 1.0
	DefaultIntervalWidth      = 0.8
)

var (
	ErrUnknownSeasonalityMode = errors.New("unknown seasonality mode")
	ErrInvalidIntervalWidth   = errors.New("interval width must be in (0, 1)")
	ErrInvalidPriorScale      = errors.New("changepoint prior scale must be positive")
	ErrInvalidRange           = errors.New("changepoint range must be in (0, 1]")
	ErrNegativeChangepoints   = errors.New("negative number of changepoints")
)

// Options configures a forecast by specifying the seasonality mode, changepoints, seasonal
// orders and the interval width of the uncertainty bounds.
type Options struct {
	SeasonalityMode SeasonalityMode `json:"seasonality_mode"`

	ChangepointOptions ChangepointOptions `json:"changepoint_options"`
	SeasonalityOptions SeasonalityOptions `json:"seasonality_options"`

	// ChangepointPenalty is the lasso lambda. Each changepoint column is penalized by
	// lambda / ChangepointOptions.PriorScale while all other columns are unpenalized.
	ChangepointPenalty float64 `json:"changepoint_penalty"`
	Iterations         int     `json:"iterations"`
	Tolerance          float64 `json:"tolerance"`

	// IntervalWidth is the central probability covered by the lower and upper bounds
	IntervalWidth float64 `json:"interval_width"`
}

// NewDefaultOptions returns a set of default forecast options with multiplicative yearly
// seasonality and automatic changepoints
func NewDefaultOptions() *Options {
	return &Options{
		SeasonalityMode:    SeasonalityModeMultiplicative,
		ChangepointOptions: NewDefaultChangepointOptions(),
		SeasonalityOptions: NewDefaultSeasonalityOptions(),
		ChangepointPenalty: DefaultChangepointPenalty,
		Iterations:         linearmodel.DefaultIterations,
		Tolerance:          linearmodel.DefaultTolerance,
		IntervalWidth:      DefaultIntervalWidth,
	}
}

// Validate runs basic validation on the options, returning the defaults if nil
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		return NewDefaultOptions(), nil
	}

	switch o.SeasonalityMode {
	case SeasonalityModeAdditive, SeasonalityModeMultiplicative:
	case "":
		o.SeasonalityMode = SeasonalityModeMultiplicative
	default:
		return nil, fmt.Errorf("got %q, %w", o.SeasonalityMode, ErrUnknownSeasonalityMode)
	}
	if o.IntervalWidth <= 0 || o.IntervalWidth >= 1 {
		return nil, fmt.Errorf("got %.3f, %w", o.IntervalWidth, ErrInvalidIntervalWidth)
	}
	if err := o.ChangepointOptions.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// NewLassoOptions builds the lasso configuration. The penalty factors are set per fit since
// they depend on which features were generated.
func (o *Options) NewLassoOptions(penaltyFactors []float64) *linearmodel.LassoOptions {
	lassoOpt := linearmodel.NewDefaultLassoOptions()
	lassoOpt.Lambda = o.ChangepointPenalty
	lassoOpt.PenaltyFactors = penaltyFactors
	lassoOpt.FitIntercept = true

	lassoOpt.Iterations = o.Iterations
	if o.Iterations == 0 {
		lassoOpt.Iterations = linearmodel.DefaultIterations
	}

	lassoOpt.Tolerance = o.Tolerance
	if o.Tolerance == 0 {
		lassoOpt.Tolerance = linearmodel.DefaultTolerance
	}
	return lassoOpt
}

func (o *Options) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	if _, err := fmt.Fprintf(w, "%s%sSeasonality Mode: %s\n", prefix, util.IndentExpand(indent, indentGrowth), o.SeasonalityMode); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sChangepoint Penalty: %.3f    Interval Width: %.2f\n",
		prefix, util.IndentExpand(indent, indentGrowth),
		o.ChangepointPenalty, o.IntervalWidth); err != nil {
		return err
	}
	if err := o.SeasonalityOptions.TablePrint(w, prefix, indent, indentGrowth); err != nil {
		return err
	}
	return o.ChangepointOptions.TablePrint(w, prefix, indent, indentGrowth)
}
