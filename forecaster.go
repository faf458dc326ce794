// Package demandforecaster forecasts monthly demand per medicine and region. It trains one
// model per entity on demand through a registry, projects future months with uncertainty
// bounds and restocking thresholds, and scores each model against its own history.
package demandforecaster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aouyang1/go-demand-forecaster/forecast"
	"github.com/aouyang1/go-demand-forecaster/logger"
	"github.com/aouyang1/go-demand-forecaster/registry"
	"github.com/aouyang1/go-demand-forecaster/season"
	"github.com/aouyang1/go-demand-forecaster/store"
	"github.com/aouyang1/go-demand-forecaster/timedataset"
)

var (
	ErrInvalidHorizon         = errors.New("horizon must be at least 1")
	ErrUpstreamPredictFailure = errors.New("upstream predict failure")
)

const (
	RuralThresholdMultiplier   = 1.5
	DefaultThresholdMultiplier = 1.2

	// HistoricalWindow is the most recent number of points returned by HistoricalFit
	HistoricalWindow = 12

	MonthLayout = "Jan"
	DateLayout  = "2006-01-02"

	metricDecimals = 2
)

// Recorder observes the duration and outcome of every engine operation.
type Recorder interface {
	ObserveRequest(operation string, took time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, time.Duration, error) {}

type Option func(*Forecaster)

func WithLogger(l *logger.Logger) Option {
	return func(f *Forecaster) {
		if l != nil {
			f.log = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(f *Forecaster) {
		if r != nil {
			f.rec = r
		}
	}
}

// Forecaster is the entry point for forecasts, in-sample metrics, historical fits and
// seasonal patterns. It is safe for concurrent use.
type Forecaster struct {
	reg *registry.Registry
	log *logger.Logger
	rec Recorder
}

func New(reg *registry.Registry, opts ...Option) *Forecaster {
	f := &Forecaster{
		reg: reg,
		log: logger.Nop(),
		rec: nopRecorder{},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.With(logger.String("component", "engine"))
	return f
}

// Registry returns the model registry backing the forecaster.
func (f *Forecaster) Registry() *registry.Registry {
	return f.reg
}

func (f *Forecaster) observe(op string, key store.EntityKey, start time.Time, err error) {
	took := time.Since(start)
	f.rec.ObserveRequest(op, took, err)
	if err != nil {
		f.log.Warn(op+" failed",
			logger.String("key", key.String()),
			logger.Duration("took", took),
			logger.Error(err),
		)
		return
	}
	f.log.Debug(op,
		logger.String("key", key.String()),
		logger.Duration("took", took),
	)
}

// Forecast trains the key's model if needed and predicts horizon month-ends following the
// last training timestamp.
func (f *Forecaster) Forecast(ctx context.Context, key store.EntityKey, horizon int) (res *Forecast, err error) {
	defer func(start time.Time) { f.observe("forecast", key, start, err) }(time.Now())

	if horizon < 1 {
		return nil, fmt.Errorf("got %d, %w", horizon, ErrInvalidHorizon)
	}

	tm, err := f.reg.EnsureTrained(ctx, key)
	if err != nil {
		return nil, err
	}

	predictions, err := f.predictFuture(tm, horizon)
	if err != nil {
		return nil, err
	}

	perf, err := f.Evaluate(tm)
	if err != nil {
		return nil, err
	}

	return &Forecast{
		Predictions:      predictions,
		RegionType:       strings.ToLower(string(tm.LocalityClass)),
		ModelPerformance: *perf,
	}, nil
}

func (f *Forecaster) predictFuture(tm *registry.TrainedModel, horizon int) ([]ForecastPoint, error) {
	t := timedataset.NextMonthEnds(tm.LastTimestamp, horizon)

	res, err := tm.Model.Predict(t, tm.Regressors(len(t)))
	if err != nil {
		return nil, predictError(tm.Key, err)
	}
	if len(res.Forecast) != len(t) || len(res.Lower) != len(t) || len(res.Upper) != len(t) {
		return nil, predictError(tm.Key, forecast.ErrMismatchedDataLen)
	}

	points := make([]ForecastPoint, 0, len(t))
	for i, tPnt := range t {
		demand, ok := clampInt(res.Forecast[i])
		if !ok {
			return nil, predictError(tm.Key, fmt.Errorf("non-finite forecast at %s", tPnt.Format(DateLayout)))
		}
		lower, ok := clampInt(res.Lower[i])
		if !ok {
			return nil, predictError(tm.Key, fmt.Errorf("non-finite lower bound at %s", tPnt.Format(DateLayout)))
		}
		upper, ok := clampInt(res.Upper[i])
		if !ok {
			return nil, predictError(tm.Key, fmt.Errorf("non-finite upper bound at %s", tPnt.Format(DateLayout)))
		}

		points = append(points, ForecastPoint{
			Month:      tPnt.Format(MonthLayout),
			Date:       tPnt.Format(DateLayout),
			Demand:     demand,
			LowerBound: lower,
			UpperBound: upper,
			Threshold:  Threshold(demand, tm.LocalityClass),
		})
	}
	return points, nil
}

// ThresholdMultiplier is the restocking multiplier applied to forecast demand.
func ThresholdMultiplier(class store.LocalityClass) float64 {
	if class.IsRural() {
		return RuralThresholdMultiplier
	}
	return DefaultThresholdMultiplier
}

// Threshold returns the demand scaled by the locality's multiplier rounded to the nearest
// integer.
func Threshold(demand int, class store.LocalityClass) int {
	return int(math.Round(float64(demand) * ThresholdMultiplier(class)))
}

// clampInt truncates toward zero and floors at zero. Non-finite values are rejected.
func clampInt(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v <= 0 {
		return 0, true
	}
	return int(v), true
}

func predictError(key store.EntityKey, err error) error {
	return fmt.Errorf("predict %s, %w, %w", key, ErrUpstreamPredictFailure, err)
}

// inSample predicts over the exact series the model was trained on.
func (f *Forecaster) inSample(tm *registry.TrainedModel) (*forecast.Results, error) {
	n := tm.Snapshot.Len()
	res, err := tm.Model.Predict(tm.Snapshot.Times(), tm.Regressors(n))
	if err != nil {
		return nil, predictError(tm.Key, err)
	}
	if len(res.Forecast) != n {
		return nil, predictError(tm.Key, forecast.ErrMismatchedDataLen)
	}
	return res, nil
}

// Evaluate scores the trained model's in-sample predictions against its training series.
// Zero actuals are left out of MAPE and a series of only zeros fails with
// forecast.ErrDivisionDegenerate.
func (f *Forecaster) Evaluate(tm *registry.TrainedModel) (*PerformanceMetrics, error) {
	res, err := f.inSample(tm)
	if err != nil {
		return nil, err
	}
	scores, err := forecast.NewScores(res.Forecast, tm.Snapshot.Values())
	if err != nil {
		return nil, fmt.Errorf("scoring %s, %w", tm.Key, err)
	}
	if scores.ExcludedZeroActuals > 0 {
		f.log.Debug("zero actuals excluded from mape",
			logger.String("key", tm.Key.String()),
			logger.Int("excluded", scores.ExcludedZeroActuals),
		)
	}
	perf := newPerformanceMetrics(*scores)
	return &perf, nil
}

// Performance trains the key's model if needed and returns its in-sample metrics.
func (f *Forecaster) Performance(ctx context.Context, key store.EntityKey) (perf *PerformanceMetrics, err error) {
	defer func(start time.Time) { f.observe("performance", key, start, err) }(time.Now())

	tm, err := f.reg.EnsureTrained(ctx, key)
	if err != nil {
		return nil, err
	}
	return f.Evaluate(tm)
}

// HistoricalFit returns up to the last HistoricalWindow observations alongside the model's
// in-sample predictions, oldest first.
func (f *Forecaster) HistoricalFit(ctx context.Context, key store.EntityKey) (points []HistoricalPoint, err error) {
	defer func(start time.Time) { f.observe("historical", key, start, err) }(time.Now())

	tm, err := f.reg.EnsureTrained(ctx, key)
	if err != nil {
		return nil, err
	}
	res, err := f.inSample(tm)
	if err != nil {
		return nil, err
	}

	n := tm.Snapshot.Len()
	start := n - HistoricalWindow
	if start < 0 {
		start = 0
	}
	points = make([]HistoricalPoint, 0, n-start)
	for i := start; i < n; i++ {
		predicted, ok := clampInt(res.Forecast[i])
		if !ok {
			return nil, predictError(key, fmt.Errorf("non-finite in-sample prediction at %d", i))
		}
		obs := tm.Snapshot[i]
		points = append(points, HistoricalPoint{
			Month:     obs.T.Format(MonthLayout),
			Actual:    int(obs.Value),
			Predicted: predicted,
		})
	}
	return points, nil
}

// SeasonalPatterns averages stored demand per season for the key. It does not train.
func (f *Forecaster) SeasonalPatterns(key store.EntityKey) []season.Bucket {
	start := time.Now()
	buckets := season.NewAnalyzer(f.reg.Source()).Patterns(key)
	f.observe("seasonal", key, start, nil)
	return buckets
}
