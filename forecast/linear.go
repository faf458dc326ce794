package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aouyang1/go-demand-forecaster/feature"
	"github.com/aouyang1/go-demand-forecaster/forecast/options"
	"github.com/aouyang1/go-demand-forecaster/forecast/util"
	"github.com/aouyang1/go-demand-forecaster/linearmodel"
	"github.com/aouyang1/go-demand-forecaster/timedataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// LinearFitter fits a linear model over growth, slope changepoints, Fourier seasonality and
// standardized regressors using coordinate descent. It is safe for concurrent use.
type LinearFitter struct {
	opt *options.Options
}

// NewLinearFitter validates the options and returns a fitter. Nil options use the defaults.
func NewLinearFitter(opt *options.Options) (*LinearFitter, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &LinearFitter{opt: opt}, nil
}

// Fit satisfies the Fitter interface
func (f *LinearFitter) Fit(ctx context.Context, t []time.Time, y []float64, regressors Regressors) (Model, error) {
	m, err := f.FitLinear(ctx, t, y, regressors)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// FitLinear takes the input training data and fits the linear model
func (f *LinearFitter) FitLinear(ctx context.Context, t []time.Time, y []float64, regressors Regressors) (*LinearModel, error) {
	if f == nil || f.opt == nil {
		return nil, ErrUninitializedForecast
	}

	trainingData, err := timedataset.NewUnivariateDataset(t, y)
	if err != nil {
		return nil, err
	}
	if err := regressors.validate(len(t)); err != nil {
		return nil, err
	}

	// drop out nans along with the matching regressor values
	trainingT := make([]time.Time, 0, trainingData.Len())
	trainingY := make([]float64, 0, trainingData.Len())
	trainingRegs := make(Regressors, len(regressors))
	for i := 0; i < trainingData.Len(); i++ {
		if math.IsNaN(trainingData.Y[i]) {
			continue
		}
		trainingT = append(trainingT, trainingData.T[i])
		trainingY = append(trainingY, trainingData.Y[i])
		for name, vals := range regressors {
			trainingRegs[name] = append(trainingRegs[name], vals[i])
		}
	}
	if len(trainingT) <= 1 {
		return nil, ErrInsufficientTrainingData
	}

	opt := *f.opt
	if opt.SeasonalityMode == options.SeasonalityModeMultiplicative {
		for i, v := range trainingY {
			if v < 0 {
				return nil, fmt.Errorf("value %.3f at %s, %w", v, trainingT[i], ErrNegativeObservation)
			}
		}
		util.SliceMap(trainingY, math.Log1p)
	}

	interval, err := timedataset.TimeSlice(trainingT).MedianInterval()
	if err != nil {
		return nil, err
	}

	gen := featureGenerator{
		trainStartTime: trainingT[0],
		trainEndTime:   trainingT[len(trainingT)-1],
		changepoints:   opt.ChangepointOptions.GenerateAutoChangepoints(trainingT),
		seasonalities:  opt.SeasonalityOptions.Configs(interval),
		regressorStats: newRegressorStats(trainingRegs),
	}

	x := gen.generate(trainingT, trainingRegs)
	x.RemoveZeroOnlyFeatures()
	labels := x.Labels()

	penaltyFactors := make([]float64, len(labels))
	for i, label := range labels {
		if label.Type() == feature.FeatureTypeChangepoint {
			penaltyFactors[i] = opt.ChangepointOptions.PenaltyFactor()
		}
	}

	reg, err := linearmodel.NewLassoRegression(opt.NewLassoOptions(penaltyFactors))
	if err != nil {
		return nil, err
	}
	obs := mat.NewDense(len(trainingY), 1, trainingY)
	if err := reg.Fit(ctx, x.Matrix(false), obs); err != nil {
		return nil, fmt.Errorf("unable to fit linear model, %w", err)
	}

	m := &LinearModel{
		opt:       &opt,
		gen:       gen,
		labels:    NewFeatureLabels(labels),
		intercept: reg.Intercept(),
		coef:      reg.Coef(),
	}

	fitted, err := m.predictRaw(trainingT, trainingRegs)
	if err != nil {
		return nil, err
	}
	residual := make([]float64, len(trainingY))
	floats.SubTo(residual, trainingY, fitted.yhat)
	m.residual = residual
	m.sigma = floats.Norm(residual, 2) / math.Sqrt(float64(len(residual)))

	return m, nil
}

// LinearModel is a trained linear model. Predictions are computed in the fit space and mapped
// back with expm1 for multiplicative seasonality.
type LinearModel struct {
	opt    *options.Options
	gen    featureGenerator
	labels *FeatureLabels

	intercept float64
	coef      []float64
	sigma     float64
	residual  []float64
}

type rawPrediction struct {
	yhat        []float64
	trend       []float64
	seasonality []float64
	regressors  []float64
}

func (m *LinearModel) predictRaw(t []time.Time, regressors Regressors) (*rawPrediction, error) {
	if m == nil || m.labels == nil {
		return nil, ErrUninitializedForecast
	}
	if len(m.coef) != m.labels.Len() {
		return nil, ErrNoModelCoefficients
	}
	if err := regressors.validate(len(t)); err != nil {
		return nil, err
	}

	set := m.gen.generate(t, regressors)

	n := len(t)
	res := &rawPrediction{
		yhat:        make([]float64, n),
		trend:       make([]float64, n),
		seasonality: make([]float64, n),
		regressors:  make([]float64, n),
	}
	floats.AddConst(m.intercept, res.trend)

	for i, label := range m.labels.Labels() {
		vals, exists := set.Get(label)
		if !exists {
			if label.Type() == feature.FeatureTypeRegressor {
				name, _ := label.Get("name")
				return nil, fmt.Errorf("regressor %s, %w", name, ErrMissingRegressor)
			}
			continue
		}

		var dst []float64
		switch label.Type() {
		case feature.FeatureTypeGrowth, feature.FeatureTypeChangepoint:
			dst = res.trend
		case feature.FeatureTypeSeasonality:
			dst = res.seasonality
		default:
			dst = res.regressors
		}
		floats.AddScaled(dst, m.coef[i], vals[:n])
	}

	floats.AddTo(res.yhat, res.trend, res.seasonality)
	floats.Add(res.yhat, res.regressors)
	return res, nil
}

// Predict takes a slice of times and produces the forecast with lower and upper bounds. The
// bounds widen with the square root of the relative distance past the training end.
func (m *LinearModel) Predict(t []time.Time, regressors Regressors) (*Results, error) {
	raw, err := m.predictRaw(t, regressors)
	if err != nil {
		return nil, err
	}

	z := distuv.UnitNormal.Quantile(0.5 + m.opt.IntervalWidth/2.0)
	span := m.gen.trainEndTime.Sub(m.gen.trainStartTime).Seconds()

	n := len(t)
	lower := make([]float64, n)
	upper := make([]float64, n)
	for i, tPnt := range t {
		scale := 1.0
		if tPnt.After(m.gen.trainEndTime) && span > 0 {
			scale = math.Sqrt(1.0 + tPnt.Sub(m.gen.trainEndTime).Seconds()/span)
		}
		halfWidth := z * m.sigma * scale
		lower[i] = raw.yhat[i] - halfWidth
		upper[i] = raw.yhat[i] + halfWidth
	}

	tCopy := make([]time.Time, n)
	copy(tCopy, t)
	res := &Results{
		T:        tCopy,
		Forecast: raw.yhat,
		Lower:    lower,
		Upper:    upper,
		Components: Components{
			Trend:       raw.trend,
			Seasonality: raw.seasonality,
			Regressors:  raw.regressors,
		},
	}

	if m.opt.SeasonalityMode == options.SeasonalityModeMultiplicative {
		util.SliceMap(res.Forecast, math.Expm1)
		util.SliceMap(res.Lower, math.Expm1)
		util.SliceMap(res.Upper, math.Expm1)
		util.SliceMap(res.Components.Trend, math.Expm1)
		util.SliceMap(res.Components.Seasonality, math.Expm1)
		util.SliceMap(res.Components.Regressors, math.Expm1)
	}
	return res, nil
}

// TrainStartTime returns the first training timestamp
func (m *LinearModel) TrainStartTime() time.Time {
	if m == nil {
		return time.Time{}
	}
	return m.gen.trainStartTime
}

// TrainEndTime returns the last training timestamp
func (m *LinearModel) TrainEndTime() time.Time {
	if m == nil {
		return time.Time{}
	}
	return m.gen.trainEndTime
}

// FeatureLabels returns the slice of feature labels in the order of the coefficients
func (m *LinearModel) FeatureLabels() []feature.Feature {
	if m == nil {
		return nil
	}
	return m.labels.Labels()
}

// Coefficients returns a map of coefficients keyed by the string representation of each
// feature label
func (m *LinearModel) Coefficients() (map[string]float64, error) {
	if m == nil {
		return nil, ErrUninitializedForecast
	}

	labels := m.labels.Labels()
	if len(labels) == 0 || len(m.coef) == 0 {
		return nil, ErrNoModelCoefficients
	}
	coef := make(map[string]float64)
	for i := 0; i < len(m.coef); i++ {
		coef[labels[i].String()] = m.coef[i]
	}
	return coef, nil
}

// Intercept returns the intercept of the model in the fit space
func (m *LinearModel) Intercept() float64 {
	if m == nil {
		return 0
	}
	return m.intercept
}

// Sigma returns the root mean square of the training residuals in the fit space
func (m *LinearModel) Sigma() float64 {
	if m == nil {
		return 0
	}
	return m.sigma
}

// Residuals returns the difference between the training data and the fit in the fit space
func (m *LinearModel) Residuals() []float64 {
	if m == nil {
		return nil
	}
	res := make([]float64, len(m.residual))
	copy(res, m.residual)
	return res
}

// Options returns a copy of the options used for the fit including the resolved changepoints
func (m *LinearModel) Options() options.Options {
	if m == nil || m.opt == nil {
		return options.Options{}
	}
	return *m.opt
}

// ModelEq returns a string representation of the model linear equation in the format of
// y ~ b + m1x1 + m2x2 + ...
func (m *LinearModel) ModelEq() (string, error) {
	if m == nil {
		return "", ErrUninitializedForecast
	}

	eq := "y ~ "

	coef, err := m.Coefficients()
	if err != nil {
		return "", err
	}

	eq += fmt.Sprintf("%.2f", m.Intercept())
	labels := m.labels.Labels()
	for i := 0; i < len(m.coef); i++ {
		w := coef[labels[i].String()]
		if w == 0 {
			continue
		}
		eq += fmt.Sprintf("+%.2f*%s", w, labels[i])
	}
	return eq, nil
}
