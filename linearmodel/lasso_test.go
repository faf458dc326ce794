package linearmodel

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/aouyang1/go-demand-forecaster/timedataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newDense(x [][]float64) *mat.Dense {
	m := len(x)
	n := len(x[0])
	data := make([]float64, 0, m*n)
	for _, row := range x {
		data = append(data, row...)
	}
	return mat.NewDense(m, n, data)
}

func TestLassoOptionsValidate(t *testing.T) {
	testData := map[string]struct {
		opt      *LassoOptions
		err      error
		expected *LassoOptions
	}{
		"nil": {nil, nil, NewDefaultLassoOptions()},
		"valid": {
			&LassoOptions{
				Lambda:     1.0,
				Iterations: 100,
				Tolerance:  1e-5,
			}, nil,
			&LassoOptions{
				Lambda:     1.0,
				Iterations: 100,
				Tolerance:  1e-5,
			},
		},
		"invalid lambda": {
			&LassoOptions{Lambda: -1.0},
			ErrNegativeLambda, nil,
		},
		"invalid iterations": {
			&LassoOptions{Iterations: -1.0},
			ErrNegativeIterations, nil,
		},
		"invalid tolerance": {
			&LassoOptions{Tolerance: -1.0},
			ErrNegativeTolerance, nil,
		},
		"invalid penalty factor": {
			&LassoOptions{PenaltyFactors: []float64{0, -1}},
			ErrNegativePenaltyFactor, nil,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			opt, err := td.opt.Validate()
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expected, opt)
		})
	}
}

func TestLassoRegression(t *testing.T) {
	// y = 2 + 3*x0 + 4*x1
	tol := 1e-5
	desTol := 1e-6
	lambda := 0.0
	testData := map[string]struct {
		x         [][]float64
		y         []float64
		opt       *LassoOptions
		intercept float64
		coef      []float64
	}{
		"model intercept": {
			x: [][]float64{
				{0, 0},
				{3, 5},
				{9, 20},
				{12, 6},
				{15, 10},
			},
			y: []float64{2, 31, 109, 62, 87},
			opt: func() *LassoOptions {
				opt := NewDefaultLassoOptions()
				opt.Lambda = lambda
				opt.Tolerance = desTol
				return opt
			}(),
			intercept: 2.0,
			coef:      []float64{3.0, 4.0},
		},
		"model no intercept": {
			x: [][]float64{
				{1, 0, 0},
				{1, 3, 5},
				{1, 9, 20},
				{1, 12, 6},
				{1, 15, 10},
			},
			y: []float64{2, 31, 109, 62, 87},
			opt: func() *LassoOptions {
				opt := NewDefaultLassoOptions()
				opt.Lambda = lambda
				opt.Tolerance = desTol
				opt.FitIntercept = false
				return opt
			}(),
			intercept: 0.0,
			coef:      []float64{2.0, 3.0, 4.0},
		},
		"model constant": {
			x: [][]float64{
				{1},
				{1},
				{1},
				{1},
				{1},
			},
			y: []float64{3, 3, 3, 3, 3},
			opt: func() *LassoOptions {
				opt := NewDefaultLassoOptions()
				opt.Lambda = lambda
				opt.Tolerance = desTol
				opt.FitIntercept = false
				return opt
			}(),
			intercept: 0.0,
			coef:      []float64{3.0},
		},
		"unpenalized features with large lambda": {
			x: [][]float64{
				{0, 0},
				{3, 5},
				{9, 20},
				{12, 6},
				{15, 10},
			},
			y: []float64{2, 31, 109, 62, 87},
			opt: func() *LassoOptions {
				opt := NewDefaultLassoOptions()
				opt.Lambda = 1e6
				opt.PenaltyFactors = []float64{0, 0}
				opt.Tolerance = desTol
				return opt
			}(),
			intercept: 2.0,
			coef:      []float64{3.0, 4.0},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			x := newDense(td.x)
			y := mat.NewDense(len(td.y), 1, td.y)

			model, err := NewLassoRegression(td.opt)
			require.Nil(t, err)

			err = model.Fit(context.Background(), x, y)
			require.Nil(t, err)

			assert.InDelta(t, td.intercept, model.Intercept(), tol, "intercept")
			assert.InDeltaSlice(t, td.coef, model.Coef(), tol, "coefficients")

			r2, err := model.Score(x, y)
			require.Nil(t, err)
			assert.InDelta(t, 1.0, r2, tol, "score")
		})
	}
}

func TestLassoRegressionPenalizedFeatureZeroed(t *testing.T) {
	// y = 5 + 2*x0, x1 is noise-free but unrelated
	x := newDense([][]float64{
		{1, 0.1},
		{2, -0.1},
		{3, 0.1},
		{4, -0.1},
		{5, 0.1},
		{6, -0.1},
	})
	y := mat.NewDense(6, 1, []float64{7, 9, 11, 13, 15, 17})

	opt := NewDefaultLassoOptions()
	opt.Lambda = 100.0
	opt.PenaltyFactors = []float64{0, 1}
	opt.Tolerance = 1e-8
	model, err := NewLassoRegression(opt)
	require.Nil(t, err)
	require.Nil(t, model.Fit(context.Background(), x, y))

	coef := model.Coef()
	require.Len(t, coef, 2)
	assert.Equal(t, 0.0, coef[1])
	assert.InDelta(t, 2.0, coef[0], 1e-3)
	assert.InDelta(t, 5.0, model.Intercept(), 1e-2)
}

func TestLassoRegressionZeroColumn(t *testing.T) {
	x := newDense([][]float64{
		{1, 0},
		{2, 0},
		{3, 0},
	})
	y := mat.NewDense(3, 1, []float64{2, 4, 6})

	opt := NewDefaultLassoOptions()
	opt.Lambda = 0
	opt.Tolerance = 1e-8
	opt.FitIntercept = false
	model, err := NewLassoRegression(opt)
	require.Nil(t, err)
	require.Nil(t, model.Fit(context.Background(), x, y))

	coef := model.Coef()
	assert.False(t, math.IsNaN(coef[1]))
	assert.Equal(t, 0.0, coef[1])
	assert.InDelta(t, 2.0, coef[0], 1e-6)
}

func TestLassoRegressionErrors(t *testing.T) {
	x := newDense([][]float64{{1}, {2}})

	testData := map[string]struct {
		opt *LassoOptions
		x   mat.Matrix
		y   mat.Matrix
		err error
	}{
		"no training matrix": {
			opt: NewDefaultLassoOptions(),
			y:   mat.NewDense(2, 1, []float64{1, 2}),
			err: ErrNoTrainingMatrix,
		},
		"no target matrix": {
			opt: NewDefaultLassoOptions(),
			x:   x,
			err: ErrNoTargetMatrix,
		},
		"target length mismatch": {
			opt: NewDefaultLassoOptions(),
			x:   x,
			y:   mat.NewDense(3, 1, []float64{1, 2, 3}),
			err: ErrTargetLenMismatch,
		},
		"penalty factors size": {
			opt: &LassoOptions{PenaltyFactors: []float64{1, 1}, Iterations: 10},
			x:   x,
			y:   mat.NewDense(2, 1, []float64{1, 2}),
			err: ErrPenaltyFactorsSize,
		},
		"warm start size": {
			opt: &LassoOptions{WarmStartBeta: []float64{1, 1, 1}, Iterations: 10, FitIntercept: true},
			x:   x,
			y:   mat.NewDense(2, 1, []float64{1, 2}),
			err: ErrWarmStartBetaSize,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			model, err := NewLassoRegression(td.opt)
			require.Nil(t, err)
			err = model.Fit(context.Background(), td.x, td.y)
			assert.ErrorIs(t, err, td.err)
		})
	}
}

func TestLassoRegressionContextCanceled(t *testing.T) {
	x := newDense([][]float64{{1}, {2}, {3}})
	y := mat.NewDense(3, 1, []float64{1, 2, 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model, err := NewLassoRegression(nil)
	require.Nil(t, err)
	err = model.Fit(ctx, x, y)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, model.Iterations())
}

func TestLassoRegressionPredictFeatureMismatch(t *testing.T) {
	x := newDense([][]float64{{1}, {2}, {3}})
	y := mat.NewDense(3, 1, []float64{1, 2, 3})

	model, err := NewLassoRegression(nil)
	require.Nil(t, err)
	require.Nil(t, model.Fit(context.Background(), x, y))

	_, err = model.Predict(newDense([][]float64{{1, 2}}))
	assert.ErrorIs(t, err, ErrFeatureLenMismatch)

	_, err = model.Predict(nil)
	assert.ErrorIs(t, err, ErrNoDesignMatrix)
}

func TestSoftThreshold(t *testing.T) {
	testData := map[string]struct {
		x        float64
		gamma    float64
		expected float64
	}{
		"within threshold": {0.5, 1.0, 0.0},
		"positive":         {3.0, 1.0, 2.0},
		"negative":         {-3.0, 1.0, -2.0},
		"no threshold":     {-3.0, 0.0, -3.0},
	}
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, SoftThreshold(td.x, td.gamma))
		})
	}
}

func generateBenchData(months, nOrders int) (mat.Matrix, mat.Matrix) {
	t := timedataset.GenerateMonthlyT(months, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	out := timedataset.GenerateConstY(months, 98.3).
		Add(timedataset.GenerateYearlyWaveY(t, 10.5, time.March)).
		Add(timedataset.GenerateNoise(months, 3.2, 5))

	period := 365.25 * 86400.0
	data := make([]float64, 0, months*nOrders*2)
	for _, tPnt := range t {
		for order := 1; order <= nOrders; order++ {
			rad := 2.0 * math.Pi * float64(order) / period * float64(tPnt.Unix())
			data = append(data, math.Sin(rad), math.Cos(rad))
		}
	}
	return mat.NewDense(months, nOrders*2, data), mat.NewDense(months, 1, out)
}

func BenchmarkLassoRegression(b *testing.B) {
	x, y := generateBenchData(240, 5)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		model, err := NewLassoRegression(nil)
		if err != nil {
			b.Error(err)
			continue
		}
		if err := model.Fit(context.Background(), x, y); err != nil {
			b.Error(err)
			continue
		}
	}
}
