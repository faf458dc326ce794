package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aouyang1/go-demand-forecaster/forecast"
	"github.com/aouyang1/go-demand-forecaster/forecast/options"
	"github.com/aouyang1/go-demand-forecaster/store"
	"github.com/aouyang1/go-demand-forecaster/timedataset"
)

type memSource struct {
	series  map[store.EntityKey]store.TimeSeries
	classes map[store.EntityKey]store.LocalityClass
}

func newMemSource() *memSource {
	return &memSource{
		series:  make(map[store.EntityKey]store.TimeSeries),
		classes: make(map[store.EntityKey]store.LocalityClass),
	}
}

func (m *memSource) add(key store.EntityKey, class store.LocalityClass, t []time.Time, y []float64) {
	ts := make(store.TimeSeries, 0, len(t))
	for i := range t {
		ts = append(ts, store.Observation{T: t[i], Value: y[i]})
	}
	m.series[key] = ts
	m.classes[key] = class
}

func (m *memSource) SeriesFor(key store.EntityKey) store.TimeSeries {
	return m.series[key].Copy()
}

func (m *memSource) LocalityClassFor(key store.EntityKey) (store.LocalityClass, bool) {
	c, ok := m.classes[key]
	return c, ok
}

type stubModel struct {
	end time.Time
}

func (s stubModel) Predict(t []time.Time, regressors forecast.Regressors) (*forecast.Results, error) {
	return &forecast.Results{T: t, Forecast: make([]float64, len(t)), Lower: make([]float64, len(t)), Upper: make([]float64, len(t))}, nil
}

func (s stubModel) TrainEndTime() time.Time {
	return s.end
}

type stubFitter struct {
	calls   atomic.Int32
	delay   time.Duration
	started chan struct{}
	err     error
	lastT   []time.Time
	lastY   []float64
	lastReg forecast.Regressors
	mu      sync.Mutex
}

func (f *stubFitter) Fit(ctx context.Context, t []time.Time, y []float64, regressors forecast.Regressors) (forecast.Model, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastT, f.lastY, f.lastReg = t, y, regressors
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return stubModel{end: t[len(t)-1]}, nil
}

type countingObserver struct {
	hits, misses, fits, evicted atomic.Int32
}

func (o *countingObserver) CacheHit(store.EntityKey)  { o.hits.Add(1) }
func (o *countingObserver) CacheMiss(store.EntityKey) { o.misses.Add(1) }
func (o *countingObserver) FitCompleted(store.EntityKey, time.Duration, error) {
	o.fits.Add(1)
}
func (o *countingObserver) Evicted(store.EntityKey) { o.evicted.Add(1) }

var (
	urbanKey = store.EntityKey{Category: "Paracetamol", Locality: "North"}
	ruralKey = store.EntityKey{Category: "Insulin", Locality: "South"}
	shortKey = store.EntityKey{Category: "Aspirin", Locality: "East"}
)

func newTestSource() *memSource {
	src := newMemSource()
	t := timedataset.GenerateMonthlyT(24, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
	src.add(urbanKey, store.LocalityUrban, t, timedataset.GenerateConstY(24, 100))
	src.add(ruralKey, store.LocalityRural, t, timedataset.GenerateConstY(24, 50))
	src.add(shortKey, store.LocalityUrban, t[:5], timedataset.GenerateConstY(5, 10))
	return src
}

func TestNew(t *testing.T) {
	_, err := New(nil, &stubFitter{})
	assert.ErrorIs(t, err, ErrNoSource)

	_, err = New(newTestSource(), nil)
	assert.ErrorIs(t, err, ErrNoFitter)

	_, err = New(newTestSource(), &stubFitter{}, WithCapacity(0))
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestEnsureTrained(t *testing.T) {
	fitter := &stubFitter{}
	obs := &countingObserver{}
	r, err := New(newTestSource(), fitter, WithObserver(obs))
	require.Nil(t, err)

	tm, err := r.EnsureTrained(context.Background(), urbanKey)
	require.Nil(t, err)
	assert.Equal(t, urbanKey, tm.Key)
	assert.Equal(t, store.LocalityUrban, tm.LocalityClass)
	assert.Len(t, tm.Snapshot, 24)
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), tm.LastTimestamp)
	assert.Equal(t, tm.LastTimestamp, tm.Model.TrainEndTime())
	assert.Equal(t, []float64{1, 1, 1}, tm.Regressors(3)[RegressorUrbanRural])

	fitter.mu.Lock()
	assert.Len(t, fitter.lastReg[RegressorUrbanRural], 24)
	assert.Equal(t, 1.0, fitter.lastReg[RegressorUrbanRural][0])
	fitter.mu.Unlock()

	again, err := r.EnsureTrained(context.Background(), urbanKey)
	require.Nil(t, err)
	assert.Same(t, tm, again)
	assert.Equal(t, int32(1), fitter.calls.Load())

	rural, err := r.EnsureTrained(context.Background(), ruralKey)
	require.Nil(t, err)
	assert.Equal(t, []float64{0, 0}, rural.Regressors(2)[RegressorUrbanRural])

	cached, exists := r.Get(urbanKey)
	require.True(t, exists)
	assert.Same(t, tm, cached)

	assert.Equal(t, []store.EntityKey{ruralKey, urbanKey}, r.Keys())
	assert.Equal(t, Stats{Hits: 1, Misses: 2, Fits: 2, Size: 2}, r.Stats())
	assert.Equal(t, int32(1), obs.hits.Load())
	assert.Equal(t, int32(2), obs.misses.Load())
	assert.Equal(t, int32(2), obs.fits.Load())
}

func TestEnsureTrainedInsufficientData(t *testing.T) {
	fitter := &stubFitter{}
	r, err := New(newTestSource(), fitter)
	require.Nil(t, err)

	testData := map[string]struct {
		key store.EntityKey
	}{
		"five observations": {key: shortKey},
		"unknown key":       {key: store.EntityKey{Category: "Unknown", Locality: "Nowhere"}},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			tm, err := r.EnsureTrained(context.Background(), td.key)
			assert.Nil(t, tm)
			assert.ErrorIs(t, err, ErrInsufficientData)

			var keyErr *KeyError
			require.True(t, errors.As(err, &keyErr))
			assert.Equal(t, td.key, keyErr.Key)
			assert.Equal(t, StageValidate, keyErr.Stage)

			_, exists := r.Get(td.key)
			assert.False(t, exists)
		})
	}
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, int32(0), fitter.calls.Load())
}

func TestEnsureTrainedFitFailure(t *testing.T) {
	upstream := errors.New("solver diverged")
	fitter := &stubFitter{err: upstream}
	r, err := New(newTestSource(), fitter)
	require.Nil(t, err)

	for i := 0; i < 2; i++ {
		_, err = r.EnsureTrained(context.Background(), urbanKey)
		assert.ErrorIs(t, err, ErrUpstreamFitFailure)
		assert.ErrorIs(t, err, upstream)
	}
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, int32(2), fitter.calls.Load())
	assert.Equal(t, uint64(2), r.Stats().FitFailures)
}

func TestEnsureTrainedFitTimeout(t *testing.T) {
	fitter := &stubFitter{delay: time.Second}
	r, err := New(newTestSource(), fitter, WithFitTimeout(20*time.Millisecond))
	require.Nil(t, err)

	_, err = r.EnsureTrained(context.Background(), urbanKey)
	assert.ErrorIs(t, err, ErrUpstreamFitFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var keyErr *KeyError
	require.True(t, errors.As(err, &keyErr))
	assert.Equal(t, StageFit, keyErr.Stage)
	assert.Equal(t, 0, r.Len())
}

func TestEnsureTrainedCallerCanceled(t *testing.T) {
	fitter := &stubFitter{delay: 100 * time.Millisecond}
	r, err := New(newTestSource(), fitter)
	require.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.EnsureTrained(ctx, urbanKey)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnsureTrainedSingleFlight(t *testing.T) {
	fitter := &stubFitter{delay: 50 * time.Millisecond}
	r, err := New(newTestSource(), fitter)
	require.Nil(t, err)

	numCallers := 16
	results := make([]*TrainedModel, numCallers)
	var wg sync.WaitGroup
	for i := 0; i < numCallers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tm, err := r.EnsureTrained(context.Background(), urbanKey)
			assert.Nil(t, err)
			results[i] = tm
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), fitter.calls.Load())
	for i := 1; i < numCallers; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestCapacityEviction(t *testing.T) {
	src := newTestSource()
	third := store.EntityKey{Category: "Amoxicillin", Locality: "West"}
	tSeries := timedataset.GenerateMonthlyT(12, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	src.add(third, store.LocalityRural, tSeries, timedataset.GenerateConstY(12, 5))

	obs := &countingObserver{}
	r, err := New(src, &stubFitter{}, WithCapacity(2), WithObserver(obs))
	require.Nil(t, err)

	ctx := context.Background()
	for _, key := range []store.EntityKey{urbanKey, ruralKey} {
		_, err := r.EnsureTrained(ctx, key)
		require.Nil(t, err)
	}
	// touch urban so rural is least recently used
	_, exists := r.Get(urbanKey)
	require.True(t, exists)

	_, err = r.EnsureTrained(ctx, third)
	require.Nil(t, err)

	assert.Equal(t, 2, r.Len())
	_, exists = r.Get(ruralKey)
	assert.False(t, exists)
	assert.Equal(t, uint64(1), r.Stats().Evictions)
	assert.Equal(t, int32(1), obs.evicted.Load())
}

func TestTTLExpiry(t *testing.T) {
	fitter := &stubFitter{}
	r, err := New(newTestSource(), fitter, WithTTL(30*time.Millisecond))
	require.Nil(t, err)

	_, err = r.EnsureTrained(context.Background(), urbanKey)
	require.Nil(t, err)

	time.Sleep(60 * time.Millisecond)
	_, exists := r.Get(urbanKey)
	assert.False(t, exists)

	_, err = r.EnsureTrained(context.Background(), urbanKey)
	require.Nil(t, err)
	assert.Equal(t, int32(2), fitter.calls.Load())
}

func TestInvalidate(t *testing.T) {
	fitter := &stubFitter{}
	r, err := New(newTestSource(), fitter)
	require.Nil(t, err)

	ctx := context.Background()
	_, err = r.EnsureTrained(ctx, urbanKey)
	require.Nil(t, err)
	_, err = r.EnsureTrained(ctx, ruralKey)
	require.Nil(t, err)

	assert.True(t, r.Invalidate(urbanKey))
	assert.False(t, r.Invalidate(urbanKey))
	assert.Equal(t, 1, r.Len())

	r.InvalidateAll()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, uint64(0), r.Stats().Evictions)

	_, err = r.EnsureTrained(ctx, urbanKey)
	require.Nil(t, err)
	assert.Equal(t, int32(3), fitter.calls.Load())
}

func TestSetSource(t *testing.T) {
	fitter := &stubFitter{}
	r, err := New(newTestSource(), fitter)
	require.Nil(t, err)

	ctx := context.Background()
	_, err = r.EnsureTrained(ctx, urbanKey)
	require.Nil(t, err)

	assert.ErrorIs(t, r.SetSource(nil, true), ErrNoSource)

	require.Nil(t, r.SetSource(newMemSource(), false))
	assert.Equal(t, 1, r.Len())

	require.Nil(t, r.SetSource(newMemSource(), true))
	assert.Equal(t, 0, r.Len())

	_, err = r.EnsureTrained(ctx, urbanKey)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestEnsureTrainedAggregatesDuplicates(t *testing.T) {
	tSeries := timedataset.GenerateMonthlyT(12, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))

	testData := map[string]struct {
		t        []time.Time
		expected int
		last     float64
		err      error
	}{
		"one repeated month": {
			t:        append(append([]time.Time{}, tSeries...), tSeries[11]),
			expected: 12,
			last:     20,
		},
		"every month twice": {
			t:        append(append([]time.Time{}, tSeries...), tSeries...),
			expected: 12,
			last:     20,
		},
		"too few distinct months": {
			t:   append(append([]time.Time{}, tSeries[:6]...), tSeries[:6]...),
			err: ErrInsufficientData,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			src := newMemSource()
			src.add(urbanKey, store.LocalityUrban, td.t, timedataset.GenerateConstY(len(td.t), 10))

			fitter := &stubFitter{}
			r, err := New(src, fitter)
			require.Nil(t, err)

			tm, err := r.EnsureTrained(context.Background(), urbanKey)
			if td.err != nil {
				require.ErrorIs(t, err, td.err)
				assert.Equal(t, 0, r.Len())
				assert.Equal(t, int32(0), fitter.calls.Load())
				return
			}
			require.Nil(t, err)
			require.Len(t, tm.Snapshot, td.expected)
			assert.Equal(t, td.last, tm.Snapshot[td.expected-1].Value)

			fitter.mu.Lock()
			defer fitter.mu.Unlock()
			assert.Equal(t, tm.Snapshot.Times(), fitter.lastT)
			assert.Equal(t, tm.Snapshot.Values(), fitter.lastY)
		})
	}
}

func TestEnsureTrainedSeparatorKeys(t *testing.T) {
	a := store.EntityKey{Category: "a_b", Locality: "c"}
	b := store.EntityKey{Category: "a", Locality: "b_c"}
	require.Equal(t, a.String(), b.String())

	src := newMemSource()
	t24 := timedataset.GenerateMonthlyT(24, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
	src.add(a, store.LocalityUrban, t24, timedataset.GenerateConstY(24, 100))
	src.add(b, store.LocalityRural, t24[:12], timedataset.GenerateConstY(12, 50))

	fitter := &stubFitter{delay: 100 * time.Millisecond}
	r, err := New(src, fitter)
	require.Nil(t, err)

	keys := []store.EntityKey{a, b}
	results := make([]*TrainedModel, len(keys))
	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key store.EntityKey) {
			defer wg.Done()
			tm, err := r.EnsureTrained(context.Background(), key)
			assert.Nil(t, err)
			results[i] = tm
		}(i, key)
	}
	wg.Wait()

	assert.Equal(t, int32(2), fitter.calls.Load())
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.Equal(t, a, results[0].Key)
	assert.Equal(t, store.LocalityUrban, results[0].LocalityClass)
	assert.Len(t, results[0].Snapshot, 24)
	assert.Equal(t, b, results[1].Key)
	assert.Equal(t, store.LocalityRural, results[1].LocalityClass)
	assert.Len(t, results[1].Snapshot, 12)

	for _, key := range keys {
		_, exists := r.Get(key)
		assert.True(t, exists, key.String())
	}
}

func TestSetSourceDuringFit(t *testing.T) {
	fitter := &stubFitter{delay: 100 * time.Millisecond, started: make(chan struct{}, 1)}
	r, err := New(newTestSource(), fitter)
	require.Nil(t, err)

	type result struct {
		tm  *TrainedModel
		err error
	}
	done := make(chan result, 1)
	go func() {
		tm, err := r.EnsureTrained(context.Background(), urbanKey)
		done <- result{tm, err}
	}()
	<-fitter.started

	fresh := newMemSource()
	t12 := timedataset.GenerateMonthlyT(12, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	fresh.add(urbanKey, store.LocalityUrban, t12, timedataset.GenerateConstY(12, 7))
	require.Nil(t, r.SetSource(fresh, true))

	res := <-done
	require.Nil(t, res.err)
	assert.Len(t, res.tm.Snapshot, 24)

	_, exists := r.Get(urbanKey)
	assert.False(t, exists)
	assert.Equal(t, 0, r.Len())

	tm, err := r.EnsureTrained(context.Background(), urbanKey)
	require.Nil(t, err)
	require.Len(t, tm.Snapshot, 12)
	assert.Equal(t, 7.0, tm.Snapshot[0].Value)
	assert.Equal(t, int32(2), fitter.calls.Load())

	_, exists = r.Get(urbanKey)
	assert.True(t, exists)
}

func TestEnsureTrainedLinearFitter(t *testing.T) {
	fitter, err := forecast.NewLinearFitter(options.NewDefaultOptions())
	require.Nil(t, err)

	r, err := New(newTestSource(), fitter)
	require.Nil(t, err)

	tm, err := r.EnsureTrained(context.Background(), ruralKey)
	require.Nil(t, err)

	res, err := tm.Model.Predict(tm.Snapshot.Times(), tm.Regressors(tm.Snapshot.Len()))
	require.Nil(t, err)
	for _, v := range res.Forecast {
		assert.InDelta(t, 50.0, v, 1.0)
	}
}
