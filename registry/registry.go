// Package registry owns trained models per entity key. Models are trained lazily on first
// use, cached in a bounded LRU with an optional time-to-live and trained at most once
// concurrently per key.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/aouyang1/go-demand-forecaster/forecast"
	"github.com/aouyang1/go-demand-forecaster/logger"
	"github.com/aouyang1/go-demand-forecaster/store"
	"github.com/aouyang1/go-demand-forecaster/timedataset"
)

// RegressorUrbanRural is the constant regressor column marking urban keys with 1.
const RegressorUrbanRural = "urban_rural"

const (
	DefaultCapacity   = 512
	DefaultTTL        = 24 * time.Hour
	DefaultFitTimeout = 30 * time.Second
)

// Source is the read side of the time series store the registry trains from.
type Source interface {
	SeriesFor(key store.EntityKey) store.TimeSeries
	LocalityClassFor(key store.EntityKey) (store.LocalityClass, bool)
}

// Observer receives registry events. Implementations must be safe for concurrent use.
type Observer interface {
	CacheHit(key store.EntityKey)
	CacheMiss(key store.EntityKey)
	FitCompleted(key store.EntityKey, took time.Duration, err error)
	Evicted(key store.EntityKey)
}

// TrainedModel is a fitted model together with the exact series it was trained on. Repeated
// timestamps in the source are summed in the snapshot.
type TrainedModel struct {
	Key           store.EntityKey
	Model         forecast.Model
	Snapshot      store.TimeSeries
	LocalityClass store.LocalityClass
	LastTimestamp time.Time
	TrainedAt     time.Time
	FitDuration   time.Duration

	dropped atomic.Bool
}

// Regressors returns the constant regressor columns of length n for this key.
func (tm *TrainedModel) Regressors(n int) forecast.Regressors {
	return newRegressors(tm.LocalityClass, n)
}

func newRegressors(class store.LocalityClass, n int) forecast.Regressors {
	val := 0.0
	if class.IsUrban() {
		val = 1.0
	}
	col := make([]float64, n)
	for i := range col {
		col[i] = val
	}
	return forecast.Regressors{RegressorUrbanRural: col}
}

// Stats is a point in time view of registry counters.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Fits        uint64
	FitFailures uint64
	Evictions   uint64
	Size        int
}

type Option func(*Registry) error

func WithCapacity(n int) Option {
	return func(r *Registry) error {
		if n <= 0 {
			return fmt.Errorf("%d, %w", n, ErrInvalidCapacity)
		}
		r.capacity = n
		return nil
	}
}

// WithTTL sets how long a trained model is served before retraining. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) error {
		r.ttl = ttl
		return nil
	}
}

// WithFitTimeout bounds a single fit. Zero disables the bound.
func WithFitTimeout(d time.Duration) Option {
	return func(r *Registry) error {
		r.fitTimeout = d
		return nil
	}
}

func WithObserver(o Observer) Option {
	return func(r *Registry) error {
		r.observer = o
		return nil
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) error {
		if l != nil {
			r.log = l
		}
		return nil
	}
}

type Registry struct {
	capacity   int
	ttl        time.Duration
	fitTimeout time.Duration
	observer   Observer
	log        *logger.Logger

	fitter forecast.Fitter

	mu  sync.RWMutex
	src Source

	cache *expirable.LRU[store.EntityKey, *TrainedModel]
	group singleflight.Group
	// generation is bumped on every invalidation. Fits started under an older generation
	// are returned to their callers but never cached.
	generation atomic.Uint64

	hits        atomic.Uint64
	misses      atomic.Uint64
	fits        atomic.Uint64
	fitFailures atomic.Uint64
	evictions   atomic.Uint64
}

func New(src Source, fitter forecast.Fitter, opts ...Option) (*Registry, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	if fitter == nil {
		return nil, ErrNoFitter
	}

	r := &Registry{
		capacity:   DefaultCapacity,
		ttl:        DefaultTTL,
		fitTimeout: DefaultFitTimeout,
		log:        logger.Nop(),
		fitter:     fitter,
		src:        src,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.log = r.log.With(logger.String("component", "registry"))
	r.cache = expirable.NewLRU[store.EntityKey, *TrainedModel](r.capacity, r.onEvict, r.ttl)
	return r, nil
}

// onEvict runs for every removal from the cache. Explicit invalidations mark the entry
// beforehand so only capacity and expiry removals count as evictions.
func (r *Registry) onEvict(key store.EntityKey, tm *TrainedModel) {
	if tm != nil && tm.dropped.Load() {
		return
	}
	r.evictions.Add(1)
	if r.observer != nil {
		r.observer.Evicted(key)
	}
}

// Source returns the series source models are currently trained from.
func (r *Registry) Source() Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.src
}

// SetSource swaps the series source used for future training. Cached models are kept
// unless purge is set.
func (r *Registry) SetSource(src Source, purge bool) error {
	if src == nil {
		return ErrNoSource
	}
	r.mu.Lock()
	r.src = src
	r.mu.Unlock()

	if purge {
		r.InvalidateAll()
	}
	return nil
}

// Get returns the cached model for the key without training.
func (r *Registry) Get(key store.EntityKey) (*TrainedModel, bool) {
	return r.cache.Get(key)
}

// EnsureTrained returns the cached model for the key, training and caching one on a miss.
// Concurrent callers for the same key share a single fit. Failures are not cached.
func (r *Registry) EnsureTrained(ctx context.Context, key store.EntityKey) (*TrainedModel, error) {
	if tm, exists := r.cache.Get(key); exists {
		r.hits.Add(1)
		if r.observer != nil {
			r.observer.CacheHit(key)
		}
		return tm, nil
	}
	r.misses.Add(1)
	if r.observer != nil {
		r.observer.CacheMiss(key)
	}

	// the fit is detached from the caller so one canceled waiter does not fail the others
	fitCtx := context.WithoutCancel(ctx)
	gen := r.generation.Load()
	ch := r.group.DoChan(flightKey(gen, key), func() (interface{}, error) {
		if tm, exists := r.cache.Peek(key); exists {
			return tm, nil
		}
		tm, err := r.train(fitCtx, key)
		if err != nil {
			return nil, err
		}
		if r.generation.Load() != gen {
			r.log.Debug("discarding model trained before invalidation",
				logger.String("key", key.String()),
			)
			return tm, nil
		}
		r.cache.Add(key, tm)
		return tm, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*TrainedModel), nil
	}
}

// flightKey identifies one fit. Category and locality are quoted so keys containing the
// separator cannot collide.
func flightKey(gen uint64, key store.EntityKey) string {
	return strconv.FormatUint(gen, 10) + "|" + strconv.Quote(key.Category) + "|" + strconv.Quote(key.Locality)
}

func (r *Registry) train(ctx context.Context, key store.EntityKey) (*TrainedModel, error) {
	src := r.Source()
	raw := src.SeriesFor(key)
	if raw.Len() < store.MinTrainingPoints {
		return nil, r.insufficient(key, raw.Len())
	}
	class, _ := src.LocalityClassFor(key)

	// repeated timestamps are summed so the fitter sees a strictly increasing series
	ds, err := timedataset.NewAggregatedDataset(raw.Times(), raw.Values())
	if err != nil {
		return nil, &KeyError{Key: key, Stage: StageValidate, Err: ErrInsufficientData, Cause: err}
	}
	if ds.Len() < store.MinTrainingPoints {
		return nil, r.insufficient(key, ds.Len())
	}
	series := make(store.TimeSeries, 0, ds.Len())
	for i := range ds.T {
		series = append(series, store.Observation{T: ds.T[i], Value: ds.Y[i]})
	}

	if r.fitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.fitTimeout)
		defer cancel()
	}

	start := time.Now()
	model, err := r.fitter.Fit(ctx, ds.T, ds.Y, newRegressors(class, ds.Len()))
	took := time.Since(start)
	if r.observer != nil {
		r.observer.FitCompleted(key, took, err)
	}
	if err != nil {
		r.fitFailures.Add(1)
		r.log.Warn("fit failed",
			logger.String("key", key.String()),
			logger.Duration("took", took),
			logger.Error(err),
		)
		return nil, &KeyError{Key: key, Stage: StageFit, Err: ErrUpstreamFitFailure, Cause: err}
	}
	r.fits.Add(1)
	r.log.Info("trained model",
		logger.String("key", key.String()),
		logger.Int("points", series.Len()),
		logger.String("locality_class", string(class)),
		logger.Duration("took", took),
	)

	return &TrainedModel{
		Key:           key,
		Model:         model,
		Snapshot:      series,
		LocalityClass: class,
		LastTimestamp: series.Last(),
		TrainedAt:     time.Now(),
		FitDuration:   took,
	}, nil
}

func (r *Registry) insufficient(key store.EntityKey, n int) error {
	r.log.Debug("not enough observations to train",
		logger.String("key", key.String()),
		logger.Int("points", n),
	)
	return &KeyError{
		Key:   key,
		Stage: StageValidate,
		Err:   ErrInsufficientData,
		Cause: fmt.Errorf("%d observations, need at least %d", n, store.MinTrainingPoints),
	}
}

// Invalidate drops the cached model for the key. It reports whether one was present.
func (r *Registry) Invalidate(key store.EntityKey) bool {
	r.generation.Add(1)
	if tm, exists := r.cache.Peek(key); exists {
		tm.dropped.Store(true)
	}
	return r.cache.Remove(key)
}

// InvalidateAll drops every cached model.
func (r *Registry) InvalidateAll() {
	r.generation.Add(1)
	for _, tm := range r.cache.Values() {
		tm.dropped.Store(true)
	}
	r.cache.Purge()
}

// Len returns the number of cached models.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Keys returns the keys of every cached model in sorted order.
func (r *Registry) Keys() []store.EntityKey {
	keys := r.cache.Keys()
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Less(keys[j])
	})
	return keys
}

func (r *Registry) Stats() Stats {
	return Stats{
		Hits:        r.hits.Load(),
		Misses:      r.misses.Load(),
		Fits:        r.fits.Load(),
		FitFailures: r.fitFailures.Load(),
		Evictions:   r.evictions.Load(),
		Size:        r.cache.Len(),
	}
}
