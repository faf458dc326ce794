// Package scheduler periodically reloads the demand dataset and retires models trained on
// the previous data.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aouyang1/go-demand-forecaster/logger"
	"github.com/aouyang1/go-demand-forecaster/registry"
	"github.com/aouyang1/go-demand-forecaster/source"
	"github.com/aouyang1/go-demand-forecaster/store"
)

// Reloader fetches a fresh dataset and swaps it into the registry, dropping every cached
// model so the next request trains on the new series.
type Reloader struct {
	fetcher  source.Fetcher
	reg      *registry.Registry
	loadOpts []store.LoadOption
	log      *logger.Logger

	mu       sync.Mutex
	lastLoad time.Time
	report   *store.LoadReport
}

func NewReloader(fetcher source.Fetcher, reg *registry.Registry, log *logger.Logger, opts ...store.LoadOption) *Reloader {
	if log == nil {
		log = logger.Nop()
	}
	return &Reloader{
		fetcher:  fetcher,
		reg:      reg,
		loadOpts: opts,
		log:      log.With(logger.String("component", "reloader")),
	}
}

// Reload runs one fetch and swap. A failed load leaves the current store and models in place.
func (r *Reloader) Reload(ctx context.Context) error {
	s, report, err := source.Load(ctx, r.fetcher, r.loadOpts...)
	if err != nil {
		r.log.Error("reload failed", logger.Error(err))
		return err
	}
	if err := r.reg.SetSource(s, true); err != nil {
		return fmt.Errorf("swap source, %w", err)
	}

	start, end := s.DateRange()
	r.log.Info("reloaded dataset",
		logger.Int("records", s.Len()),
		logger.Int("dropped", report.Dropped),
		logger.Int("entities", len(s.Keys())),
		logger.Time("from", start),
		logger.Time("to", end),
	)

	r.mu.Lock()
	r.lastLoad = time.Now()
	r.report = report
	r.mu.Unlock()
	return nil
}

// LastReport returns the time and report of the last successful reload.
func (r *Reloader) LastReport() (time.Time, *store.LoadReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastLoad, r.report
}

// Scheduler runs the reloader on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

// New schedules the reloader using a standard five field cron spec or a descriptor such as
// "@daily" or "@every 1h".
func New(spec string, r *Reloader, timeout time.Duration, log *logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.Nop()
	}
	cl := cronLogger{log: log.With(logger.String("component", "scheduler"))}
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Scheduler{cron: c, timeout: timeout}
	_, err := c.AddFunc(spec, func() {
		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		// failures are logged by the reloader and retried on the next tick
		_ = r.Reload(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q, %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running reload to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Next returns the next scheduled run time.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(keysAndValues []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, logger.String(key, fmt.Sprint(keysAndValues[i+1])))
	}
	return fields
}
