package main

import (
	"context"
	"fmt"
	"net/http"

	demandforecaster "github.com/aouyang1/go-demand-forecaster"
	"github.com/aouyang1/go-demand-forecaster/config"
	"github.com/aouyang1/go-demand-forecaster/forecast"
	"github.com/aouyang1/go-demand-forecaster/logger"
	"github.com/aouyang1/go-demand-forecaster/registry"
	"github.com/aouyang1/go-demand-forecaster/source"
	"github.com/aouyang1/go-demand-forecaster/store"
	"github.com/aouyang1/go-demand-forecaster/telemetry"
)

// app wires every component from a loaded configuration.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	rec      *telemetry.Recorder
	fetcher  source.Fetcher
	loadOpts []store.LoadOption
	store    *store.Store
	report   *store.LoadReport
	reg      *registry.Registry
	f        *demandforecaster.Forecaster
}

func newFetcher(cfg config.SourceConfig) (source.Fetcher, error) {
	if cfg.URL != "" {
		opt := source.NewDefaultHTTPOptions()
		opt.Timeout = cfg.Timeout
		return source.NewHTTPFetcher(cfg.URL, &http.Client{}, opt)
	}
	if cfg.Path != "" {
		return source.NewFileFetcher(cfg.Path), nil
	}
	return nil, config.ErrNoDataSource
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, err
	}

	fetcher, err := newFetcher(cfg.Source)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		rec:     telemetry.New(),
		fetcher: fetcher,
	}
	if len(cfg.Source.DateLayouts) > 0 {
		a.loadOpts = append(a.loadOpts, store.WithDateLayouts(cfg.Source.DateLayouts...))
	}

	a.store, a.report, err = source.Load(ctx, fetcher, a.loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading dataset, %w", err)
	}
	start, end := a.store.DateRange()
	log.Info("loaded dataset",
		logger.Int("records", a.store.Len()),
		logger.Int("dropped", a.report.Dropped),
		logger.Time("from", start),
		logger.Time("to", end),
		logger.Strings("medicines", a.store.Categories()),
		logger.Strings("regions", a.store.Localities()),
	)

	fitter, err := forecast.NewLinearFitter(cfg.Model.ForecastOptions())
	if err != nil {
		return nil, fmt.Errorf("invalid model configuration, %w", err)
	}

	a.reg, err = registry.New(a.store, fitter,
		registry.WithCapacity(cfg.Registry.Capacity),
		registry.WithTTL(cfg.Registry.TTL),
		registry.WithFitTimeout(cfg.Registry.FitTimeout),
		registry.WithObserver(a.rec),
		registry.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	a.f = demandforecaster.New(a.reg,
		demandforecaster.WithLogger(log),
		demandforecaster.WithRecorder(a.rec),
	)
	return a, nil
}
