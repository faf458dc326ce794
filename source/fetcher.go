package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sony/gobreaker"

	"github.com/aouyang1/go-demand-forecaster/store"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrCircuitOpen      = errors.New("circuit breaker open")
	ErrNoURL            = errors.New("no url configured")
)

// Fetcher retrieves the raw dataset rows.
type Fetcher interface {
	Fetch(ctx context.Context) ([]store.Row, error)
}

type HTTPOptions struct {
	Timeout          time.Duration
	BreakerName      string
	MaxRequests      uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
	ConsecutiveFails uint32
}

func NewDefaultHTTPOptions() *HTTPOptions {
	return &HTTPOptions{
		Timeout:          30 * time.Second,
		BreakerName:      "dataset",
		MaxRequests:      1,
		Interval:         time.Minute,
		OpenTimeout:      2 * time.Minute,
		ConsecutiveFails: 3,
	}
}

// HTTPFetcher downloads a CSV dataset over HTTP. Every call goes through a circuit
// breaker so a failing upstream is not hammered by scheduled reloads. Failures are never
// retried.
type HTTPFetcher struct {
	url     string
	client  *http.Client
	timeout time.Duration
	circuit *gobreaker.CircuitBreaker
}

func NewHTTPFetcher(url string, client *http.Client, opt *HTTPOptions) (*HTTPFetcher, error) {
	if url == "" {
		return nil, ErrNoURL
	}
	if opt == nil {
		opt = NewDefaultHTTPOptions()
	}
	if client == nil {
		client = http.DefaultClient
	}

	fails := opt.ConsecutiveFails
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opt.BreakerName,
		MaxRequests: opt.MaxRequests,
		Interval:    opt.Interval,
		Timeout:     opt.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return fails > 0 && counts.ConsecutiveFailures >= fails
		},
	})

	return &HTTPFetcher{
		url:     url,
		client:  client,
		timeout: opt.Timeout,
		circuit: cb,
	}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]store.Row, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	result, err := f.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%d, %w", resp.StatusCode, ErrUnexpectedStatus)
		}
		return DecodeCSV(resp.Body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		if errors.Is(err, store.ErrLoadFailure) {
			return nil, fmt.Errorf("fetching %s, %w", f.url, err)
		}
		return nil, fmt.Errorf("fetching %s, %w, %w", f.url, err, store.ErrLoadFailure)
	}

	rows, ok := result.([]store.Row)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker, %w", store.ErrLoadFailure)
	}
	return rows, nil
}

// State reports the circuit breaker state.
func (f *HTTPFetcher) State() string {
	return f.circuit.State().String()
}

// FileFetcher reads a CSV dataset from the local filesystem.
type FileFetcher struct {
	path string
}

func NewFileFetcher(path string) *FileFetcher {
	return &FileFetcher{path: path}
}

func (f *FileFetcher) Fetch(ctx context.Context) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w, %w", err, store.ErrLoadFailure)
	}
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s, %w, %w", f.path, err, store.ErrLoadFailure)
	}
	defer file.Close()

	return DecodeCSV(file)
}

// Load fetches the rows and builds a store from them.
func Load(ctx context.Context, f Fetcher, opts ...store.LoadOption) (*store.Store, *store.LoadReport, error) {
	rows, err := f.Fetch(ctx)
	if err != nil {
		return nil, nil, err
	}
	return store.Load(rows, opts...)
}
