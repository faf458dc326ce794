package registry

import (
	"errors"
	"fmt"

	"github.com/aouyang1/go-demand-forecaster/store"
)

var (
	ErrInsufficientData   = errors.New("insufficient data")
	ErrUpstreamFitFailure = errors.New("upstream fit failure")
	ErrNoSource           = errors.New("no time series source")
	ErrNoFitter           = errors.New("no fitter")
	ErrInvalidCapacity    = errors.New("capacity must be positive")
)

// Stage names the training step a KeyError came from.
type Stage string

const (
	StageValidate Stage = "validate"
	StageFit      Stage = "fit"
)

// KeyError attaches the entity key and training stage to a training failure. It matches
// both the registry sentinel and the underlying cause with errors.Is.
type KeyError struct {
	Key   store.EntityKey
	Stage Stage
	Err   error
	Cause error
}

func (e *KeyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s, %s, %s", e.Stage, e.Key, e.Cause.Error(), e.Err.Error())
	}
	return fmt.Sprintf("%s %s, %s", e.Stage, e.Key, e.Err.Error())
}

func (e *KeyError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}
