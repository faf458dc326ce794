package linearmodel

import (
	"errors"
)

var (
	ErrNoOptions             = errors.New("no initialized model options")
	ErrTargetLenMismatch     = errors.New("target length does not match target rows")
	ErrNoTrainingMatrix      = errors.New("no training matrix")
	ErrNoTargetMatrix        = errors.New("no target matrix")
	ErrNoDesignMatrix        = errors.New("no design matrix for inference")
	ErrFeatureLenMismatch    = errors.New("number of features does not match number of model coefficients")
	ErrNegativeLambda        = errors.New("negative lambda")
	ErrNegativeIterations    = errors.New("negative iterations")
	ErrNegativeTolerance     = errors.New("negative tolerance")
	ErrNegativePenaltyFactor = errors.New("negative penalty factor")
	ErrPenaltyFactorsSize    = errors.New("penalty factors do not have the same number of entries as training features")
	ErrWarmStartBetaSize     = errors.New("warm start beta does not have the same number of coefficients as training features")
)
