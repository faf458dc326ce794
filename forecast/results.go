package forecast

import "time"

// Results holds the forecast and its bounds per time point. All slices share the length of T.
type Results struct {
	T          []time.Time `json:"time"`
	Forecast   []float64   `json:"forecast"`
	Upper      []float64   `json:"upper"`
	Lower      []float64   `json:"lower"`
	Components Components  `json:"components"`
}

// Components breaks the forecast down into its trend, seasonal and regressor contributions. In
// multiplicative mode the seasonal and regressor components are fractions of the trend.
type Components struct {
	Trend       []float64 `json:"trend"`
	Seasonality []float64 `json:"seasonality"`
	Regressors  []float64 `json:"regressors"`
}
