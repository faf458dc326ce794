package demandforecaster

import (
	"github.com/aouyang1/go-demand-forecaster/forecast"
)

// ForecastPoint is one future month of postprocessed demand. Every value is a non-negative
// integer.
type ForecastPoint struct {
	Month      string `json:"month"`
	Date       string `json:"date"`
	Demand     int    `json:"demand"`
	LowerBound int    `json:"lowerBound"`
	UpperBound int    `json:"upperBound"`
	Threshold  int    `json:"threshold"`
}

// PerformanceMetrics are in-sample fit scores rounded to two decimals. MAPE and Accuracy
// are percentages.
type PerformanceMetrics struct {
	MAE      float64 `json:"mae"`
	MAPE     float64 `json:"mape"`
	RMSE     float64 `json:"rmse"`
	Accuracy float64 `json:"accuracy"`
}

func newPerformanceMetrics(s forecast.Scores) PerformanceMetrics {
	r := s.Round(metricDecimals)
	return PerformanceMetrics{
		MAE:      r.MAE,
		MAPE:     r.MAPE,
		RMSE:     r.RMSE,
		Accuracy: r.Accuracy,
	}
}

type Forecast struct {
	Predictions      []ForecastPoint    `json:"predictions"`
	RegionType       string             `json:"regionType"`
	ModelPerformance PerformanceMetrics `json:"modelPerformance"`
}

// HistoricalPoint pairs an observed value with the in-sample model prediction.
type HistoricalPoint struct {
	Month     string `json:"month"`
	Actual    int    `json:"actual"`
	Predicted int    `json:"predicted"`
}
