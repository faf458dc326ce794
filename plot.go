package demandforecaster

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/aouyang1/go-demand-forecaster/season"
	"github.com/aouyang1/go-demand-forecaster/store"
	"github.com/aouyang1/go-demand-forecaster/timedataset"
)

// echarts renders this value as a gap
const missingValue = "-"

// PlotForecast renders an html page with the training series, the in-sample fit, the
// forecast with its bounds over horizon months and the seasonal averages for the key.
func (f *Forecaster) PlotForecast(ctx context.Context, w io.Writer, key store.EntityKey, horizon int) (err error) {
	defer func(start time.Time) { f.observe("plot", key, start, err) }(time.Now())

	if horizon < 1 {
		return fmt.Errorf("got %d, %w", horizon, ErrInvalidHorizon)
	}
	tm, err := f.reg.EnsureTrained(ctx, key)
	if err != nil {
		return err
	}

	fit, err := f.inSample(tm)
	if err != nil {
		return err
	}

	future := timedataset.NextMonthEnds(tm.LastTimestamp, horizon)
	forecastRes, err := tm.Model.Predict(future, tm.Regressors(len(future)))
	if err != nil {
		return predictError(key, err)
	}

	t := append(tm.Snapshot.Times(), future...)
	n := tm.Snapshot.Len()
	pad := make([]float64, len(future))
	histPad := make([]float64, n)
	for i := range pad {
		pad[i] = math.NaN()
	}
	for i := range histPad {
		histPad[i] = math.NaN()
	}

	page := components.NewPage()
	page.PageTitle = key.String()
	page.AddCharts(
		LineTSeries(
			fmt.Sprintf("Demand Forecast %s", key),
			[]string{"Actual", "Fitted", "Forecast", "Lower", "Upper"},
			t,
			[][]float64{
				append(tm.Snapshot.Values(), pad...),
				append(append([]float64{}, fit.Forecast...), pad...),
				append(append([]float64{}, histPad...), forecastRes.Forecast...),
				append(append([]float64{}, histPad...), forecastRes.Lower...),
				append(append([]float64{}, histPad...), forecastRes.Upper...),
			},
		),
		LineTSeries(
			"Forecast Components",
			[]string{"Trend", "Seasonality"},
			t,
			[][]float64{
				append(append([]float64{}, fit.Components.Trend...), forecastRes.Components.Trend...),
				append(append([]float64{}, fit.Components.Seasonality...), forecastRes.Components.Seasonality...),
			},
		),
		BarSeasons("Seasonal Demand", season.Buckets(tm.Snapshot)),
	)
	return page.Render(w)
}

// LineTSeries generates an echart line chart with one series per name over a shared time axis.
// NaN values are rendered as gaps.
func LineTSeries(title string, seriesName []string, t []time.Time, y [][]float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: title,
			},
		),
		charts.WithTooltipOpts(
			opts.Tooltip{
				Trigger: "axis",
			},
		),
	)

	xAxis := make([]string, 0, len(t))
	for _, tPnt := range t {
		xAxis = append(xAxis, tPnt.Format(DateLayout))
	}
	line = line.SetXAxis(xAxis)

	for i, series := range seriesName {
		lineData := make([]opts.LineData, 0, len(y[i]))
		for _, v := range y[i] {
			if math.IsNaN(v) {
				lineData = append(lineData, opts.LineData{Value: missingValue})
				continue
			}
			lineData = append(lineData, opts.LineData{Value: v})
		}
		line = line.AddSeries(series, lineData)
	}
	return line
}

// BarSeasons generates an echart bar chart of seasonal averages colored per season.
func BarSeasons(title string, buckets []season.Bucket) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: title,
			},
		),
	)

	names := make([]string, 0, len(buckets))
	barData := make([]opts.BarData, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
		barData = append(barData, opts.BarData{
			Name:      b.Name,
			Value:     b.Value,
			ItemStyle: &opts.ItemStyle{Color: b.Color},
		})
	}
	bar.SetXAxis(names).AddSeries("Average Demand", barData)
	return bar
}
