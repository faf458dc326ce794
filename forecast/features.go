package forecast

import (
	"math"
	"time"

	"github.com/aouyang1/go-demand-forecaster/feature"
	"github.com/aouyang1/go-demand-forecaster/forecast/options"
	"gonum.org/v1/gonum/stat"
)

// RegressorStat holds the training mean and standard deviation used to standardize a regressor
type RegressorStat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

func newRegressorStats(regressors Regressors) map[string]RegressorStat {
	stats := make(map[string]RegressorStat, len(regressors))
	for name, vals := range regressors {
		mean, std := stat.MeanStdDev(vals, nil)
		if math.IsNaN(std) {
			std = 0
		}
		stats[name] = RegressorStat{Mean: mean, Std: std}
	}
	return stats
}

// featureGenerator produces the design matrix columns for any set of times given the state
// captured at training time
type featureGenerator struct {
	trainStartTime time.Time
	trainEndTime   time.Time
	changepoints   []options.Changepoint
	seasonalities  []options.SeasonalityConfig
	regressorStats map[string]RegressorStat
}

func (g featureGenerator) generate(t []time.Time, regressors Regressors) *feature.Set {
	set := feature.NewSet()

	growth := feature.Linear()
	set.Set(growth, growth.Generate(t, g.trainStartTime, g.trainEndTime))

	for _, chpt := range g.changepoints {
		// changepoints after the training window were never modeled
		if chpt.T.After(g.trainEndTime) {
			continue
		}
		f := feature.NewChangepoint(chpt.Name, feature.ChangepointCompSlope)
		set.Set(f, f.Generate(t, chpt.T, g.trainStartTime, g.trainEndTime))
	}

	for _, seasCfg := range g.seasonalities {
		for order := 1; order <= seasCfg.Orders; order++ {
			sinFeat := feature.NewSeasonality(seasCfg.Name, feature.FourierCompSin, order)
			set.Set(sinFeat, sinFeat.Generate(t, seasCfg.Period))

			cosFeat := feature.NewSeasonality(seasCfg.Name, feature.FourierCompCos, order)
			set.Set(cosFeat, cosFeat.Generate(t, seasCfg.Period))
		}
	}

	for name, rs := range g.regressorStats {
		vals, exists := regressors[name]
		if !exists {
			continue
		}
		f := feature.NewRegressor(name)
		set.Set(f, f.Standardize(vals, rs.Mean, rs.Std))
	}
	return set
}

func (g featureGenerator) changepointTime(name string) (time.Time, bool) {
	for _, chpt := range g.changepoints {
		if chpt.Name == name {
			return chpt.T, true
		}
	}
	return time.Time{}, false
}
