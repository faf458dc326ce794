package options

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/go-demand-forecaster/forecast/util"
)

const (
	LabelSeasYearly = "yearly"
	LabelSeasWeekly = "weekly"
	LabelSeasDaily  = "daily"

	Year = time.Duration(365.25 * 24 * float64(time.Hour))
	Week = 7 * 24 * time.Hour
	Day  = 24 * time.Hour
)

// SeasonalityOptions toggles the calendar seasonalities to fit along with their maximum
// number of Fourier orders.
type SeasonalityOptions struct {
	Yearly       bool `json:"yearly"`
	YearlyOrders int  `json:"yearly_orders"`
	Weekly       bool `json:"weekly"`
	WeeklyOrders int  `json:"weekly_orders"`
	Daily        bool `json:"daily"`
	DailyOrders  int  `json:"daily_orders"`
}

// NewDefaultSeasonalityOptions generates a default seasonality config with only the yearly
// component enabled
func NewDefaultSeasonalityOptions() SeasonalityOptions {
	return SeasonalityOptions{
		Yearly:       true,
		YearlyOrders: 10,
		Weekly:       false,
		WeeklyOrders: 3,
		Daily:        false,
		DailyOrders:  4,
	}
}

func (s SeasonalityOptions) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	cfgs := s.Configs(0)
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	noCfg := " None"
	if len(cfgs) > 0 {
		noCfg = ""
		fmt.Fprintf(tbl, "%s%sName\tPeriod\tOrders\t\n", prefix, util.IndentExpand(indent, indentGrowth+1))
	}
	fmt.Fprintf(w, "%s%sSeasonality:%s\n", prefix, util.IndentExpand(indent, indentGrowth), noCfg)
	for _, seasCfg := range cfgs {
		fmt.Fprintf(tbl, "%s%s%s\t%s\t%d\t\n",
			prefix, util.IndentExpand(indent, indentGrowth+1),
			seasCfg.Name, seasCfg.Period, seasCfg.Orders)
	}
	return tbl.Flush()
}

// Configs returns the enabled seasonality configs. When interval is positive the orders are
// capped so that the shortest Fourier period stays above twice the sampling interval. Configs
// left with no orders are dropped.
func (s SeasonalityOptions) Configs(interval time.Duration) []SeasonalityConfig {
	var cfgs []SeasonalityConfig
	add := func(enabled bool, name string, period time.Duration, orders int) {
		if !enabled {
			return
		}
		orders = MaxOrders(period, interval, orders)
		if orders <= 0 {
			return
		}
		cfgs = append(cfgs, NewSeasonalityConfig(name, period, orders))
	}
	add(s.Yearly, LabelSeasYearly, Year, s.YearlyOrders)
	add(s.Weekly, LabelSeasWeekly, Week, s.WeeklyOrders)
	add(s.Daily, LabelSeasDaily, Day, s.DailyOrders)
	return cfgs
}

// MaxOrders caps the requested orders below the Nyquist limit of the sampling interval. A
// non-positive interval leaves the requested orders unchanged.
func MaxOrders(period, interval time.Duration, requested int) int {
	if requested < 0 {
		return 0
	}
	if interval <= 0 {
		return requested
	}
	limit := int(math.Ceil(period.Seconds()/(2*interval.Seconds()))) - 1
	if limit < 0 {
		limit = 0
	}
	return min(requested, limit)
}

// SeasonalityConfig represents a single seasonality configuration to model. This will generate
// Fourier series of the specified period and number of orders. E.g. a yearly period with 3
// orders will create 6 Fourier series of order 1, 2, 3 for the sine/cosine components where
// order 1 has a period of 1 year and order 2 has a period of 6 months.
type SeasonalityConfig struct {
	Name   string        `json:"name"`
	Orders int           `json:"orders"`
	Period time.Duration `json:"period"`
}

// NewSeasonalityConfig creates a new seasonality config given a name, period and orders
func NewSeasonalityConfig(name string, period time.Duration, orders int) SeasonalityConfig {
	if orders < 0 {
		orders = 0
	}

	return SeasonalityConfig{
		Name:   name,
		Orders: orders,
		Period: period,
	}
}
