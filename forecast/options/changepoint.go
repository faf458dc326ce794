package options

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/go-demand-forecaster/forecast/util"
)

const (
	DefaultNumChangepoints  = 25
	DefaultChangepointRange = 0.8
	DefaultPriorScale       = 0.05
)

// Changepoint describes a point in time that will change the ongoing trend
type Changepoint struct {
	T    time.Time `json:"time"`
	Name string    `json:"name"`
}

func NewChangepoint(name string, t time.Time) Changepoint {
	return Changepoint{t, name}
}

// ChangepointOptions configures the automatic placement of slope changepoints. N changepoints
// are spread evenly over the first Range fraction of the training window and each one is
// penalized by 1/PriorScale so that a smaller prior scale keeps the trend stiffer.
type ChangepointOptions struct {
	NumChangepoints int     `json:"num_changepoints"`
	Range           float64 `json:"range"`
	PriorScale      float64 `json:"prior_scale"`

	// Changepoints are the resolved changepoints of the last fit
	Changepoints []Changepoint `json:"changepoints"`
}

// NewDefaultChangepointOptions generates a set of default changepoint options
func NewDefaultChangepointOptions() ChangepointOptions {
	return ChangepointOptions{
		NumChangepoints: DefaultNumChangepoints,
		Range:           DefaultChangepointRange,
		PriorScale:      DefaultPriorScale,
	}
}

func (c ChangepointOptions) validate() error {
	if c.NumChangepoints < 0 {
		return ErrNegativeChangepoints
	}
	if c.Range <= 0 || c.Range > 1 {
		return fmt.Errorf("got %.3f, %w", c.Range, ErrInvalidRange)
	}
	if c.PriorScale <= 0 {
		return fmt.Errorf("got %.3f, %w", c.PriorScale, ErrInvalidPriorScale)
	}
	return nil
}

// PenaltyFactor returns the multiplier applied to the lasso lambda for each changepoint
func (c ChangepointOptions) PenaltyFactor() float64 {
	if c.PriorScale <= 0 {
		return 1.0 / DefaultPriorScale
	}
	return 1.0 / c.PriorScale
}

func (c ChangepointOptions) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	noCfg := " None"
	if len(c.Changepoints) > 0 {
		noCfg = ""
		fmt.Fprintf(tbl, "%s%sName\tDatetime\t\n", prefix, util.IndentExpand(indent, indentGrowth+1))
	}
	fmt.Fprintf(w, "%s%sChangepoints:%s\n", prefix, util.IndentExpand(indent, indentGrowth), noCfg)
	for _, chpt := range c.Changepoints {
		fmt.Fprintf(tbl, "%s%s%s\t%s\t\n",
			prefix, util.IndentExpand(indent, indentGrowth+1),
			chpt.Name, chpt.T)
	}
	return tbl.Flush()
}

// GenerateAutoChangepoints places changepoints evenly within the first Range fraction of the
// training window excluding the window start. The count is capped at one less than the number
// of training points falling in that range.
func (c *ChangepointOptions) GenerateAutoChangepoints(t []time.Time) []Changepoint {
	if len(t) < 2 || c.NumChangepoints == 0 {
		c.Changepoints = nil
		return nil
	}

	startTime := t[0]
	window := time.Duration(float64(t[len(t)-1].Sub(startTime)) * c.Range)

	var inRange int
	for _, tPnt := range t {
		if !tPnt.After(startTime.Add(window)) {
			inRange++
		}
	}
	n := min(c.NumChangepoints, inRange-1)
	if n <= 0 {
		c.Changepoints = nil
		return nil
	}

	step := int64(window) / int64(n)
	chpts := make([]Changepoint, 0, n)
	for i := 1; i <= n; i++ {
		chpts = append(
			chpts,
			NewChangepoint("auto_"+strconv.Itoa(i-1), startTime.Add(time.Duration(step*int64(i)))),
		)
	}

	// replace existing changepoints
	c.Changepoints = chpts
	return chpts
}
