package feature

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type ChangepointComp string

const (
	ChangepointCompBias  ChangepointComp = "bias"
	ChangepointCompSlope ChangepointComp = "slope"
)

// Changepoint is a candidate month where demand may shift level (bias) or trend (slope).
// Candidates are spread over the early part of the history and kept sparse by the Lasso
// penalty.
type Changepoint struct {
	Name            string          `json:"name"`
	ChangepointComp ChangepointComp `json:"changepoint_component"`
}

func NewChangepoint(name string, comp ChangepointComp) *Changepoint {
	return &Changepoint{name, comp}
}

func (c Changepoint) String() string {
	return fmt.Sprintf("chpnt_%s_%s", c.Name, c.ChangepointComp)
}

func (c Changepoint) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return c.Name, true
	case "changepoint_component":
		return string(c.ChangepointComp), true
	}
	return "", false
}

func (c Changepoint) Type() FeatureType {
	return FeatureTypeChangepoint
}

func (c Changepoint) Decode() map[string]string {
	res := make(map[string]string)
	res["name"] = c.Name
	res["changepoint_component"] = string(c.ChangepointComp)
	return res
}

func (c *Changepoint) UnmarshalJSON(data []byte) error {
	var labelStr struct {
		Name            string          `json:"name"`
		ChangepointComp ChangepointComp `json:"changepoint_component"`
	}
	if err := json.Unmarshal(data, &labelStr); err != nil {
		return err
	}
	c.Name = labelStr.Name
	c.ChangepointComp = labelStr.ChangepointComp
	return nil
}

// Generate returns a step of 1 from the changepoint on for bias, or the elapsed share of
// the training window since the changepoint for slope.
func (c Changepoint) Generate(t []time.Time, chpt, trainStartTime, trainEndTime time.Time) []float64 {
	res := make([]float64, len(t))
	span := trainEndTime.Sub(trainStartTime).Seconds()
	for i, tPnt := range t {
		if tPnt.Before(chpt) {
			continue
		}
		switch c.ChangepointComp {
		case ChangepointCompBias:
			res[i] = 1.0
		case ChangepointCompSlope:
			if span > 0 {
				res[i] = tPnt.Sub(chpt).Seconds() / span
			}
		}
	}
	return res
}
