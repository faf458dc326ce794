package feature

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const GrowthLinear = "linear"

// Growth is the demand trend term. The only supported shape is linear.
type Growth struct {
	Name string `json:"name"`
}

func NewGrowth(name string) *Growth {
	return &Growth{name}
}

func Linear() *Growth {
	return NewGrowth(GrowthLinear)
}

func (g Growth) String() string {
	return fmt.Sprintf("growth_%s", g.Name)
}

func (g Growth) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return g.Name, true
	}
	return "", false
}

func (g Growth) Type() FeatureType {
	return FeatureTypeGrowth
}

func (g Growth) Decode() map[string]string {
	res := make(map[string]string)
	res["name"] = g.Name
	return res
}

// UnmarshalJSON restores a growth term from a saved model.
func (g *Growth) UnmarshalJSON(data []byte) error {
	var labelStr struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &labelStr); err != nil {
		return err
	}
	g.Name = labelStr.Name
	return nil
}

// Generate scales elapsed time so the first and last training months map to 0 and 1.
// Forecast months extrapolate past 1.
func (g Growth) Generate(t []time.Time, trainStartTime, trainEndTime time.Time) []float64 {
	span := trainEndTime.Sub(trainStartTime).Seconds()
	res := make([]float64, len(t))
	if span <= 0 {
		return res
	}
	for i, tPnt := range t {
		res[i] = tPnt.Sub(trainStartTime).Seconds() / span
	}
	return res
}
