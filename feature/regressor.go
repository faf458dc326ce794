package feature

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Regressor is an externally supplied column such as an entity attribute
type Regressor struct {
	Name string `json:"name"`
}

func NewRegressor(name string) *Regressor {
	return &Regressor{name}
}

func (r Regressor) String() string {
	return fmt.Sprintf("reg_%s", r.Name)
}

func (r Regressor) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return r.Name, true
	}
	return "", false
}

func (r Regressor) Type() FeatureType {
	return FeatureTypeRegressor
}

func (r Regressor) Decode() map[string]string {
	res := make(map[string]string)
	res["name"] = r.Name
	return res
}

func (r *Regressor) UnmarshalJSON(data []byte) error {
	var labelStr struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &labelStr); err != nil {
		return err
	}
	r.Name = labelStr.Name
	return nil
}

// Standardize returns (x - mean) / std. A zero std yields a column of zeros so a constant
// regressor adds nothing beyond the intercept.
func (r Regressor) Standardize(x []float64, mean, std float64) []float64 {
	res := make([]float64, len(x))
	if std == 0 {
		return res
	}
	for i, v := range x {
		res[i] = (v - mean) / std
	}
	return res
}
