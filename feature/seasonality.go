package feature

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type FourierComp string

const (
	FourierCompSin FourierComp = "sin"
	FourierCompCos FourierComp = "cos"
)

type Seasonality struct {
	Name        string      `json:"name"`
	FourierComp FourierComp `json:"fourier_component"`
	Order       int         `json:"order"`
}

func NewSeasonality(name string, fcomp FourierComp, order int) *Seasonality {
	return &Seasonality{name, fcomp, order}
}

func (s Seasonality) String() string {
	return fmt.Sprintf("seas_%s_%02d_%s", s.Name, s.Order, s.FourierComp)
}

func (s Seasonality) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return s.Name, true
	case "fourier_component":
		return string(s.FourierComp), true
	case "order":
		return strconv.Itoa(s.Order), true
	}
	return "", false
}

func (s Seasonality) Type() FeatureType {
	return FeatureTypeSeasonality
}

func (s Seasonality) Decode() map[string]string {
	res := make(map[string]string)
	res["name"] = s.Name
	res["fourier_component"] = string(s.FourierComp)
	res["order"] = strconv.Itoa(s.Order)
	return res
}

func (s *Seasonality) UnmarshalJSON(data []byte) error {
	var labelStr map[string]string
	if err := json.Unmarshal(data, &labelStr); err != nil {
		return err
	}
	return s.fromLabels(labelStr)
}

func (s *Seasonality) fromLabels(labels map[string]string) error {
	order, err := strconv.Atoi(labels["order"])
	if err != nil {
		return err
	}
	s.Name = labels["name"]
	s.FourierComp = FourierComp(labels["fourier_component"])
	s.Order = order
	return nil
}

// Generate produces the Fourier component of the given period evaluated at each time
func (s Seasonality) Generate(t []time.Time, period time.Duration) []float64 {
	res := make([]float64, len(t))
	if period <= 0 {
		return res
	}
	omega := 2.0 * math.Pi * float64(s.Order) / period.Seconds()
	for i, tPnt := range t {
		rad := omega * float64(tPnt.Unix())
		switch s.FourierComp {
		case FourierCompSin:
			res[i] = math.Sin(rad)
		case FourierCompCos:
			res[i] = math.Cos(rad)
		}
	}
	return res
}
