package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/go-demand-forecaster/feature"
	"github.com/aouyang1/go-demand-forecaster/forecast/options"
	"github.com/aouyang1/go-demand-forecaster/forecast/util"
)

var ErrUnknownFeatureType = errors.New("unknown feature type")

// SavedModel represents a serializeable format of a linear model storing the options, the
// training window, the state needed to regenerate features and the coefficients
type SavedModel struct {
	TrainStartTime time.Time                   `json:"train_start_time"`
	TrainEndTime   time.Time                   `json:"train_end_time"`
	Options        *options.Options            `json:"options"`
	Seasonalities  []options.SeasonalityConfig `json:"seasonalities"`
	Regressors     map[string]RegressorStat    `json:"regressors"`
	Sigma          float64                     `json:"sigma"`
	Weights        Weights                     `json:"weights"`
}

// Model returns the serializeable format of the linear model
func (m *LinearModel) Model() (SavedModel, error) {
	if m == nil || m.labels == nil {
		return SavedModel{}, ErrUninitializedForecast
	}

	fws := make([]FeatureWeight, 0, len(m.coef))
	labels := m.labels.Labels()
	for i, c := range m.coef {
		fws = append(fws, NewFeatureWeight(labels[i], c))
	}
	opt := m.Options()
	return SavedModel{
		TrainStartTime: m.gen.trainStartTime,
		TrainEndTime:   m.gen.trainEndTime,
		Options:        &opt,
		Seasonalities:  m.gen.seasonalities,
		Regressors:     m.gen.regressorStats,
		Sigma:          m.sigma,
		Weights: Weights{
			Intercept: m.intercept,
			Coef:      fws,
		},
	}, nil
}

// NewFromModel creates a linear model from its serialized form. The model can be used for
// inference immediately and does not need to be trained again.
func NewFromModel(sm SavedModel) (*LinearModel, error) {
	opt, err := sm.Options.Validate()
	if err != nil {
		return nil, err
	}
	labels, err := sm.Weights.FeatureLabels()
	if err != nil {
		return nil, err
	}

	m := &LinearModel{
		opt: opt,
		gen: featureGenerator{
			trainStartTime: sm.TrainStartTime,
			trainEndTime:   sm.TrainEndTime,
			changepoints:   opt.ChangepointOptions.Changepoints,
			seasonalities:  sm.Seasonalities,
			regressorStats: sm.Regressors,
		},
		labels:    NewFeatureLabels(labels),
		intercept: sm.Weights.Intercept,
		coef:      sm.Weights.Coefficients(),
		sigma:     sm.Sigma,
	}
	for _, label := range labels {
		if label.Type() != feature.FeatureTypeChangepoint {
			continue
		}
		name, _ := label.Get("name")
		if _, exists := m.gen.changepointTime(name); !exists {
			return nil, fmt.Errorf("changepoint %s has no time in options, %w", name, ErrUnknownFeatureType)
		}
	}
	return m, nil
}

func (m SavedModel) TablePrint(w io.Writer, prefix, indent string) error {
	if _, err := fmt.Fprintf(w, "%s%sForecast:\n", prefix, util.IndentExpand(indent, 0)); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "%s%sTraining Window: %s to %s\n", prefix, util.IndentExpand(indent, 1), m.TrainStartTime, m.TrainEndTime); err != nil {
		return err
	}

	if m.Options != nil {
		if err := m.Options.TablePrint(w, prefix, indent, 1); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "%s%sResidual Sigma: %.3f\n", prefix, util.IndentExpand(indent, 1), m.Sigma); err != nil {
		return err
	}

	return m.Weights.tablePrint(w, prefix, indent, 0)
}

// Weights stores the intercept and coefficients for the linear model
type Weights struct {
	Intercept float64         `json:"intercept"`
	Coef      []FeatureWeight `json:"coefficients"`
}

// FeatureLabels returns all of the feature labels in the same order as the coefficients
func (w *Weights) FeatureLabels() ([]feature.Feature, error) {
	labels := make([]feature.Feature, 0, len(w.Coef))
	for _, fw := range w.Coef {
		feat, err := fw.ToFeature()
		if err != nil {
			return nil, err
		}
		labels = append(labels, feat)
	}
	return labels, nil
}

// Coefficients returns a slice copy of the coefficients ignoring the intercept.
func (w *Weights) Coefficients() []float64 {
	coef := make([]float64, 0, len(w.Coef))
	for _, fw := range w.Coef {
		coef = append(coef, fw.Value)
	}
	return coef
}

func (w Weights) tablePrint(wr io.Writer, prefix, indent string, indentGrowth int) error {
	if _, err := fmt.Fprintf(wr, "%s%sWeights:\n", prefix, util.IndentExpand(indent, indentGrowth)); err != nil {
		return err
	}
	tbl := tabwriter.NewWriter(wr, 0, 0, 1, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintf(tbl, "%s%sType\tLabels\tValue\t\n", prefix, util.IndentExpand(indent, indentGrowth+1)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tbl, "%s%sIntercept\t\t%.3f\t\n", prefix, util.IndentExpand(indent, indentGrowth+1), w.Intercept); err != nil {
		return err
	}
	for _, fw := range w.Coef {
		labelOut, err := json.Marshal(fw.Labels)
		if err != nil {
			return err
		}
		val := fmt.Sprintf("%.3f", fw.Value)
		if fw.Value == 0 {
			val = "..."
		}
		if _, err := fmt.Fprintf(tbl, "%s%s%s\t%s\t%s\t\n",
			prefix, util.IndentExpand(indent, indentGrowth+1),
			fw.Type, string(labelOut), val); err != nil {
			return err
		}
	}
	return tbl.Flush()
}

// FeatureWeight represents a feature described with a type e.g. changepoint, labels and the value
type FeatureWeight struct {
	Labels map[string]string   `json:"labels"`
	Type   feature.FeatureType `json:"type"`
	Value  float64             `json:"value"`
}

func NewFeatureWeight(f feature.Feature, val float64) FeatureWeight {
	return FeatureWeight{
		Labels: f.Decode(),
		Type:   f.Type(),
		Value:  val,
	}
}

// ToFeature transforms the Type and Labels into a feature type
func (fw *FeatureWeight) ToFeature() (feature.Feature, error) {
	if fw == nil {
		return nil, ErrUnknownFeatureType
	}
	feat, err := feature.FromLabels(fw.Type, fw.Labels)
	if err != nil {
		return nil, fmt.Errorf("%s, %w", fw.Type, ErrUnknownFeatureType)
	}
	return feat, nil
}
