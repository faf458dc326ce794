package feature

import (
	"math"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeasonalityString(t *testing.T) {
	feat := NewSeasonality("yearly", FourierCompCos, 2)
	expected := "seas_yearly_02_cos"
	assert.Equal(t, expected, feat.String())
}

func TestSeasonalityGet(t *testing.T) {
	feat := NewSeasonality("yearly", FourierCompCos, 2)

	testData := map[string]struct {
		label     string
		expVal    string
		expExists bool
	}{
		"unknown": {
			label: "unknown",
		},
		"capitalized": {
			label:     "NAME",
			expVal:    "yearly",
			expExists: true,
		},
		"exact match": {
			label:     "name",
			expVal:    "yearly",
			expExists: true,
		},
		"fourier component": {
			label:     "fourier_component",
			expVal:    "cos",
			expExists: true,
		},
		"order": {
			label:     "order",
			expVal:    "2",
			expExists: true,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			val, exists := feat.Get(td.label)
			assert.Equal(t, td.expExists, exists, "exists")
			assert.Equal(t, td.expVal, val, "value")
		})
	}
}

func TestSeasonalityDecode(t *testing.T) {
	feat := NewSeasonality("yearly", FourierCompCos, 2)
	exp := map[string]string{
		"name":              "yearly",
		"fourier_component": "cos",
		"order":             "2",
	}
	assert.Equal(t, exp, feat.Decode())
}

func TestSeasonalityUnmarshalJSON(t *testing.T) {
	feat := NewSeasonality("yearly", FourierCompCos, 2)
	out, err := json.Marshal(feat.Decode())
	require.NoError(t, err)

	var nextFeat Seasonality
	require.NoError(t, json.Unmarshal(out, &nextFeat))

	assert.Equal(t, feat, &nextFeat)
}

func TestSeasonalityUnmarshalJSONBadOrder(t *testing.T) {
	var feat Seasonality
	err := json.Unmarshal([]byte(`{"name":"yearly","fourier_component":"sin","order":"x"}`), &feat)
	assert.Error(t, err)
}

func TestSeasonalityGenerateKnownValues(t *testing.T) {
	period := 4 * time.Second
	tSeries := []time.Time{
		time.Unix(0, 0),
		time.Unix(1, 0),
		time.Unix(2, 0),
		time.Unix(3, 0),
		time.Unix(4, 0),
	}

	testData := map[string]struct {
		seasonality *Seasonality
		expected    []float64
	}{
		"cos at key points": {
			seasonality: NewSeasonality("test", FourierCompCos, 1),
			expected:    []float64{1.0, 0.0, -1.0, 0.0, 1.0},
		},
		"sin at key points": {
			seasonality: NewSeasonality("test", FourierCompSin, 1),
			expected:    []float64{0.0, 1.0, 0.0, -1.0, 0.0},
		},
		"second order cos": {
			seasonality: NewSeasonality("test", FourierCompCos, 2),
			expected:    []float64{1.0, -1.0, 1.0, -1.0, 1.0},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			got := td.seasonality.Generate(tSeries, period)
			assert.InDeltaSlice(t, td.expected, got, 1e-10)
		})
	}
}

func TestSeasonalityGenerateBounded(t *testing.T) {
	tSeries := make([]time.Time, 0, 36)
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 36; i++ {
		tSeries = append(tSeries, start.AddDate(0, i, 0))
	}
	year := time.Duration(365.25 * 24 * float64(time.Hour))

	for order := 1; order <= 5; order++ {
		for _, comp := range []FourierComp{FourierCompSin, FourierCompCos} {
			got := NewSeasonality("yearly", comp, order).Generate(tSeries, year)
			require.Len(t, got, len(tSeries))
			for i, val := range got {
				assert.False(t, math.IsNaN(val), "index %d", i)
				assert.True(t, val >= -1.0 && val <= 1.0, "index %d out of range: %f", i, val)
			}
		}
	}
}

func TestSeasonalityGenerateZeroPeriod(t *testing.T) {
	got := NewSeasonality("test", FourierCompCos, 1).Generate([]time.Time{time.Unix(0, 0)}, 0)
	assert.Equal(t, []float64{0}, got)
}
