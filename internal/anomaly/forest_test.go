package anomaly

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var currentOnly = []string{"current_amp"}

// tightCurrents returns 30 evenly spaced draws between 11.71 A and 12.29 A.
func tightCurrents() [][]float64 {
	samples := make([][]float64, 30)
	for i := range samples {
		samples[i] = []float64{11.71 + 0.02*float64(i)}
	}
	return samples
}

func TestFit_TightClusterScenario(t *testing.T) {
	m, err := Fit(tightCurrents(), currentOnly, DefaultParams())
	require.NoError(t, err)

	c, err := NewClassifier(m)
	require.NoError(t, err)

	normal, err := c.Classify([]float64{12.1})
	require.NoError(t, err)
	assert.False(t, normal.IsAnomaly, "12.1 A should be normal (score %f, threshold %f)", normal.Score, m.Threshold)

	spike, err := c.Classify([]float64{18.0})
	require.NoError(t, err)
	assert.True(t, spike.IsAnomaly, "18.0 A should be anomalous (score %f, threshold %f)", spike.Score, m.Threshold)

	assert.Greater(t, spike.Score, normal.Score)
}

func TestFit_Multivariate(t *testing.T) {
	data := [][]float64{
		{1.0, 2.0}, {1.1, 2.1}, {0.9, 1.9}, {1.2, 2.2},
		{0.8, 1.8}, {1.0, 2.0}, {1.1, 2.0}, {0.9, 2.1},
	}
	m, err := Fit(data, []string{"current_amp", "power_kw"}, Params{Trees: 50, Contamination: 0.1, Seed: 7})
	require.NoError(t, err)

	normal, err := m.Score([]float64{1.0, 2.0})
	require.NoError(t, err)
	outlier, err := m.Score([]float64{10.0, 20.0})
	require.NoError(t, err)

	assert.Greater(t, outlier, normal)
	assert.True(t, m.IsOutlier(outlier))
}

func TestFit_Deterministic(t *testing.T) {
	a, err := Fit(tightCurrents(), currentOnly, DefaultParams())
	require.NoError(t, err)
	b, err := Fit(tightCurrents(), currentOnly, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, a.Threshold, b.Threshold)
	assert.Equal(t, a.Trees, b.Trees)

	for _, v := range []float64{11.5, 12.0, 12.1, 12.35, 18.0} {
		sa, _ := a.Score([]float64{v})
		sb, _ := b.Score([]float64{v})
		assert.Equal(t, sa, sb, "score for %v", v)
	}
}

func TestFit_SeedChangesForest(t *testing.T) {
	p := DefaultParams()
	a, err := Fit(tightCurrents(), currentOnly, p)
	require.NoError(t, err)
	p.Seed = 1234
	b, err := Fit(tightCurrents(), currentOnly, p)
	require.NoError(t, err)

	assert.NotEqual(t, a.Trees, b.Trees)
}

func TestFit_ContaminationBoundsTrainingOutliers(t *testing.T) {
	samples := tightCurrents()
	m, err := Fit(samples, currentOnly, DefaultParams())
	require.NoError(t, err)

	flagged := 0
	for _, s := range samples {
		score, err := m.Score(s)
		require.NoError(t, err)
		if m.IsOutlier(score) {
			flagged++
		}
	}
	// roughly 10% of 30, ties between mirrored edge points allowed
	assert.GreaterOrEqual(t, flagged, 1)
	assert.LessOrEqual(t, flagged, 6)
}

func TestFit_RepeatedClassificationIsStable(t *testing.T) {
	m, err := Fit(tightCurrents(), currentOnly, DefaultParams())
	require.NoError(t, err)
	c, err := NewClassifier(m)
	require.NoError(t, err)

	first, err := c.Classify([]float64{12.25})
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := c.Classify([]float64{12.25})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFit_DegenerateSamples(t *testing.T) {
	tests := []struct {
		name    string
		samples [][]float64
		want    error
	}{
		{name: "empty", samples: nil, want: ErrDegenerateSample},
		{name: "single sample", samples: [][]float64{{12}}, want: ErrDegenerateSample},
		{name: "zero variance", samples: [][]float64{{12}, {12}, {12}, {12}}, want: ErrDegenerateSample},
		{name: "non-finite", samples: [][]float64{{12}, {math.NaN()}, {13}}, want: ErrDegenerateSample},
		{name: "ragged", samples: [][]float64{{12}, {12, 1}}, want: ErrDimension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.samples, currentOnly, DefaultParams())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestFit_RejectsBadParams(t *testing.T) {
	_, err := Fit(tightCurrents(), currentOnly, Params{Trees: 0, Contamination: 0.1})
	assert.Error(t, err)
	_, err = Fit(tightCurrents(), currentOnly, Params{Trees: 10, Contamination: 0})
	assert.Error(t, err)
}

func TestScore_DimensionMismatch(t *testing.T) {
	m, err := Fit(tightCurrents(), currentOnly, DefaultParams())
	require.NoError(t, err)

	_, err = m.Score([]float64{12, 3})
	assert.True(t, errors.Is(err, ErrDimension))
}

func TestNewClassifier_RequiresFittedModel(t *testing.T) {
	_, err := NewClassifier(nil)
	assert.ErrorIs(t, err, ErrNotFitted)
	_, err = NewClassifier(&Model{Features: currentOnly})
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	assert.InDelta(t, 5.9558, averagePathLength(30), 0.01)
}
