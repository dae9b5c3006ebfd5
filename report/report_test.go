package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/claimrate/metrics"
	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

func TestWritePredictionPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pred.svg")
	require.NoError(t, WritePredictionPlot(path, []float64{100, 200, 300}, []float64{110, 190, 320}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}

func TestWritePredictionPlot_ConstantValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pred.png")
	require.NoError(t, WritePredictionPlot(path, []float64{5, 5}, []float64{5, 5}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestWritePredictionPlot_Errors(t *testing.T) {
	dir := t.TempDir()

	err := WritePredictionPlot(filepath.Join(dir, "a.png"), nil, nil)
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))

	err = WritePredictionPlot(filepath.Join(dir, "b.png"), []float64{1, 2}, []float64{1})
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	err = WritePredictionPlot(filepath.Join(dir, "c.unknown"), []float64{1, 2}, []float64{1, 2})
	assert.Error(t, err)
}

func TestMetricsExporter_WriteTextfile(t *testing.T) {
	e := NewMetricsExporter()
	e.Observe(metrics.RegressionMetrics{L1: 0.5, L2: 2.25, RMS: 1.5, RSquared: 0.75}, 120, 42, 1500*time.Millisecond, "fasttree", "GradientBoostingRegressor")

	path := filepath.Join(t.TempDir(), "claimrate.prom")
	require.NoError(t, e.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	for _, want := range []string{
		"claimrate_evaluation_rms 1.5",
		"claimrate_evaluation_r_squared 0.75",
		"claimrate_evaluation_l1 0.5",
		"claimrate_evaluation_l2 2.25",
		"claimrate_training_samples 120",
		"claimrate_training_features 42",
		"claimrate_training_duration_seconds 1.5",
		`claimrate_model_info{model="GradientBoostingRegressor",trainer="fasttree"} 1`,
		"# TYPE claimrate_evaluation_rms gauge",
	} {
		assert.Contains(t, text, want)
	}

	families, err := e.Registry().Gather()
	require.NoError(t, err)
	assert.Len(t, families, 8)
}

func TestMetricsExporter_BadPath(t *testing.T) {
	e := NewMetricsExporter()
	err := e.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	assert.Error(t, err)
}
