package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

const claims = "2018-01-01\t2019-01-01\tFirm\t1\tNew\tAAA\t12345\t0.0\t100.0\n" +
	"2018-02-01\t2019-02-01\tFirm\t2\tRenew\tBBB\t54321\t1.0\t200.0\n"

var reportPattern = regexp.MustCompile(`^\*\*\*\*EVALUATION\*\*\*\*\n` +
	`Rms \(lower is better\) = \S+\n` +
	`RSquared \(closer to 1\.0 is better\)= \S+\n` +
	`\*\*\*\*PREDICTION\*\*\*\*\n` +
	`Predicted rate is: \S+\n$`)

func writeClaims(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "claims.txt")
	require.NoError(t, os.WriteFile(path, []byte(claims), 0o600))
	return path
}

func TestRun_Report(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CLAIMS_DATA_PATH", writeClaims(t))
	t.Setenv("CLAIMS_TRAINER", "ols")
	t.Setenv("CLAIMS_LOG_LEVEL", "error")
	t.Setenv("CLAIMS_PLOT_PATH", filepath.Join(dir, "pred.svg"))
	t.Setenv("CLAIMS_METRICS_PATH", filepath.Join(dir, "claimrate.prom"))

	var out bytes.Buffer
	require.NoError(t, run(&out))
	assert.Regexp(t, reportPattern, out.String())

	assert.FileExists(t, filepath.Join(dir, "pred.svg"))
	assert.FileExists(t, filepath.Join(dir, "claimrate.prom"))
}

func TestRun_RowFilter(t *testing.T) {
	t.Setenv("CLAIMS_DATA_PATH", writeClaims(t))
	t.Setenv("CLAIMS_LOG_LEVEL", "error")
	t.Setenv("CLAIMS_ROW_FILTER", "premium > 1000.0")

	var out bytes.Buffer
	err := run(&out)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
	assert.Empty(t, out.String())
}

func TestRun_Failures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("CLAIMS_DATA_PATH", filepath.Join(t.TempDir(), "nope.txt"))
		t.Setenv("CLAIMS_LOG_LEVEL", "error")
		var out bytes.Buffer
		err := run(&out)
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Empty(t, out.String())
	})

	t.Run("unknown category rejected", func(t *testing.T) {
		t.Setenv("CLAIMS_DATA_PATH", writeClaims(t))
		t.Setenv("CLAIMS_LOG_LEVEL", "error")
		t.Setenv("CLAIMS_UNKNOWN_CATEGORY", "error")
		var out bytes.Buffer
		err := run(&out)
		var uce *errors.UnknownCategoryError
		require.True(t, errors.As(err, &uce))
		assert.Contains(t, out.String(), "****EVALUATION****")
		assert.NotContains(t, out.String(), "****PREDICTION****")
	})

	t.Run("bad config", func(t *testing.T) {
		t.Setenv("CLAIMS_TRAINER", "xgboost")
		var verr *errors.ValidationError
		require.True(t, errors.As(run(&bytes.Buffer{}), &verr))
	})
}
