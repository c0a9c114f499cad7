package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/genbooster/core/model"
	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
)

func TestParseCSV(t *testing.T) {
	X, y, err := parseCSV(strings.NewReader("a,b,target\n1,2,3\n4, 5,6\n"), "inline")
	require.NoError(t, err)

	r, c := X.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 5.0, X.At(1, 1))
	assert.Equal(t, 6.0, y.At(1, 0))

	// ヘッダーなし
	X, _, err = parseCSV(strings.NewReader("1,2,3\n"), "inline")
	require.NoError(t, err)
	r, _ = X.Dims()
	assert.Equal(t, 1, r)
}

func TestParseCSVErrors(t *testing.T) {
	_, _, err := parseCSV(strings.NewReader("a,b\n"), "header-only")
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrEmptyData))

	_, _, err = parseCSV(strings.NewReader("1\n2\n"), "one-column")
	assert.Error(t, err)

	_, _, err = parseCSV(strings.NewReader("1,2\n3,x\n"), "bad-value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func writeCSV(t *testing.T, name string, rows [][]float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("x0,x1,y\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "%g,%g,%g\n", row[0], row[1], row[2])
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func linearRows(n int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		x0 := float64(i%10) / 3
		x1 := float64((i*7)%11) / 5
		rows[i] = []float64{x0, x1, 2*x0 - x1 + 0.5}
	}
	return rows
}

func TestRunRegression(t *testing.T) {
	dir := t.TempDir()
	data := writeCSV(t, "train.csv", linearRows(60))
	cfgPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("ensemble:\n  n_estimators: 10\nlearner:\n  name: linear\n"), 0o600))
	plotPath := filepath.Join(dir, "curve.png")
	savePath := filepath.Join(dir, "model.gob")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-config", cfgPath, "-data", data, "-test", data, "-plot", plotPath, "-save", savePath,
	}, &stdout, &stderr)
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "rmse\t")
	assert.Contains(t, out, "r2\t")
	assert.FileExists(t, plotPath)

	var saved savedModel
	require.NoError(t, model.LoadModel(&saved, savePath))
	require.NotNil(t, saved.Model)
	require.NotNil(t, saved.Scaler)
}

func TestRunClassification(t *testing.T) {
	rows := make([][]float64, 0, 60)
	for i := 0; i < 30; i++ {
		d := float64(i%5) / 10
		rows = append(rows, []float64{d, d, 0}, []float64{6 + d, 6 - d, 1})
	}
	data := writeCSV(t, "blobs.csv", rows)
	t.Setenv("GENBOOSTER_LOG_LEVEL", "debug")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-data", data, "-task", "classification"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "classes\t[0 1]")
	assert.Contains(t, stdout.String(), "accuracy\t")
	assert.Contains(t, stderr.String(), "Model parameters")
	assert.Contains(t, stderr.String(), `"encoding":"onehot"`)
}

func TestRunRejectsBadInput(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), nil, &stdout, &stderr)
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrInvalidConfig))

	data := writeCSV(t, "train.csv", linearRows(10))
	err = run(context.Background(), []string{"-data", data, "-task", "ranking"}, &stdout, &stderr)
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrInvalidConfig))

	err = run(context.Background(), []string{"-data", filepath.Join(t.TempDir(), "missing.csv")}, &stdout, &stderr)
	assert.Error(t, err)
}
