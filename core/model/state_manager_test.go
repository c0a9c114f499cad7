package model

import (
	"bytes"
	"path/filepath"
	"testing"

	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("Booster", "Predict")
	require.Error(t, err)
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrNotFitted))

	s.SetFitted(4, 100)
	assert.True(t, s.IsFitted())
	assert.NoError(t, s.RequireFitted("Booster", "Predict"))

	nf, ns := s.GetDimensions()
	assert.Equal(t, 4, nf)
	assert.Equal(t, 100, ns)

	assert.NoError(t, s.CheckFeatures("Booster.Predict", 4))
	err = s.CheckFeatures("Booster.Predict", 3)
	require.Error(t, err)
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrDimensionMismatch))

	var dimErr *scigoErrors.DimensionError
	require.True(t, scigoErrors.As(err, &dimErr))
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Got)
	assert.Equal(t, 1, dimErr.Axis)

	s.Reset()
	assert.Equal(t, ModelState{}, s.GetState())
}

type persisted struct {
	Name   string
	Values []float64
	State  *StateManager
}

func TestPersistenceRoundTrip(t *testing.T) {
	src := persisted{Name: "ridge", Values: []float64{1, 2.5, -3}, State: NewStateManager()}
	src.State.SetFitted(3, 10)

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(&src, &buf))

	var dst persisted
	require.NoError(t, LoadModelFromReader(&dst, &buf))
	assert.Equal(t, src.Name, dst.Name)
	assert.Equal(t, src.Values, dst.Values)
	assert.True(t, dst.State.IsFitted())

	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, SaveModel(&src, path))
	var fromFile persisted
	require.NoError(t, LoadModel(&fromFile, path))
	assert.Equal(t, src.Values, fromFile.Values)

	assert.Error(t, LoadModel(&fromFile, filepath.Join(t.TempDir(), "missing.gob")))
}
