package adapters_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formiel/adapter-transformers/internal/adapters"
)

func TestHeadSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	x := testInput(t)

	src := newHeaded(t)
	require.NoError(t, src.AddPredictionHead("cls", adapters.Config{"num_labels": float64(3)}, false))
	want, err := src.ForwardWithHead(x, "", "cls")
	require.NoError(t, err)

	loader := adapters.NewPredictionHeadLoader(src, true, quietLogger())
	require.NoError(t, loader.Save(dir, "cls", nil))

	dst := newHeaded(t)
	loadedDir, name, err := adapters.NewPredictionHeadLoader(dst, true, quietLogger()).Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, dir, loadedDir)
	assert.Equal(t, "cls", name)
	assert.True(t, dst.Heads().Has("cls"))

	got, err := dst.ForwardWithHead(x, "", "cls")
	require.NoError(t, err)
	assert.Equal(t, want.AsFloat32(), got.AsFloat32())
}

func TestHeadLoadAsRenames(t *testing.T) {
	dir := t.TempDir()
	x := testInput(t)

	src := newHeaded(t)
	require.NoError(t, src.AddPredictionHead("cls", nil, false))
	want, err := src.ForwardWithHead(x, "", "cls")
	require.NoError(t, err)
	require.NoError(t, adapters.NewPredictionHeadLoader(src, true, quietLogger()).Save(dir, "cls", nil))

	dst := newHeaded(t)
	_, name, err := adapters.NewPredictionHeadLoader(dst, true, quietLogger()).Load(dir, "sentiment")
	require.NoError(t, err)
	assert.Equal(t, "sentiment", name)
	assert.True(t, dst.Heads().Has("sentiment"))
	assert.False(t, dst.Heads().Has("cls"))

	got, err := dst.ForwardWithHead(x, "", "sentiment")
	require.NoError(t, err)
	assert.Equal(t, want.AsFloat32(), got.AsFloat32())
}

func TestHeadSaveUnknownName(t *testing.T) {
	m := newHeaded(t)

	strict := adapters.NewPredictionHeadLoader(m, true, quietLogger())
	assert.ErrorIs(t, strict.Save(t.TempDir(), "nope", nil), adapters.ErrConfiguration)

	// Tolerant loader degrades to a warning and writes nothing.
	dir := t.TempDir()
	tolerant := adapters.NewPredictionHeadLoader(m, false, quietLogger())
	require.NoError(t, tolerant.Save(dir, "nope", nil))
	_, err := os.Stat(filepath.Join(dir, adapters.HeadConfigName))
	assert.True(t, os.IsNotExist(err), "tolerant save of an unknown head must not write artifacts")
}

func TestHeadLoadMissingWeights(t *testing.T) {
	dir := t.TempDir()

	m := newHeaded(t)
	_, _, err := adapters.NewPredictionHeadLoader(m, true, quietLogger()).Load(dir, "")
	assert.ErrorIs(t, err, adapters.ErrNotFound)

	loadedDir, name, err := adapters.NewPredictionHeadLoader(m, false, quietLogger()).Load(dir, "")
	require.NoError(t, err)
	assert.Empty(t, loadedDir)
	assert.Empty(t, name)
}

func TestHeadLoadClassMismatch(t *testing.T) {
	dir := t.TempDir()

	src := newHeaded(t)
	require.NoError(t, src.AddPredictionHead("cls", nil, false))
	require.NoError(t, adapters.NewPredictionHeadLoader(src, true, quietLogger()).Save(dir, "cls", nil))

	// A base model has a different model class.
	dst := newBase(t)
	_, _, err := adapters.NewPredictionHeadLoader(dst, true, quietLogger()).Load(dir, "")
	assert.ErrorIs(t, err, adapters.ErrIncompatible)

	loadedDir, name, err := adapters.NewPredictionHeadLoader(dst, false, quietLogger()).Load(dir, "")
	require.NoError(t, err)
	assert.Empty(t, loadedDir)
	assert.Empty(t, name)
}

func TestHeadBlindLoadWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	x := testInput(t)

	src := newHeaded(t)
	require.NoError(t, src.AddPredictionHead("cls", nil, false))
	want, err := src.ForwardWithHead(x, "", "cls")
	require.NoError(t, err)
	require.NoError(t, adapters.NewPredictionHeadLoader(src, true, quietLogger()).Save(dir, "cls", nil))

	// Drop the sidecar: single-head models saved without head metadata.
	require.NoError(t, os.Remove(filepath.Join(dir, adapters.HeadConfigName)))

	// The target must already carry the head architecture for a blind load.
	dst := newHeaded(t)
	require.NoError(t, dst.AddPredictionHead("cls", nil, false))

	_, name, err := adapters.NewPredictionHeadLoader(dst, true, quietLogger()).Load(dir, "")
	require.NoError(t, err)
	assert.Empty(t, name, "blind load has no effective head name")

	got, err := dst.ForwardWithHead(x, "", "cls")
	require.NoError(t, err)
	assert.Equal(t, want.AsFloat32(), got.AsFloat32())
}
