package adapters_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formiel/adapter-transformers/internal/adapters"
	"github.com/formiel/adapter-transformers/internal/model"
)

func TestManagerSaveLoadAdapter(t *testing.T) {
	dir := t.TempDir()
	x := testInput(t)

	src := newBase(t)
	srcMgr := adapters.NewAdapterManager(src, quietLogger())
	require.NoError(t, src.AddAdapter("sst", adapters.TextTask, nil))
	want, err := src.Forward(x, "sst")
	require.NoError(t, err)

	require.NoError(t, srcMgr.SaveAdapter(dir, "sst", nil, nil))

	dst := newBase(t)
	dstMgr := adapters.NewAdapterManager(dst, quietLogger())
	name, err := dstMgr.LoadAdapter(dir, adapters.LoadOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sst", name)
	assert.True(t, dstMgr.HasAdapters(adapters.TextTask))
	assert.False(t, dstMgr.HasAdapters(adapters.TextLang))

	got, err := dst.Forward(x, "sst")
	require.NoError(t, err)
	assert.Equal(t, want.AsFloat32(), got.AsFloat32())
}

func TestManagerSaveUnknownAdapter(t *testing.T) {
	m := newBase(t)
	mgr := adapters.NewAdapterManager(m, quietLogger())
	err := mgr.SaveAdapter(t.TempDir(), "nope", nil, nil)
	assert.ErrorIs(t, err, adapters.ErrConfiguration)
}

func TestManagerLoadAdapterAsTypeMismatch(t *testing.T) {
	dir := t.TempDir()

	src := newBase(t)
	require.NoError(t, src.AddAdapter("sst", adapters.TextTask, nil))
	require.NoError(t, adapters.NewAdapterManager(src, quietLogger()).SaveAdapter(dir, "sst", nil, nil))

	dst := newBase(t)
	_, err := adapters.NewAdapterManager(dst, quietLogger()).
		LoadAdapterAs(dir, adapters.TextLang, adapters.LoadOptions{}, nil)
	assert.ErrorIs(t, err, adapters.ErrConfiguration)
}

func TestSaveAllAdapters(t *testing.T) {
	base := t.TempDir()

	src := newBase(t)
	require.NoError(t, src.AddAdapter("sst", adapters.TextTask, nil))
	require.NoError(t, src.AddAdapter("de", adapters.TextLang, nil))
	mgr := adapters.NewAdapterManager(src, quietLogger())

	require.NoError(t, mgr.SaveAllAdapters(base, map[string]any{"run": "1"}))

	var ids []string
	for _, name := range []string{"sst", "de"} {
		config := readSidecar(t, filepath.Join(base, name), adapters.ConfigName)
		assert.Equal(t, name, config.String("name"))
		assert.Equal(t, "1", config.String("run"))
		id := config.String("config_id")
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}

	// The same configs hash to the same IDs on a repeated save.
	second := t.TempDir()
	require.NoError(t, mgr.SaveAllAdapters(second, nil))
	for i, name := range []string{"sst", "de"} {
		config := readSidecar(t, filepath.Join(second, name), adapters.ConfigName)
		assert.Equal(t, ids[i], config.String("config_id"))
	}
}

func TestManagerFreeze(t *testing.T) {
	m := newHeaded(t)
	require.NoError(t, m.AddPredictionHead("cls", nil, false))
	mgr := adapters.NewAdapterManager(m, quietLogger())

	assert.False(t, mgr.Frozen())
	mgr.FreezeModel(true)
	assert.True(t, mgr.Frozen())
	for name, param := range m.NamedParameters() {
		if strings.HasPrefix(name, model.BaseModelPrefix) {
			assert.False(t, param.RequiresGrad(), "base parameter %s", name)
		}
	}

	mgr.FreezeModel(false)
	assert.False(t, mgr.Frozen())
	for name, param := range m.NamedParameters() {
		assert.True(t, param.RequiresGrad(), "parameter %s", name)
	}
}

func TestManagerTrainAdapter(t *testing.T) {
	m := newBase(t)
	require.NoError(t, m.AddAdapter("sst", adapters.TextTask, nil))
	mgr := adapters.NewAdapterManager(m, quietLogger())

	require.NoError(t, mgr.TrainTaskAdapter())
	for name, param := range m.NamedParameters() {
		want := strings.Contains(name, "text_task_adapters.")
		assert.Equal(t, want, param.RequiresGrad(), "parameter %s", name)
	}

	assert.ErrorIs(t, mgr.TrainAdapter(adapters.AdapterType("bogus")), adapters.ErrConfiguration)
}

func TestHeadedManagerSaveLoadWithHead(t *testing.T) {
	dir := t.TempDir()
	x := testInput(t)

	src := newHeaded(t)
	require.NoError(t, src.AddAdapter("sst", adapters.TextTask, nil))
	require.NoError(t, src.AddPredictionHead("sst", adapters.Config{"num_labels": float64(3)}, false))
	want, err := src.ForwardWithHead(x, "sst", "sst")
	require.NoError(t, err)

	srcMgr := adapters.NewHeadedAdapterManager(src, quietLogger())
	require.NoError(t, srcMgr.SaveAdapterWithHead(dir, "sst", true, nil, nil))

	dst := newHeaded(t)
	dstMgr := adapters.NewHeadedAdapterManager(dst, quietLogger())
	name, err := dstMgr.LoadAdapterWithHead(dir, true, adapters.LoadOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sst", name)
	assert.True(t, dst.Adapters().Has("sst"))
	assert.True(t, dst.Heads().Has("sst"))

	got, err := dst.ForwardWithHead(x, "sst", "sst")
	require.NoError(t, err)
	assert.Equal(t, want.AsFloat32(), got.AsFloat32())
}

func TestHeadedManagerLoadWithoutHead(t *testing.T) {
	dir := t.TempDir()

	src := newHeaded(t)
	require.NoError(t, src.AddAdapter("sst", adapters.TextTask, nil))
	require.NoError(t, src.AddPredictionHead("sst", nil, false))
	srcMgr := adapters.NewHeadedAdapterManager(src, quietLogger())
	require.NoError(t, srcMgr.SaveAdapterWithHead(dir, "sst", true, nil, nil))

	dst := newHeaded(t)
	dstMgr := adapters.NewHeadedAdapterManager(dst, quietLogger())
	_, err := dstMgr.LoadAdapterWithHead(dir, false, adapters.LoadOptions{}, nil)
	require.NoError(t, err)
	assert.True(t, dst.Adapters().Has("sst"))
	assert.False(t, dst.Heads().Has("sst"), "head must not load when withHead is false")
}

func TestHeadedManagerSaveLoadHead(t *testing.T) {
	dir := t.TempDir()

	src := newHeaded(t)
	require.NoError(t, src.AddPredictionHead("cls", nil, false))
	srcMgr := adapters.NewHeadedAdapterManager(src, quietLogger())
	require.NoError(t, srcMgr.SaveHead(dir, "cls"))

	dst := newHeaded(t)
	dstMgr := adapters.NewHeadedAdapterManager(dst, quietLogger())
	_, name, err := dstMgr.LoadHead(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "cls", name)
	assert.True(t, dst.Heads().Has("cls"))
}

func TestHeadedManagerSaveAllAdaptersBundlesHeads(t *testing.T) {
	base := t.TempDir()
	x := testInput(t)

	src := newHeaded(t)
	require.NoError(t, src.AddAdapter("sst", adapters.TextTask, nil))
	require.NoError(t, src.AddPredictionHead("sst", adapters.Config{"num_labels": float64(3)}, false))
	require.NoError(t, src.AddAdapter("de", adapters.TextLang, nil))
	want, err := src.ForwardWithHead(x, "sst", "sst")
	require.NoError(t, err)

	srcMgr := adapters.NewHeadedAdapterManager(src, quietLogger())
	require.NoError(t, srcMgr.SaveAllAdapters(base, nil))

	// The adapter with a same-named head gets head artifacts next to it.
	for _, name := range []string{adapters.HeadConfigName, adapters.HeadWeightsName} {
		_, err := os.Stat(filepath.Join(base, "sst", name))
		assert.NoError(t, err, "expected %s in the sst subdirectory", name)
	}
	// The adapter without one saves adapter artifacts only.
	_, err = os.Stat(filepath.Join(base, "de", adapters.HeadConfigName))
	assert.True(t, os.IsNotExist(err), "de has no head, none must be saved")
	_, err = os.Stat(filepath.Join(base, "de", adapters.ConfigName))
	assert.NoError(t, err)

	// A bulk-saved subdirectory loads back with its head.
	dst := newHeaded(t)
	dstMgr := adapters.NewHeadedAdapterManager(dst, quietLogger())
	name, err := dstMgr.LoadAdapterWithHead(filepath.Join(base, "sst"), true, adapters.LoadOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sst", name)
	assert.True(t, dst.Heads().Has("sst"))

	got, err := dst.ForwardWithHead(x, "sst", "sst")
	require.NoError(t, err)
	assert.Equal(t, want.AsFloat32(), got.AsFloat32())
}

func TestHeadedManagerSaveAllAdaptersWithoutHeads(t *testing.T) {
	base := t.TempDir()

	src := newHeaded(t)
	require.NoError(t, src.AddAdapter("sst", adapters.TextTask, nil))
	require.NoError(t, src.AddPredictionHead("sst", nil, false))
	srcMgr := adapters.NewHeadedAdapterManager(src, quietLogger())

	require.NoError(t, srcMgr.SaveAllAdaptersWithHeads(base, false, nil))
	_, err := os.Stat(filepath.Join(base, "sst", adapters.HeadConfigName))
	assert.True(t, os.IsNotExist(err), "head bundling was disabled")
	_, err = os.Stat(filepath.Join(base, "sst", adapters.ConfigName))
	assert.NoError(t, err)
}

func TestManagerSetAdapterConfig(t *testing.T) {
	dir := t.TempDir()

	src := newBase(t)
	require.NoError(t, src.AddAdapter("sst", adapters.TextTask, adapters.Config{
		"non_linearity":    "relu",
		"reduction_factor": float64(4),
	}))
	require.NoError(t, adapters.NewAdapterManager(src, quietLogger()).SaveAdapter(dir, "sst", nil, nil))

	dst := newBase(t)
	mgr := adapters.NewAdapterManager(dst, quietLogger())
	require.NoError(t, mgr.SetAdapterConfig(adapters.TextTask, adapters.Config{"reduction_factor": float64(4)}))
	assert.ErrorIs(t, mgr.SetAdapterConfig(adapters.AdapterType("bogus"), nil), adapters.ErrConfiguration)

	_, err := mgr.LoadAdapterAs(dir, adapters.TextTask, adapters.LoadOptions{}, nil)
	require.NoError(t, err)

	config, _, ok := dst.Adapters().Get("sst")
	require.True(t, ok)
	assert.Equal(t, float64(4), config["reduction_factor"])
}
