package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formiel/adapter-transformers/internal/adapters"
	"github.com/formiel/adapter-transformers/internal/tensor"
)

func testConfig() Config {
	return Config{Name: "test-base", Hidden: 8, Layers: 2, Seed: 42}
}

func TestParameterNames(t *testing.T) {
	m := New(testConfig())
	params := m.NamedParameters()

	// 2 layers x 2 linears x (weight, bias).
	require.Len(t, params, 8)
	for _, name := range []string{
		"transformer.layers.0.attn.weight",
		"transformer.layers.0.attn.bias",
		"transformer.layers.1.ffn.weight",
		"transformer.layers.1.ffn.bias",
	} {
		assert.Contains(t, params, name)
	}
	for name := range params {
		assert.True(t, strings.HasPrefix(name, BaseModelPrefix), "parameter %s outside base prefix", name)
	}
}

func TestSeedTwinsAreIdentical(t *testing.T) {
	a := New(testConfig())
	b := New(testConfig())

	sa, sb := a.StateDict(), b.StateDict()
	require.Equal(t, len(sa), len(sb))
	for name, raw := range sa {
		require.Contains(t, sb, name)
		assert.Equal(t, raw.Data(), sb[name].Data(), "parameter %s differs between twins", name)
	}
}

func TestAddAdapterMaterializesParameters(t *testing.T) {
	m := New(testConfig())
	require.NoError(t, m.AddAdapter("sst", adapters.TextTask, nil))

	params := m.NamedParameters()
	for _, name := range []string{
		"transformer.layers.0.text_task_adapters.sst.down.weight",
		"transformer.layers.0.text_task_adapters.sst.up.bias",
		"transformer.layers.1.text_task_adapters.sst.down.bias",
	} {
		assert.Contains(t, params, name)
	}
	assert.NotContains(t, params, "transformer.invertible_lang_adapters.sst.weight")
	assert.True(t, m.Adapters().Has("sst"))
}

func TestAddLanguageAdapterAddsInvertible(t *testing.T) {
	m := New(testConfig())
	require.NoError(t, m.AddAdapter("de", adapters.TextLang, nil))

	params := m.NamedParameters()
	assert.Contains(t, params, "transformer.layers.0.text_lang_adapters.de.down.weight")
	assert.Contains(t, params, "transformer.invertible_lang_adapters.de.weight")
	assert.Contains(t, params, "transformer.invertible_lang_adapters.de.bias")
}

func TestAddAdapterInvalidType(t *testing.T) {
	m := New(testConfig())
	assert.Error(t, m.AddAdapter("x", adapters.AdapterType("bogus"), nil))
}

func TestLoadStateDict(t *testing.T) {
	m := New(testConfig())

	src := New(Config{Name: "test-base", Hidden: 8, Layers: 2, Seed: 7})
	require.NoError(t, src.AddAdapter("sst", adapters.TextTask, nil))
	stateDict := src.StateDict()

	missing, unexpected, err := m.LoadStateDict(stateDict)
	require.NoError(t, err)
	assert.Empty(t, missing)

	// The adapter is not materialized on m, so its keys are unexpected.
	require.NotEmpty(t, unexpected)
	for _, name := range unexpected {
		assert.Contains(t, name, "text_task_adapters.sst")
	}

	// Values were copied, not aliased.
	loaded := m.NamedParameters()["transformer.layers.0.attn.weight"].Tensor()
	original := src.NamedParameters()["transformer.layers.0.attn.weight"].Tensor()
	assert.Equal(t, original.Data(), loaded.Data())
	assert.NotSame(t, original, loaded)
}

func TestLoadStateDictShapeMismatch(t *testing.T) {
	m := New(testConfig())
	bad, err := tensor.FromFloat32(make([]float32, 4), tensor.Shape{2, 2})
	require.NoError(t, err)

	_, _, err = m.LoadStateDict(map[string]*tensor.RawTensor{
		"transformer.layers.0.attn.weight": bad,
	})
	assert.Error(t, err)
}

func TestTrainAdapter(t *testing.T) {
	m := New(testConfig())
	require.NoError(t, m.AddAdapter("sst", adapters.TextTask, nil))
	require.NoError(t, m.AddAdapter("de", adapters.TextLang, nil))

	require.NoError(t, m.TrainAdapter(adapters.TextLang))
	for name, param := range m.NamedParameters() {
		want := strings.Contains(name, "text_lang_adapters.") ||
			strings.Contains(name, "invertible_lang_adapters.")
		assert.Equal(t, want, param.RequiresGrad(), "parameter %s", name)
	}

	require.NoError(t, m.TrainAdapter(adapters.TextTask))
	for name, param := range m.NamedParameters() {
		want := strings.Contains(name, "text_task_adapters.")
		assert.Equal(t, want, param.RequiresGrad(), "parameter %s", name)
	}
}

func TestSetBaseRequiresGrad(t *testing.T) {
	m := NewWithHeads(testConfig())
	require.NoError(t, m.AddPredictionHead("cls", nil, false))

	m.SetBaseRequiresGrad(false)
	for name, param := range m.NamedParameters() {
		if strings.HasPrefix(name, BaseModelPrefix) {
			assert.False(t, param.RequiresGrad(), "base parameter %s", name)
		} else {
			assert.True(t, param.RequiresGrad(), "head parameter %s", name)
		}
	}
}

func TestPredictionHeads(t *testing.T) {
	base := New(testConfig())
	assert.Nil(t, base.Heads())
	assert.Error(t, base.AddPredictionHead("cls", nil, false))

	m := NewWithHeads(testConfig())
	assert.Equal(t, "TransformerWithHeads", m.ModelClass())
	require.NoError(t, m.AddPredictionHead("cls", adapters.Config{"num_labels": float64(3)}, false))

	params := m.NamedParameters()
	require.Contains(t, params, "heads.cls.weight")
	assert.Equal(t, tensor.Shape{3, 8}, params["heads.cls.weight"].Tensor().Shape())

	// Re-adding without overwrite fails.
	assert.Error(t, m.AddPredictionHead("cls", nil, false))
	assert.NoError(t, m.AddPredictionHead("cls", nil, true))
}

func TestForward(t *testing.T) {
	m := NewWithHeads(testConfig())
	require.NoError(t, m.AddAdapter("sst", adapters.TextTask, nil))
	require.NoError(t, m.AddPredictionHead("cls", adapters.Config{"num_labels": float64(2)}, false))

	x, err := tensor.FromFloat32(make([]float32, 2*8), tensor.Shape{2, 8})
	require.NoError(t, err)

	out, err := m.Forward(x, "sst")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 8}, out.Shape())

	logits, err := m.ForwardWithHead(x, "sst", "cls")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, logits.Shape())

	_, err = m.ForwardWithHead(x, "", "missing")
	assert.Error(t, err)
}
