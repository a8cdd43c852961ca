package model

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/formiel/adapter-transformers/internal/adapters"
	"github.com/formiel/adapter-transformers/internal/tensor"
)

// BaseModelPrefix is the parameter-name prefix of the encoder; prediction
// head parameters live outside it.
const BaseModelPrefix = "transformer."

// Config configures a reference transformer.
type Config struct {
	Name   string // pretrained-model identifier
	Hidden int    // hidden size
	Layers int    // number of encoder layers
	Seed   int64  // init seed; equal seeds build numerically identical twins
}

type encoderLayer struct {
	attn         *Linear
	ffn          *Linear
	taskAdapters map[string]*bottleneckAdapter
	langAdapters map[string]*bottleneckAdapter
}

// Transformer is a minimal encoder with adapter injection points. The
// headed variant additionally carries named prediction heads.
type Transformer struct {
	config     Config
	rng        *rand.Rand
	layers     []*encoderLayer
	invertible map[string]*invertibleAdapter

	registry *adapters.Registry

	withHeads bool
	heads     *adapters.HeadRegistry
	headMods  map[string]*predictionHead
}

// New creates a base transformer without head support.
func New(config Config) *Transformer {
	return build(config, false)
}

// NewWithHeads creates a transformer with named prediction head support.
func NewWithHeads(config Config) *Transformer {
	return build(config, true)
}

func build(config Config, withHeads bool) *Transformer {
	if config.Hidden == 0 {
		config.Hidden = 16
	}
	if config.Layers == 0 {
		config.Layers = 2
	}

	t := &Transformer{
		config:     config,
		rng:        rand.New(rand.NewSource(config.Seed)),
		invertible: make(map[string]*invertibleAdapter),
		registry:   adapters.NewRegistry(),
		withHeads:  withHeads,
	}
	if withHeads {
		t.heads = adapters.NewHeadRegistry()
		t.headMods = make(map[string]*predictionHead)
	}

	for i := 0; i < config.Layers; i++ {
		t.layers = append(t.layers, &encoderLayer{
			attn:         NewLinear(config.Hidden, config.Hidden, t.rng),
			ffn:          NewLinear(config.Hidden, config.Hidden, t.rng),
			taskAdapters: make(map[string]*bottleneckAdapter),
			langAdapters: make(map[string]*bottleneckAdapter),
		})
	}
	return t
}

// ModelName identifies the pretrained model.
func (t *Transformer) ModelName() string {
	return t.config.Name
}

// ModelClass is the concrete class name recorded in head configs.
func (t *Transformer) ModelClass() string {
	if t.withHeads {
		return "TransformerWithHeads"
	}
	return "Transformer"
}

// BaseModelPrefix returns the base-model parameter-name prefix.
func (t *Transformer) BaseModelPrefix() string {
	return BaseModelPrefix
}

// Adapters returns the adapter registry.
func (t *Transformer) Adapters() *adapters.Registry {
	return t.registry
}

// Heads returns the head registry, or nil for base models.
func (t *Transformer) Heads() *adapters.HeadRegistry {
	return t.heads
}

// NamedParameters returns every parameter keyed by hierarchical name.
func (t *Transformer) NamedParameters() map[string]*Parameter {
	params := make(map[string]*Parameter)

	for i, layer := range t.layers {
		prefix := fmt.Sprintf("%slayers.%d", BaseModelPrefix, i)
		layer.attn.parameters(prefix+".attn", params)
		layer.ffn.parameters(prefix+".ffn", params)
		for name, adapter := range layer.taskAdapters {
			adapter.parameters(fmt.Sprintf("%s.%s_adapters.%s", prefix, adapters.TextTask, name), params)
		}
		for name, adapter := range layer.langAdapters {
			adapter.parameters(fmt.Sprintf("%s.%s_adapters.%s", prefix, adapters.TextLang, name), params)
		}
	}
	for name, inv := range t.invertible {
		inv.parameters(BaseModelPrefix+"invertible_lang_adapters."+name, params)
	}
	for name, head := range t.headMods {
		head.parameters("heads."+name, params)
	}
	return params
}

// StateDict returns the parameter-name → tensor view of the model.
func (t *Transformer) StateDict() map[string]*tensor.RawTensor {
	params := t.NamedParameters()
	stateDict := make(map[string]*tensor.RawTensor, len(params))
	for name, param := range params {
		stateDict[name] = param.Tensor()
	}
	return stateDict
}

// LoadStateDict merges stateDict into the model non-strictly: matching
// keys are copied into the live parameters (widening to float32 where
// needed), missing and unexpected keys are reported, shape mismatches fail.
func (t *Transformer) LoadStateDict(stateDict map[string]*tensor.RawTensor) (missing, unexpected []string, err error) {
	params := t.NamedParameters()

	for name, raw := range stateDict {
		param, ok := params[name]
		if !ok {
			unexpected = append(unexpected, name)
			continue
		}

		converted, err := tensor.ToFloat32(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		target := param.Tensor()
		if !converted.Shape().Equal(target.Shape()) {
			return nil, nil, fmt.Errorf("parameter %s: shape mismatch: expected %v, got %v",
				name, target.Shape(), converted.Shape())
		}
		copy(target.AsFloat32(), converted.AsFloat32())
	}

	for name := range params {
		if _, ok := stateDict[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	sort.Strings(unexpected)
	return missing, unexpected, nil
}

// AddAdapter registers an adapter and materializes its parameters in
// every encoder layer. Language adapters additionally get an invertible
// adapter at the embedding level.
func (t *Transformer) AddAdapter(name string, adapterType adapters.AdapterType, config adapters.Config) error {
	if !adapterType.Valid() {
		return fmt.Errorf("invalid adapter type %q", adapterType)
	}
	if config == nil {
		config = adapters.DefaultAdapterConfig()
	}
	if err := t.registry.Add(name, adapterType, config); err != nil {
		return err
	}

	bottleneck := t.bottleneckSize(config)
	for _, layer := range t.layers {
		adapter := newBottleneckAdapter(t.config.Hidden, bottleneck, t.rng)
		switch adapterType {
		case adapters.TextTask:
			layer.taskAdapters[name] = adapter
		case adapters.TextLang:
			layer.langAdapters[name] = adapter
		}
	}
	if adapterType == adapters.TextLang {
		t.invertible[name] = newInvertibleAdapter(t.config.Hidden, t.rng)
	}
	return nil
}

func (t *Transformer) bottleneckSize(config adapters.Config) int {
	reduction := 16.0
	if v, ok := config["reduction_factor"].(float64); ok && v > 0 {
		reduction = v
	}
	size := int(float64(t.config.Hidden) / reduction)
	if size < 1 {
		size = 1
	}
	return size
}

// AddPredictionHead registers a head and materializes its parameters.
func (t *Transformer) AddPredictionHead(name string, config adapters.Config, overwrite bool) error {
	if !t.withHeads {
		return fmt.Errorf("model %s has no prediction head support", t.ModelClass())
	}
	if config == nil {
		config = adapters.Config{"num_labels": float64(2)}
	}
	if err := t.heads.Add(name, config, overwrite); err != nil {
		return err
	}

	numLabels := 2
	if v, ok := config["num_labels"].(float64); ok && v > 0 {
		numLabels = int(v)
	}
	t.headMods[name] = newPredictionHead(t.config.Hidden, numLabels, t.rng)
	return nil
}

// TrainAdapter puts the model in training mode for one adapter type:
// only that type's parameters track gradients.
func (t *Transformer) TrainAdapter(adapterType adapters.AdapterType) error {
	if !adapterType.Valid() {
		return fmt.Errorf("invalid adapter type %q", adapterType)
	}
	pattern := fmt.Sprintf("%s_adapters.", adapterType)
	for name, param := range t.NamedParameters() {
		active := strings.Contains(name, pattern) ||
			(adapterType == adapters.TextLang && strings.Contains(name, "invertible_lang_adapters."))
		param.SetRequiresGrad(active)
	}
	return nil
}

// SetBaseRequiresGrad toggles gradient tracking on base-model parameters.
func (t *Transformer) SetBaseRequiresGrad(requires bool) {
	for name, param := range t.NamedParameters() {
		if strings.HasPrefix(name, BaseModelPrefix) {
			param.SetRequiresGrad(requires)
		}
	}
}

// Forward runs the encoder over x with one active adapter ("" for none).
// Language adapters apply their invertible adapter to the input first.
func (t *Transformer) Forward(x *tensor.RawTensor, activeAdapter string) (*tensor.RawTensor, error) {
	h := x

	if activeAdapter != "" {
		if inv, ok := t.invertible[activeAdapter]; ok {
			var err error
			if h, err = inv.Forward(h); err != nil {
				return nil, err
			}
		}
	}

	for _, layer := range t.layers {
		var err error
		if h, err = layer.attn.Forward(h); err != nil {
			return nil, err
		}
		h = tensor.ReLU(h)

		if activeAdapter != "" {
			adapter := layer.taskAdapters[activeAdapter]
			if adapter == nil {
				adapter = layer.langAdapters[activeAdapter]
			}
			if adapter != nil {
				if h, err = adapter.Forward(h); err != nil {
					return nil, err
				}
			}
		}

		if h, err = layer.ffn.Forward(h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// ForwardWithHead runs the encoder and one named prediction head.
func (t *Transformer) ForwardWithHead(x *tensor.RawTensor, activeAdapter, headName string) (*tensor.RawTensor, error) {
	h, err := t.Forward(x, activeAdapter)
	if err != nil {
		return nil, err
	}
	head, ok := t.headMods[headName]
	if !ok {
		return nil, fmt.Errorf("unknown prediction head %q", headName)
	}
	return head.Forward(h)
}
