package adapters

import (
	"github.com/formiel/adapter-transformers/internal/tensor"
)

// Model is the capability set a model must expose for adapter and head
// persistence. The model owns its parameters and architecture; loaders
// only read, filter and merge parameter subsets through this interface.
type Model interface {
	// ModelName identifies the pretrained model (e.g. "bert-base-uncased").
	ModelName() string

	// ModelClass is the concrete model class name, recorded in head
	// configs so that a head is only loaded back into the same class.
	ModelClass() string

	// BaseModelPrefix is the parameter-name prefix of the base model.
	// Prediction head parameters live outside this prefix.
	BaseModelPrefix() string

	// StateDict returns the full parameter-name → tensor view.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict merges a state dict into the model non-strictly and
	// reports which model keys were absent from the dict and which dict
	// keys found no parameter.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) (missing, unexpected []string, err error)

	// Adapters returns the model's adapter registry.
	Adapters() *Registry

	// Heads returns the model's head registry, or nil when the model has
	// no named-head support.
	Heads() *HeadRegistry

	// AddAdapter registers an adapter and materializes its parameters
	// in the model architecture.
	AddAdapter(name string, adapterType AdapterType, config Config) error

	// AddPredictionHead registers a head and materializes its parameters.
	AddPredictionHead(name string, config Config, overwrite bool) error

	// TrainAdapter puts the model in training mode for one adapter type:
	// only parameters of that type track gradients.
	TrainAdapter(adapterType AdapterType) error

	// SetBaseRequiresGrad toggles gradient tracking on all base-model
	// parameters.
	SetBaseRequiresGrad(requires bool)
}
