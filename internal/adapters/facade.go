package adapters

import (
	"fmt"
	"log/slog"
	"path/filepath"
)

// AdapterManager is the adapter persistence facade for a model. It is a
// plain composed struct: construct one around any Model and use it for
// saving, loading and training-mode bookkeeping.
type AdapterManager struct {
	model  Model
	log    *slog.Logger
	frozen bool
}

// NewAdapterManager creates a manager for model; logger may be nil.
func NewAdapterManager(model Model, log *slog.Logger) *AdapterManager {
	if log == nil {
		log = slog.Default()
	}
	return &AdapterManager{model: model, log: log}
}

// Model returns the managed model.
func (m *AdapterManager) Model() Model {
	return m.model
}

// HasAdapters reports whether any adapter of the given type is registered;
// with adapterType "" it reports whether any adapter exists at all.
func (m *AdapterManager) HasAdapters(adapterType AdapterType) bool {
	if adapterType == "" {
		return m.model.Adapters().Len() > 0
	}
	return len(m.model.Adapters().List(adapterType)) > 0
}

// SetAdapterConfig sets the default configuration for an adapter type.
func (m *AdapterManager) SetAdapterConfig(adapterType AdapterType, config Config) error {
	if !adapterType.Valid() {
		return fmt.Errorf("%w: invalid adapter type %q", ErrConfiguration, adapterType)
	}
	return m.model.Adapters().SetDefault(adapterType, config)
}

// TrainAdapter puts the model in training mode for one adapter type.
func (m *AdapterManager) TrainAdapter(adapterType AdapterType) error {
	if !adapterType.Valid() {
		return fmt.Errorf("%w: invalid adapter type %q", ErrConfiguration, adapterType)
	}
	return m.model.TrainAdapter(adapterType)
}

// TrainLanguageAdapter puts the model in language-adapter training mode.
func (m *AdapterManager) TrainLanguageAdapter() error {
	return m.TrainAdapter(TextLang)
}

// TrainTaskAdapter puts the model in task-adapter training mode.
func (m *AdapterManager) TrainTaskAdapter() error {
	return m.TrainAdapter(TextTask)
}

// SaveAdapter saves a registered adapter and its configuration into
// saveDirectory. Auxiliary loaders save additional weights (such as a
// prediction head) next to the adapter.
func (m *AdapterManager) SaveAdapter(saveDirectory, adapterName string, meta map[string]any, aux []WeightsLoader) error {
	adapterType := m.model.Adapters().Type(adapterName)
	if adapterType == "" {
		return fmt.Errorf("%w: could not resolve %q to a valid adapter name", ErrConfiguration, adapterName)
	}

	loader := NewAdapterLoader(m.model, adapterType, m.log)
	if err := loader.Save(saveDirectory, adapterName, meta); err != nil {
		return err
	}

	for _, weightsLoader := range aux {
		if err := weightsLoader.Save(saveDirectory, adapterName, nil); err != nil {
			return err
		}
	}
	return nil
}

// LoadAdapter loads an adapter from a directory or URL and attaches it to
// the model, returning the name it was attached under. Auxiliary loaders
// load additional weights from the resolved directory.
func (m *AdapterManager) LoadAdapter(source string, opts LoadOptions, aux []WeightsLoader) (string, error) {
	return m.loadAdapter(source, "", opts, aux)
}

// LoadAdapterAs loads an adapter restricted to one type.
func (m *AdapterManager) LoadAdapterAs(source string, adapterType AdapterType, opts LoadOptions, aux []WeightsLoader) (string, error) {
	if adapterType != "" && !adapterType.Valid() {
		return "", fmt.Errorf("%w: invalid adapter type %q", ErrConfiguration, adapterType)
	}
	return m.loadAdapter(source, adapterType, opts, aux)
}

func (m *AdapterManager) loadAdapter(source string, adapterType AdapterType, opts LoadOptions, aux []WeightsLoader) (string, error) {
	loader := NewAdapterLoader(m.model, adapterType, m.log)
	dir, name, err := loader.LoadWithOptions(source, opts)
	if err != nil {
		return "", err
	}

	for _, weightsLoader := range aux {
		if _, _, err := weightsLoader.Load(dir, opts.LoadAs); err != nil {
			return "", err
		}
	}
	return name, nil
}

// SaveAllAdapters saves every registered adapter into a subdirectory of
// saveDirectory named after it. Each saved config carries a "config_id"
// metadata key: a deterministic hash of that adapter's config.
func (m *AdapterManager) SaveAllAdapters(saveDirectory string, meta map[string]any) error {
	return m.saveAllAdapters(saveDirectory, meta, nil)
}

func (m *AdapterManager) saveAllAdapters(saveDirectory string, meta map[string]any, aux []WeightsLoader) error {
	for _, name := range m.model.Adapters().Names() {
		config, _, _ := m.model.Adapters().Get(name)
		configID, err := ConfigID(config)
		if err != nil {
			return err
		}

		adapterMeta := make(map[string]any, len(meta)+1)
		for k, v := range meta {
			adapterMeta[k] = v
		}
		adapterMeta["config_id"] = configID

		if err := m.SaveAdapter(filepath.Join(saveDirectory, name), name, adapterMeta, aux); err != nil {
			return err
		}
	}
	return nil
}

// FreezeModel toggles gradient tracking on all base-model parameters and
// records the state as a model-wide flag.
func (m *AdapterManager) FreezeModel(freeze bool) {
	m.model.SetBaseRequiresGrad(!freeze)
	m.frozen = freeze
}

// Frozen reports whether the base model is currently frozen.
func (m *AdapterManager) Frozen() bool {
	return m.frozen
}

// HeadedAdapterManager extends AdapterManager for models with prediction
// heads: adapter save/load can transparently bundle the associated head.
type HeadedAdapterManager struct {
	AdapterManager
}

// NewHeadedAdapterManager creates a manager for a model with heads.
func NewHeadedAdapterManager(model Model, log *slog.Logger) *HeadedAdapterManager {
	return &HeadedAdapterManager{AdapterManager: *NewAdapterManager(model, log)}
}

// SaveHead saves a prediction head into saveDirectory.
func (m *HeadedAdapterManager) SaveHead(saveDirectory, headName string) error {
	return NewPredictionHeadLoader(m.model, true, m.log).Save(saveDirectory, headName, nil)
}

// LoadHead loads a prediction head from saveDirectory.
func (m *HeadedAdapterManager) LoadHead(saveDirectory, loadAs string) (string, string, error) {
	return NewPredictionHeadLoader(m.model, true, m.log).Load(saveDirectory, loadAs)
}

// SaveAdapterWithHead saves an adapter and, when withHead is set, bundles
// the associated prediction head via a tolerant head loader. The
// auxiliary-loader list is built fresh on every call.
func (m *HeadedAdapterManager) SaveAdapterWithHead(saveDirectory, adapterName string, withHead bool, meta map[string]any, aux []WeightsLoader) error {
	loaders := make([]WeightsLoader, 0, len(aux)+1)
	loaders = append(loaders, aux...)
	if withHead {
		loaders = append(loaders, NewPredictionHeadLoader(m.model, false, m.log))
	}
	return m.SaveAdapter(saveDirectory, adapterName, meta, loaders)
}

// SaveAllAdapters saves every registered adapter and bundles the
// prediction head sharing its name, when one exists, into each
// subdirectory.
func (m *HeadedAdapterManager) SaveAllAdapters(saveDirectory string, meta map[string]any) error {
	return m.SaveAllAdaptersWithHeads(saveDirectory, true, meta)
}

// SaveAllAdaptersWithHeads is SaveAllAdapters with head bundling optional.
// Adapters without a same-named head save without one; the tolerant head
// loader degrades those to a warning.
func (m *HeadedAdapterManager) SaveAllAdaptersWithHeads(saveDirectory string, withHeads bool, meta map[string]any) error {
	var loaders []WeightsLoader
	if withHeads {
		loaders = []WeightsLoader{NewPredictionHeadLoader(m.model, false, m.log)}
	}
	return m.saveAllAdapters(saveDirectory, meta, loaders)
}

// LoadAdapterWithHead loads an adapter and, when withHead is set, any
// prediction head saved next to it.
func (m *HeadedAdapterManager) LoadAdapterWithHead(source string, withHead bool, opts LoadOptions, aux []WeightsLoader) (string, error) {
	loaders := make([]WeightsLoader, 0, len(aux)+1)
	loaders = append(loaders, aux...)
	if withHead {
		loaders = append(loaders, NewPredictionHeadLoader(m.model, false, m.log))
	}
	return m.LoadAdapter(source, opts, loaders)
}
