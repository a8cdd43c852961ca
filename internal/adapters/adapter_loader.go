package adapters

import (
	"fmt"
	"log/slog"
	"strings"
)

// AdapterLoader saves and loads adapter modules from the file system or a
// remote archive.
//
// A loader may be bound to one adapter type, in which case loading an
// artifact of a different type fails.
type AdapterLoader struct {
	filer
	adapterType AdapterType
}

// NewAdapterLoader creates an adapter loader for model. adapterType may be
// "" for an untyped loader; logger may be nil.
func NewAdapterLoader(model Model, adapterType AdapterType, log *slog.Logger) *AdapterLoader {
	return &AdapterLoader{
		filer:       newFiler(model, WeightsName, legacyWeightsName, ConfigName, log),
		adapterType: adapterType,
	}
}

// adapterFilter builds the predicate selecting the parameters of one
// adapter. Language adapters additionally own the invertible adapter
// parameters at the embedding level.
func adapterFilter(adapterType AdapterType, name string) (func(string) bool, error) {
	pattern := fmt.Sprintf("%s_adapters.%s", adapterType, name)
	switch {
	case adapterType == TextLang:
		invertible := "invertible_lang_adapters." + name
		return func(key string) bool {
			return strings.Contains(key, pattern) || strings.Contains(key, invertible)
		}, nil
	case adapterType.Valid():
		return func(key string) bool {
			return strings.Contains(key, pattern)
		}, nil
	default:
		return nil, fmt.Errorf("%w: invalid adapter type %q", ErrConfiguration, adapterType)
	}
}

// adapterRename rewrites parameter keys of an adapter saved under oldName
// so they belong to newName. Both the regular and the invertible adapter
// key forms contain "_adapters.<name>", so one substring rewrite covers both.
func adapterRename(oldName, newName string) func(string) string {
	return func(key string) string {
		return strings.ReplaceAll(key, "_adapters."+oldName, "_adapters."+newName)
	}
}

// Save writes the named adapter and its configuration into saveDirectory
// so it can be reloaded with Load. The adapter must be registered on the
// model. meta is merged into the config record without overwriting.
func (l *AdapterLoader) Save(saveDirectory, name string, meta map[string]any) error {
	if err := ensureDir(saveDirectory); err != nil {
		return err
	}

	adapterConfig, adapterType, ok := l.model.Adapters().Get(name)
	if !ok {
		return fmt.Errorf("%w: no adapter with name %q is part of this model", ErrConfiguration, name)
	}

	fullConfig := buildFullConfig(adapterConfig, Config{
		keyType:      string(adapterType),
		keyName:      name,
		keyModelName: l.model.ModelName(),
	})
	if err := l.saveConfig(saveDirectory, fullConfig, meta); err != nil {
		return err
	}

	filterFunc, err := adapterFilter(adapterType, name)
	if err != nil {
		return err
	}
	return l.saveWeights(saveDirectory, filterFunc)
}

// LoadOptions tunes adapter loading.
type LoadOptions struct {
	// Config overrides the requested adapter configuration. When nil the
	// registered default for the loader's type applies, then the global
	// default.
	Config Config

	// Version of the adapter to resolve, for versioned sources.
	Version string

	// ModelName overrides the model identifier used for resolution.
	ModelName string

	// LoadAs imports the adapter under a different name than it was
	// saved with.
	LoadAs string

	// CacheDir overrides where downloaded archives are extracted.
	CacheDir string
}

// Load reads a saved adapter from source, which may be a local directory
// or a URL of a zip archive, and attaches it to the model. If the adapter
// is not yet registered on the model it is added, materializing its
// parameters; otherwise its weights are overwritten with a warning.
//
// Returns the local directory the weights were loaded from and the name
// the adapter was attached under.
func (l *AdapterLoader) Load(source, loadAs string) (string, string, error) {
	return l.LoadWithOptions(source, LoadOptions{LoadAs: loadAs})
}

// LoadWithOptions is Load with full control over resolution and naming.
func (l *AdapterLoader) LoadWithOptions(source string, opts LoadOptions) (string, string, error) {
	// Precedence: caller config > registered default for this type >
	// global default.
	requestedConfig := opts.Config
	if requestedConfig == nil {
		requestedConfig = l.model.Adapters().Default(l.adapterType)
	}
	if requestedConfig == nil {
		requestedConfig = DefaultAdapterConfig()
	}

	modelName := l.model.ModelName()
	if modelName == "" {
		modelName = opts.ModelName
	}

	resolved, err := resolveSource(source, resolveRequest{
		config:      requestedConfig,
		adapterType: l.adapterType,
		modelName:   modelName,
		version:     opts.Version,
		cacheDir:    opts.CacheDir,
	}, l.log)
	if err != nil {
		return "", "", err
	}

	config, err := l.loadConfig(resolved)
	if err != nil {
		return "", "", err
	}

	storedType := AdapterType(config.String(keyType))
	if l.adapterType != "" && storedType != l.adapterType {
		return "", "", fmt.Errorf("%w: loaded adapter has type %q, expected %q",
			ErrConfiguration, storedType, l.adapterType)
	}

	storedName := config.String(keyName)
	adapterName := opts.LoadAs
	if adapterName == "" {
		adapterName = storedName
	}

	if !l.model.Adapters().Has(adapterName) {
		if err := l.model.AddAdapter(adapterName, storedType, config.Sub(keyConfig)); err != nil {
			return "", "", err
		}
	} else {
		l.log.Warn("overwriting existing adapter", "name", adapterName)
	}

	// The missing-key predicate matches keys as they exist on the target
	// model, i.e. under the effective name.
	filterFunc, err := adapterFilter(storedType, adapterName)
	if err != nil {
		return "", "", err
	}
	renameFunc := adapterRename(storedName, adapterName)
	if _, _, err := l.loadWeights(resolved, filterFunc, renameFunc); err != nil {
		return "", "", err
	}

	return resolved, adapterName, nil
}
