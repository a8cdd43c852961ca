package adapters

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/formiel/adapter-transformers/internal/serialization"
	"github.com/formiel/adapter-transformers/internal/tensor"
)

// Artifact file names. Config names match the original Python library so
// that saved directories stay interchangeable; the legacy weights names
// are recognized on load for the same reason.
const (
	WeightsName     = "adapter.bin"
	ConfigName      = "adapter_config.json"
	HeadWeightsName = "model_head.bin"
	HeadConfigName  = "head_config.json"

	legacyWeightsName     = "pytorch_adapter.bin"
	legacyHeadWeightsName = "pytorch_model_head.bin"
)

// WeightsLoader saves and loads a subset of a model's weights to and from
// a directory holding a config sidecar plus a weights archive.
//
// Load returns the local directory the weights were read from and the
// name the weights were loaded under.
type WeightsLoader interface {
	Save(saveDirectory, name string, meta map[string]any) error
	Load(saveDirectory, loadAs string) (dir, name string, err error)
}

// filer is the shared save/load plumbing of all weights loaders:
// parameter-subset extraction, key renaming, config and weight
// persistence. Loader implementations embed it.
type filer struct {
	model             Model
	weightsName       string
	legacyWeightsName string
	configName        string
	log               *slog.Logger
}

func newFiler(model Model, weightsName, legacyWeightsName, configName string, log *slog.Logger) filer {
	if log == nil {
		log = slog.Default()
	}
	return filer{
		model:             model,
		weightsName:       weightsName,
		legacyWeightsName: legacyWeightsName,
		configName:        configName,
		log:               log,
	}
}

// filteredState returns the subset of the model's state dict whose keys
// satisfy the predicate.
func (f *filer) filteredState(filterFunc func(string) bool) map[string]*tensor.RawTensor {
	subset := make(map[string]*tensor.RawTensor)
	for name, raw := range f.model.StateDict() {
		if filterFunc(name) {
			subset[name] = raw
		}
	}
	return subset
}

// renameState applies a pure key-rewrite function to every entry.
func renameState(stateDict map[string]*tensor.RawTensor, renameFunc func(string) string) map[string]*tensor.RawTensor {
	renamed := make(map[string]*tensor.RawTensor, len(stateDict))
	for name, raw := range stateDict {
		renamed[renameFunc(name)] = raw
	}
	return renamed
}

// ensureDir creates the save directory if absent and rejects paths that
// exist but are not directories.
func ensureDir(saveDirectory string) error {
	info, err := os.Stat(saveDirectory)
	if os.IsNotExist(err) {
		return os.MkdirAll(saveDirectory, 0o755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, saveDirectory)
	}
	return nil
}

// saveConfig merges meta into the config record (never overwriting
// existing keys) and writes it as sorted, indented JSON.
func (f *filer) saveConfig(saveDirectory string, config Config, meta map[string]any) error {
	for k, v := range meta {
		if _, ok := config[k]; !ok {
			config[k] = v
		}
	}

	// goccy/go-json sorts map keys, matching the sidecar wire contract.
	encoded, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	configFile := filepath.Join(saveDirectory, f.configName)
	if err := os.WriteFile(configFile, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	f.log.Info("configuration saved", "path", configFile)
	return nil
}

// loadConfig reads the config sidecar of a saved artifact.
func (f *filer) loadConfig(saveDirectory string) (Config, error) {
	configFile := filepath.Join(saveDirectory, f.configName)
	f.log.Info("loading module configuration", "path", configFile)

	encoded, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no %s in %s", ErrNotFound, f.configName, saveDirectory)
		}
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(encoded, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", configFile, err)
	}
	return config, nil
}

// saveWeights writes the filtered parameter subset to the weights archive.
func (f *filer) saveWeights(saveDirectory string, filterFunc func(string) bool) error {
	if err := ensureDir(saveDirectory); err != nil {
		return err
	}

	stateDict := f.filteredState(filterFunc)
	weightsFile := filepath.Join(saveDirectory, f.weightsName)
	if err := serialization.WriteStateDict(weightsFile, stateDict, nil); err != nil {
		return fmt.Errorf("failed to save module weights: %w", err)
	}
	f.log.Info("module weights saved", "path", weightsFile, "tensors", len(stateDict))
	return nil
}

// weightsFile locates the weights archive of a saved artifact, falling
// back to the legacy PyTorch file name. Returns "" when neither exists.
func (f *filer) weightsFile(saveDirectory string) string {
	for _, name := range []string{f.weightsName, f.legacyWeightsName} {
		if name == "" {
			continue
		}
		path := filepath.Join(saveDirectory, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// loadWeights restores a weights archive into the model. Tensors are
// loaded into host memory and merged non-strictly; missing keys are
// reported only when the active predicate selects them, unexpected keys
// always. The returned slices are sorted.
func (f *filer) loadWeights(saveDirectory string, filterFunc func(string) bool, renameFunc func(string) string) (missing, unexpected []string, err error) {
	weightsFile := f.weightsFile(saveDirectory)
	if weightsFile == "" {
		return nil, nil, fmt.Errorf("%w: no %s in %s", ErrNotFound, f.weightsName, saveDirectory)
	}

	stateDict, err := serialization.ReadStateDict(weightsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	if renameFunc != nil {
		stateDict = renameState(stateDict, renameFunc)
	}

	f.log.Info("loading module weights", "path", weightsFile, "tensors", len(stateDict))

	// ErrIO is reserved for unreadable archives; a failed merge (e.g. a
	// shape mismatch) is the model's error and propagates as such.
	allMissing, unexpected, err := f.model.LoadStateDict(stateDict)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load weights into model: %w", err)
	}

	for _, key := range allMissing {
		if filterFunc(key) {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	sort.Strings(unexpected)

	if len(missing) > 0 {
		f.log.Warn("some module weights could not be found in loaded weights file",
			"keys", strings.Join(missing, ", "))
	}
	if len(unexpected) > 0 {
		f.log.Warn("some weights of the state dict could not be loaded into model",
			"keys", strings.Join(unexpected, ", "))
	}

	return missing, unexpected, nil
}
