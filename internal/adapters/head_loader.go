package adapters

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// PredictionHeadLoader saves and loads prediction head modules from the
// file system.
//
// Heads are class-specific: the config records the owning model class and
// loading into a different class is refused. With errorOnMissing disabled
// the loader degrades missing or incompatible heads to a warning, which
// is how it runs as an auxiliary loader next to an AdapterLoader.
type PredictionHeadLoader struct {
	filer
	errorOnMissing bool
}

// NewPredictionHeadLoader creates a head loader for model; logger may be nil.
func NewPredictionHeadLoader(model Model, errorOnMissing bool, log *slog.Logger) *PredictionHeadLoader {
	return &PredictionHeadLoader{
		filer:          newFiler(model, HeadWeightsName, legacyHeadWeightsName, HeadConfigName, log),
		errorOnMissing: errorOnMissing,
	}
}

// headFilter selects parameters outside the base model, optionally
// restricted to one named head.
func (l *PredictionHeadLoader) headFilter(headName string) func(string) bool {
	prefix := l.model.BaseModelPrefix()
	if headName == "" {
		return func(key string) bool {
			return !strings.HasPrefix(key, prefix)
		}
	}
	pattern := "heads." + headName
	return func(key string) bool {
		return !strings.HasPrefix(key, prefix) && strings.Contains(key, pattern)
	}
}

func headRename(oldName, newName string) func(string) string {
	return func(key string) string {
		return strings.ReplaceAll(key, "heads."+oldName, "heads."+newName)
	}
}

// Save writes a prediction head into saveDirectory. With an empty name,
// or on models without a named-head registry, everything outside the base
// model is saved as the single unnamed head.
func (l *PredictionHeadLoader) Save(saveDirectory, name string, meta map[string]any) error {
	if name != "" {
		if heads := l.model.Heads(); heads != nil {
			if !heads.Has(name) {
				if l.errorOnMissing {
					return fmt.Errorf("%w: unknown head name %q", ErrConfiguration, name)
				}
				l.log.Warn("no prediction head available", "name", name)
				return nil
			}
		} else {
			// No named-head registry: assume a single unnamed head and
			// ignore the name.
			name = ""
		}
	}

	if err := ensureDir(saveDirectory); err != nil {
		return err
	}

	var headConfig Config
	if name != "" {
		headConfig, _ = l.model.Heads().Get(name)
	}

	fields := Config{keyModelClass: l.model.ModelClass()}
	if name != "" {
		fields[keyName] = name
	} else {
		fields[keyName] = nil
	}
	if err := l.saveConfig(saveDirectory, buildFullConfig(headConfig, fields), meta); err != nil {
		return err
	}

	return l.saveWeights(saveDirectory, l.headFilter(name))
}

// Load reads a prediction head from saveDirectory and attaches it to the
// model. Without a config sidecar the weights are loaded blindly with no
// renaming (single-head models saved without head metadata).
//
// Returns the directory and the effective head name; both are empty when
// a tolerant loader found nothing to load.
func (l *PredictionHeadLoader) Load(saveDirectory, loadAs string) (string, string, error) {
	if l.weightsFile(saveDirectory) == "" {
		if l.errorOnMissing {
			return "", "", fmt.Errorf("%w: no head weights in %s", ErrNotFound, saveDirectory)
		}
		l.log.Warn("no matching prediction head found", "dir", saveDirectory)
		return "", "", nil
	}

	headName := ""
	storedName := ""

	config, err := l.loadConfig(saveDirectory)
	switch {
	case err == nil:
		modelClass := config.String(keyModelClass)
		if modelClass != l.model.ModelClass() {
			if l.errorOnMissing {
				return "", "", fmt.Errorf("%w: head was saved for %q, model is %q",
					ErrIncompatible, modelClass, l.model.ModelClass())
			}
			l.log.Warn("no matching prediction head found", "dir", saveDirectory)
			return "", "", nil
		}
		if heads := l.model.Heads(); heads != nil {
			storedName = config.String(keyName)
			headName = loadAs
			if headName == "" {
				headName = storedName
			}
			if heads.Has(headName) {
				l.log.Warn("overwriting existing head", "name", headName)
			}
			if err := l.model.AddPredictionHead(headName, config.Sub(keyConfig), true); err != nil {
				return "", "", err
			}
		}
	case errors.Is(err, ErrNotFound):
		// No sidecar config: blind untyped load.
	default:
		return "", "", err
	}

	var renameFunc func(string) string
	if headName != "" && storedName != headName {
		renameFunc = headRename(storedName, headName)
	}
	if _, _, err := l.loadWeights(saveDirectory, l.headFilter(headName), renameFunc); err != nil {
		return "", "", err
	}

	return saveDirectory, headName, nil
}
