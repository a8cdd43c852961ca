package adapters

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	json "github.com/goccy/go-json"
)

// AdapterType distinguishes the kinds of adapter a model can carry.
type AdapterType string

// Supported adapter types.
const (
	TextTask AdapterType = "text_task"
	TextLang AdapterType = "text_lang"
)

// Valid reports whether t is a known adapter type.
func (t AdapterType) Valid() bool {
	return t == TextTask || t == TextLang
}

// Config is a JSON-serializable configuration record: adapter or head
// hyperparameters, or the full sidecar record written next to a weights
// archive.
type Config map[string]any

// Clone returns a shallow copy of the config.
func (c Config) Clone() Config {
	clone := make(Config, len(c))
	for k, v := range c {
		clone[k] = v
	}
	return clone
}

// String returns the string value under key, or "" if absent or not a string.
func (c Config) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Sub returns the nested config under key, or nil.
func (c Config) Sub(key string) Config {
	switch v := c[key].(type) {
	case Config:
		return v
	case map[string]any:
		return Config(v)
	default:
		return nil
	}
}

// DefaultAdapterConfig is the global fallback used when neither the caller
// nor the adapter type specifies a configuration.
func DefaultAdapterConfig() Config {
	return Config{
		"original_ln_before": false,
		"original_ln_after":  true,
		"residual_before_ln": true,
		"non_linearity":      "relu",
		"reduction_factor":   float64(16),
		"invertible_adapter": false,
	}
}

// Sidecar config keys.
const (
	keyType       = "type"
	keyName       = "name"
	keyModelName  = "model_name"
	keyModelClass = "model_class"
	keyConfig     = "config"
)

// buildFullConfig assembles the sidecar config record for a saved artifact.
func buildFullConfig(innerConfig Config, fields Config) Config {
	full := fields.Clone()
	if innerConfig != nil {
		full[keyConfig] = innerConfig
	} else {
		full[keyConfig] = nil
	}
	return full
}

// ConfigID returns a deterministic content hash of an adapter config.
// The same config always hashes to the same ID across saves and processes.
func ConfigID(config Config) (string, error) {
	// goccy/go-json sorts map keys, so the encoding is canonical.
	canonical, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("cannot hash adapter config: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:8]), nil
}
