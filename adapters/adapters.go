// Copyright 2025 The adapter-transformers Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package adapters provides save/load support for adapter modules and
// prediction heads of transformer models.
//
// A saved artifact is a directory with a JSON config sidecar and a binary
// weights archive. Loaders filter the relevant parameter subset out of a
// model's state dictionary and merge it back on load; the managers
// compose loaders into the save_adapter/load_adapter surface.
//
// Example:
//
//	mgr := adapters.NewHeadedAdapterManager(m, nil)
//	if err := mgr.SaveAdapterWithHead("out/sst-2", "sst-2", true, nil, nil); err != nil {
//	    log.Fatal(err)
//	}
//	name, err := mgr.LoadAdapterWithHead("out/sst-2", true, adapters.LoadOptions{LoadAs: "glue"}, nil)
package adapters

import (
	"log/slog"

	"github.com/formiel/adapter-transformers/internal/adapters"
)

// AdapterType distinguishes the kinds of adapter a model can carry.
type AdapterType = adapters.AdapterType

// Supported adapter types.
const (
	TextTask = adapters.TextTask
	TextLang = adapters.TextLang
)

// Config is a JSON-serializable configuration record.
type Config = adapters.Config

// Model is the capability set a model must expose for persistence.
type Model = adapters.Model

// Registry tracks the adapters attached to a model.
type Registry = adapters.Registry

// HeadRegistry tracks the named prediction heads of a model.
type HeadRegistry = adapters.HeadRegistry

// WeightsLoader saves and loads a subset of a model's weights.
type WeightsLoader = adapters.WeightsLoader

// AdapterLoader saves and loads adapter modules.
type AdapterLoader = adapters.AdapterLoader

// PredictionHeadLoader saves and loads prediction head modules.
type PredictionHeadLoader = adapters.PredictionHeadLoader

// LoadOptions tunes adapter loading.
type LoadOptions = adapters.LoadOptions

// AdapterManager is the adapter persistence facade for a model.
type AdapterManager = adapters.AdapterManager

// HeadedAdapterManager extends AdapterManager for models with heads.
type HeadedAdapterManager = adapters.HeadedAdapterManager

// Artifact file names.
const (
	WeightsName     = adapters.WeightsName
	ConfigName      = adapters.ConfigName
	HeadWeightsName = adapters.HeadWeightsName
	HeadConfigName  = adapters.HeadConfigName
)

// Error taxonomy; test with errors.Is.
var (
	ErrConfiguration = adapters.ErrConfiguration
	ErrNotFound      = adapters.ErrNotFound
	ErrIO            = adapters.ErrIO
	ErrIncompatible  = adapters.ErrIncompatible
	ErrNotADirectory = adapters.ErrNotADirectory
)

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return adapters.NewRegistry()
}

// NewHeadRegistry creates an empty head registry.
func NewHeadRegistry() *HeadRegistry {
	return adapters.NewHeadRegistry()
}

// NewAdapterLoader creates an adapter loader for model. adapterType may
// be "" for an untyped loader; logger may be nil.
func NewAdapterLoader(model Model, adapterType AdapterType, log *slog.Logger) *AdapterLoader {
	return adapters.NewAdapterLoader(model, adapterType, log)
}

// NewPredictionHeadLoader creates a head loader for model; logger may be nil.
func NewPredictionHeadLoader(model Model, errorOnMissing bool, log *slog.Logger) *PredictionHeadLoader {
	return adapters.NewPredictionHeadLoader(model, errorOnMissing, log)
}

// NewAdapterManager creates a persistence facade for model; logger may be nil.
func NewAdapterManager(model Model, log *slog.Logger) *AdapterManager {
	return adapters.NewAdapterManager(model, log)
}

// NewHeadedAdapterManager creates a facade for a model with heads.
func NewHeadedAdapterManager(model Model, log *slog.Logger) *HeadedAdapterManager {
	return adapters.NewHeadedAdapterManager(model, log)
}

// DefaultAdapterConfig is the global fallback adapter configuration.
func DefaultAdapterConfig() Config {
	return adapters.DefaultAdapterConfig()
}

// ConfigID returns a deterministic content hash of an adapter config.
func ConfigID(config Config) (string, error) {
	return adapters.ConfigID(config)
}
