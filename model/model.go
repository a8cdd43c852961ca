// Copyright 2025 The adapter-transformers Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model exposes the reference transformer used to exercise
// adapter and prediction head persistence.
package model

import (
	"github.com/formiel/adapter-transformers/internal/model"
)

// Config configures a reference transformer.
type Config = model.Config

// Transformer is a minimal encoder with adapter injection points.
type Transformer = model.Transformer

// Parameter is a trainable tensor with gradient-tracking state.
type Parameter = model.Parameter

// BaseModelPrefix is the parameter-name prefix of the encoder.
const BaseModelPrefix = model.BaseModelPrefix

// New creates a base transformer without head support.
func New(config Config) *Transformer {
	return model.New(config)
}

// NewWithHeads creates a transformer with named prediction head support.
func NewWithHeads(config Config) *Transformer {
	return model.NewWithHeads(config)
}
