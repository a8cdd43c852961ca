// Package model provides a reference transformer encoder with adapter
// injection points and named prediction heads.
//
// It implements the adapters.Model capability set and stands in for the
// external framework side of the persistence contract: parameter storage,
// architecture mutation when an adapter or head is registered, and a
// deterministic forward pass for round-trip verification.
package model

import (
	"math/rand"

	"github.com/formiel/adapter-transformers/internal/tensor"
)

// Parameter is a trainable tensor with gradient-tracking state.
type Parameter struct {
	data         *tensor.RawTensor
	requiresGrad bool
}

// NewParameter wraps a tensor as a trainable parameter.
func NewParameter(data *tensor.RawTensor) *Parameter {
	return &Parameter{data: data, requiresGrad: true}
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.data
}

// RequiresGrad reports whether the parameter tracks gradients.
func (p *Parameter) RequiresGrad() bool {
	return p.requiresGrad
}

// SetRequiresGrad toggles gradient tracking.
func (p *Parameter) SetRequiresGrad(requires bool) {
	p.requiresGrad = requires
}

// uniformParameter creates a parameter initialized from rng with values
// in [-scale, scale). Initialization is deterministic given the rng state,
// so two models built from the same seed are numerically identical twins.
func uniformParameter(shape tensor.Shape, scale float64, rng *rand.Rand) *Parameter {
	raw, err := tensor.NewRaw(shape, tensor.Float32)
	if err != nil {
		panic(err)
	}
	values := raw.AsFloat32()
	for i := range values {
		values[i] = float32((rng.Float64()*2 - 1) * scale)
	}
	return NewParameter(raw)
}
