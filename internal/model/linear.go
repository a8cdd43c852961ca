package model

import (
	"math"
	"math/rand"

	"github.com/formiel/adapter-transformers/internal/tensor"
)

// Linear is a fully connected layer: y = x @ W.T + b.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]
}

// NewLinear creates a Linear layer with Xavier-style uniform init.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	scale := math.Sqrt(6.0 / float64(inFeatures+outFeatures))
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      uniformParameter(tensor.Shape{outFeatures, inFeatures}, scale, rng),
		bias:        NewParameter(mustZeros(tensor.Shape{outFeatures})),
	}
}

func mustZeros(shape tensor.Shape) *tensor.RawTensor {
	raw, err := tensor.NewRaw(shape, tensor.Float32)
	if err != nil {
		panic(err)
	}
	return raw
}

// Forward computes x @ W.T + b for x of shape [batch, in_features].
func (l *Linear) Forward(x *tensor.RawTensor) (*tensor.RawTensor, error) {
	wT, err := transpose(l.weight.Tensor())
	if err != nil {
		return nil, err
	}
	out, err := tensor.MatMul(x, wT)
	if err != nil {
		return nil, err
	}
	return tensor.AddRow(out, l.bias.Tensor())
}

// transpose returns a transposed copy of a 2D tensor.
func transpose(a *tensor.RawTensor) (*tensor.RawTensor, error) {
	m, n := a.Shape()[0], a.Shape()[1]
	out, err := tensor.NewRaw(tensor.Shape{n, m}, tensor.Float32)
	if err != nil {
		return nil, err
	}
	av, ov := a.AsFloat32(), out.AsFloat32()
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			ov[j*m+i] = av[i*n+j]
		}
	}
	return out, nil
}

// parameters contributes this layer's parameters under prefix.
func (l *Linear) parameters(prefix string, out map[string]*Parameter) {
	out[prefix+".weight"] = l.weight
	out[prefix+".bias"] = l.bias
}
