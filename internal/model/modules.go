package model

import (
	"math/rand"

	"github.com/formiel/adapter-transformers/internal/tensor"
)

// bottleneckAdapter is the standard down-project / nonlinearity /
// up-project adapter block with a residual connection.
type bottleneckAdapter struct {
	down *Linear
	up   *Linear
}

func newBottleneckAdapter(hidden, bottleneck int, rng *rand.Rand) *bottleneckAdapter {
	return &bottleneckAdapter{
		down: NewLinear(hidden, bottleneck, rng),
		up:   NewLinear(bottleneck, hidden, rng),
	}
}

func (a *bottleneckAdapter) Forward(x *tensor.RawTensor) (*tensor.RawTensor, error) {
	h, err := a.down.Forward(x)
	if err != nil {
		return nil, err
	}
	h = tensor.ReLU(h)
	h, err = a.up.Forward(h)
	if err != nil {
		return nil, err
	}
	return tensor.Add(x, h)
}

func (a *bottleneckAdapter) parameters(prefix string, out map[string]*Parameter) {
	a.down.parameters(prefix+".down", out)
	a.up.parameters(prefix+".up", out)
}

// invertibleAdapter transforms embeddings for a language adapter. The
// reference implementation keeps it a single square projection with a
// residual connection.
type invertibleAdapter struct {
	proj *Linear
}

func newInvertibleAdapter(hidden int, rng *rand.Rand) *invertibleAdapter {
	return &invertibleAdapter{proj: NewLinear(hidden, hidden, rng)}
}

func (a *invertibleAdapter) Forward(x *tensor.RawTensor) (*tensor.RawTensor, error) {
	h, err := a.proj.Forward(x)
	if err != nil {
		return nil, err
	}
	return tensor.Add(x, h)
}

func (a *invertibleAdapter) parameters(prefix string, out map[string]*Parameter) {
	a.proj.parameters(prefix, out)
}

// predictionHead maps hidden states to task logits.
type predictionHead struct {
	out *Linear
}

func newPredictionHead(hidden, numLabels int, rng *rand.Rand) *predictionHead {
	return &predictionHead{out: NewLinear(hidden, numLabels, rng)}
}

func (h *predictionHead) Forward(x *tensor.RawTensor) (*tensor.RawTensor, error) {
	return h.out.Forward(x)
}

func (h *predictionHead) parameters(prefix string, out map[string]*Parameter) {
	h.out.parameters(prefix, out)
}
