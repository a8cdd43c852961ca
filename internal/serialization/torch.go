package serialization

import (
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/formiel/adapter-transformers/internal/tensor"
)

// ReadTorchStateDict reads a PyTorch checkpoint written by torch.save into
// host-memory raw tensors. All values are widened to float32; the loaders
// make no device or precision assumption beyond host float32.
func ReadTorchStateDict(path string) (map[string]*tensor.RawTensor, error) {
	obj, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load pytorch checkpoint: %w", err)
	}

	entries, err := torchEntries(obj)
	if err != nil {
		return nil, err
	}

	stateDict := make(map[string]*tensor.RawTensor, len(entries))
	for name, value := range entries {
		t, ok := value.(*pytorch.Tensor)
		if !ok {
			// Non-tensor entries (e.g. version counters) are skipped.
			continue
		}
		raw, err := torchTensor(t)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		stateDict[name] = raw
	}
	return stateDict, nil
}

// torchEntries flattens the unpickled container into name → value.
func torchEntries(obj interface{}) (map[string]interface{}, error) {
	entries := make(map[string]interface{})

	put := func(key, value interface{}) error {
		name, ok := key.(string)
		if !ok {
			return fmt.Errorf("non-string key %v in checkpoint dict", key)
		}
		entries[name] = value
		return nil
	}

	switch d := obj.(type) {
	case *types.Dict:
		for _, entry := range *d {
			if err := put(entry.Key, entry.Value); err != nil {
				return nil, err
			}
		}
	case *types.OrderedDict:
		for key, entry := range d.Map {
			if err := put(key, entry.Value); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unexpected checkpoint container %T", obj)
	}
	return entries, nil
}

// torchTensor converts a gopickle tensor into a float32 RawTensor.
// Tensors must be contiguous; adapter checkpoints always are.
func torchTensor(t *pytorch.Tensor) (*tensor.RawTensor, error) {
	shape := make(tensor.Shape, len(t.Size))
	n := 1
	for i, dim := range t.Size {
		shape[i] = dim
		n *= dim
	}

	values := make([]float32, n)
	switch storage := t.Source.(type) {
	case *pytorch.FloatStorage:
		copy(values, storage.Data[t.StorageOffset:t.StorageOffset+n])
	case *pytorch.HalfStorage:
		copy(values, storage.Data[t.StorageOffset:t.StorageOffset+n])
	case *pytorch.BFloat16Storage:
		copy(values, storage.Data[t.StorageOffset:t.StorageOffset+n])
	case *pytorch.DoubleStorage:
		for i, v := range storage.Data[t.StorageOffset : t.StorageOffset+n] {
			values[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("%w: torch storage %T", ErrUnsupportedDType, t.Source)
	}

	if len(shape) == 0 {
		shape = tensor.Shape{1}
	}
	return tensor.FromFloat32(values, shape)
}
