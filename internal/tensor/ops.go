package tensor

import "fmt"

// Host math for the reference model. These kernels are deliberately naive:
// persistence round-trip tests need exact, reproducible numerics, not speed.

// MatMul computes the matrix product of two 2D Float32 tensors.
// a has shape [m, k], b has shape [k, n]; the result has shape [m, n].
func MatMul(a, b *RawTensor) (*RawTensor, error) {
	if len(a.Shape()) != 2 || len(b.Shape()) != 2 {
		return nil, fmt.Errorf("MatMul needs 2D tensors, got %v and %v", a.Shape(), b.Shape())
	}
	m, k := a.Shape()[0], a.Shape()[1]
	k2, n := b.Shape()[0], b.Shape()[1]
	if k != k2 {
		return nil, fmt.Errorf("MatMul shape mismatch: %v x %v", a.Shape(), b.Shape())
	}

	out, err := NewRaw(Shape{m, n}, Float32)
	if err != nil {
		return nil, err
	}
	av, bv, ov := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float32
			for p := 0; p < k; p++ {
				sum += av[i*k+p] * bv[p*n+j]
			}
			ov[i*n+j] = sum
		}
	}
	return out, nil
}

// AddRow adds a row vector of shape [n] to every row of a [m, n] tensor.
func AddRow(a, row *RawTensor) (*RawTensor, error) {
	if len(a.Shape()) != 2 || len(row.Shape()) != 1 {
		return nil, fmt.Errorf("AddRow needs [m, n] and [n] tensors, got %v and %v", a.Shape(), row.Shape())
	}
	m, n := a.Shape()[0], a.Shape()[1]
	if row.Shape()[0] != n {
		return nil, fmt.Errorf("AddRow width mismatch: %v vs %v", a.Shape(), row.Shape())
	}

	out := a.Clone()
	ov, rv := out.AsFloat32(), row.AsFloat32()
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			ov[i*n+j] += rv[j]
		}
	}
	return out, nil
}

// Add computes the element-wise sum of two Float32 tensors of equal shape.
func Add(a, b *RawTensor) (*RawTensor, error) {
	if !a.Shape().Equal(b.Shape()) {
		return nil, fmt.Errorf("Add shape mismatch: %v vs %v", a.Shape(), b.Shape())
	}
	out := a.Clone()
	ov, bv := out.AsFloat32(), b.AsFloat32()
	for i := range ov {
		ov[i] += bv[i]
	}
	return out, nil
}

// ReLU applies max(0, x) element-wise to a Float32 tensor.
func ReLU(a *RawTensor) *RawTensor {
	out := a.Clone()
	ov := out.AsFloat32()
	for i, v := range ov {
		if v < 0 {
			ov[i] = 0
		}
	}
	return out
}
