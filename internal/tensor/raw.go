package tensor

import (
	"fmt"
	"unsafe"
)

// RawTensor is the low-level host-memory tensor representation.
//
// Parameter persistence never assumes a compute device: every tensor that
// passes through a weights loader lives in host memory, so RawTensor is a
// plain shape + dtype + byte buffer with typed views on top.
type RawTensor struct {
	data  []byte
	shape Shape
	dtype DataType
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		data:  make([]byte, shape.NumElements()*dtype.Size()),
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// FromFloat32 creates a Float32 RawTensor holding a copy of values.
func FromFloat32(values []float32, shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(values) != shape.NumElements() {
		return nil, fmt.Errorf("shape %v needs %d elements, got %d", shape, shape.NumElements(), len(values))
	}
	r, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	copy(r.AsFloat32(), values)
	return r, nil
}

// FromBytes creates a RawTensor that takes ownership of data.
// The byte length must match shape and dtype exactly.
func FromBytes(data []byte, shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	want := shape.NumElements() * dtype.Size()
	if len(data) != want {
		return nil, fmt.Errorf("shape %v with dtype %s needs %d bytes, got %d", shape, dtype, want, len(data))
	}
	return &RawTensor{data: data, shape: shape.Clone(), dtype: dtype}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsUint16 interprets the data as []uint16 bit patterns.
// Panics unless the tensor's dtype is Float16 or BFloat16.
func (r *RawTensor) AsUint16() []uint16 {
	if r.dtype != Float16 && r.dtype != BFloat16 {
		panic(fmt.Sprintf("tensor dtype is %s, not a 16-bit float", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// Clone returns a deep copy of the tensor.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]byte, len(r.data))
	copy(data, r.data)
	return &RawTensor{data: data, shape: r.shape.Clone(), dtype: r.dtype}
}
