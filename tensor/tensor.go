// Copyright 2025 The adapter-transformers Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the host-memory tensor types used by adapter
// and prediction head persistence.
package tensor

import (
	"github.com/formiel/adapter-transformers/internal/tensor"
)

// RawTensor is the low-level host-memory tensor representation: a shape,
// a dtype and a byte buffer with typed views on top.
type RawTensor = tensor.RawTensor

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// DataType represents runtime type information for tensors.
type DataType = tensor.DataType

// Supported data types.
const (
	Float32  = tensor.Float32
	Float64  = tensor.Float64
	Float16  = tensor.Float16
	BFloat16 = tensor.BFloat16
	Int32    = tensor.Int32
	Int64    = tensor.Int64
	Uint8    = tensor.Uint8
	Bool     = tensor.Bool
)

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// FromFloat32 creates a Float32 RawTensor holding a copy of values.
func FromFloat32(values []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromFloat32(values, shape)
}

// ToFloat32 returns a Float32 tensor with the same values as r.
func ToFloat32(r *RawTensor) (*RawTensor, error) {
	return tensor.ToFloat32(r)
}

// FromFloat32As narrows a Float32 tensor into the given dtype.
func FromFloat32As(r *RawTensor, dtype DataType) (*RawTensor, error) {
	return tensor.FromFloat32As(r, dtype)
}
