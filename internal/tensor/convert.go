package tensor

import (
	"encoding/binary"
	"fmt"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// ToFloat32 returns a Float32 tensor with the same values as r.
//
// Float32 tensors are returned unchanged. Float16, BFloat16 and Float64
// tensors are converted element-wise; other dtypes have no meaningful
// float widening and fail.
func ToFloat32(r *RawTensor) (*RawTensor, error) {
	switch r.DType() {
	case Float32:
		return r, nil
	case Float16:
		out, err := NewRaw(r.Shape(), Float32)
		if err != nil {
			return nil, err
		}
		dst := out.AsFloat32()
		for i, bits := range r.AsUint16() {
			dst[i] = float16.Frombits(bits).Float32()
		}
		return out, nil
	case BFloat16:
		f32s := bfloat16.DecodeFloat32(r.Data())
		return FromFloat32(f32s, r.Shape())
	case Float64:
		out, err := NewRaw(r.Shape(), Float32)
		if err != nil {
			return nil, err
		}
		dst := out.AsFloat32()
		for i, v := range r.AsFloat64() {
			dst[i] = float32(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %s tensor to float32", r.DType())
	}
}

// FromFloat32As narrows a Float32 tensor into the given dtype.
// Supported targets are Float32, Float16 and BFloat16.
func FromFloat32As(r *RawTensor, dtype DataType) (*RawTensor, error) {
	src := r.AsFloat32()
	switch dtype {
	case Float32:
		return r.Clone(), nil
	case Float16:
		out, err := NewRaw(r.Shape(), Float16)
		if err != nil {
			return nil, err
		}
		data := out.Data()
		for i, v := range src {
			binary.LittleEndian.PutUint16(data[i*2:], float16.Fromfloat32(v).Bits())
		}
		return out, nil
	case BFloat16:
		return FromBytes(bfloat16.EncodeFloat32(src), r.Shape(), BFloat16)
	default:
		return nil, fmt.Errorf("cannot narrow float32 tensor to %s", dtype)
	}
}
