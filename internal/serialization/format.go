package serialization

import (
	"time"

	"github.com/formiel/adapter-transformers/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "ADPT"
	FormatVersion   = 1
	FixedHeaderSize = 64   // fixed header: magic, version, flags, sizes, checksum
	HeaderAlignment = 64   // tensor data aligned for mmap-friendly reads
	ChecksumOffset  = 0x20 // SHA-256 checksum offset in the fixed header
	ChecksumSize    = 32
	maxHeaderSize   = 100 * 1024 * 1024
)

// Flags for the archive format.
const (
	FlagHasMetadata uint32 = 1 << 0 // custom metadata present in the header
)

// Header is the JSON header of an archive.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	LibraryVersion string            `json:"library_version"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
}

// TensorMeta describes one tensor in the archive.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`
}

func tensorMeta(name string, r *tensor.RawTensor, offset int64) TensorMeta {
	return TensorMeta{
		Name:   name,
		DType:  r.DType().String(),
		Shape:  []int(r.Shape()),
		Offset: offset,
		Size:   int64(r.ByteSize()),
	}
}

func padTo(pos int64) int64 {
	return (HeaderAlignment - (pos % HeaderAlignment)) % HeaderAlignment
}
