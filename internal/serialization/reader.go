package serialization

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"

	"github.com/formiel/adapter-transformers/internal/tensor"
)

// Reader reads weights archives.
type Reader struct {
	file       *os.File
	header     Header
	flags      uint32
	checksum   [32]byte
	dataOffset int64
	dataSize   int64
	closed     bool
}

// ReaderOptions configures archive reading.
type ReaderOptions struct {
	SkipChecksumValidation bool
}

// NewReader opens an archive with checksum validation enabled.
func NewReader(path string) (*Reader, error) {
	return NewReaderWithOptions(path, ReaderOptions{})
}

// NewReaderWithOptions opens an archive with custom options.
func NewReaderWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r := &Reader{file: file}
	if err := r.parseHeader(); err != nil {
		_ = file.Close()
		return nil, err
	}

	if !opts.SkipChecksumValidation {
		if err := r.validateChecksum(); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	return r, nil
}

func (r *Reader) parseHeader() error {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, fixed); err != nil {
		return fmt.Errorf("failed to read fixed header: %w", err)
	}

	if string(fixed[0:4]) != MagicBytes {
		return ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(fixed[4:8])
	if version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	r.flags = binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	r.dataSize = int64(binary.LittleEndian.Uint64(fixed[24:32]))
	copy(r.checksum[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > maxHeaderSize {
		return ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	pos := int64(FixedHeaderSize) + int64(headerSize)
	r.dataOffset = pos + padTo(pos)
	return nil
}

func (r *Reader) validateChecksum() error {
	data := make([]byte, r.dataSize)
	if _, err := r.file.Seek(r.dataOffset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to tensor data: %w", err)
	}
	if _, err := io.ReadFull(r.file, data); err != nil {
		return fmt.Errorf("failed to read tensor data for checksum: %w", err)
	}
	return ValidateChecksum(ComputeChecksum(data), r.checksum)
}

// Header returns the archive header.
func (r *Reader) Header() Header {
	return r.header
}

// Metadata returns the metadata map from the header.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns all tensor names in archive order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the index entry for a named tensor.
func (r *Reader) TensorInfo(name string) (*TensorMeta, error) {
	for i := range r.header.Tensors {
		if r.header.Tensors[i].Name == name {
			return &r.header.Tensors[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
}

// LoadTensor reads a single tensor into host memory.
func (r *Reader) LoadTensor(name string) (*tensor.RawTensor, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	dtype, ok := tensor.ParseDataType(meta.DType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, meta.DType)
	}
	shape := tensor.Shape(meta.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}

	if _, err := r.file.Seek(r.dataOffset+meta.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor %s: %w", name, err)
	}
	data := make([]byte, meta.Size)
	if _, err := io.ReadFull(r.file, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor %s: %w", name, err)
	}

	return tensor.FromBytes(data, shape, dtype)
}

// ReadStateDict reads every tensor in the archive into host memory.
func (r *Reader) ReadStateDict() (map[string]*tensor.RawTensor, error) {
	stateDict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		raw, err := r.LoadTensor(meta.Name)
		if err != nil {
			return nil, err
		}
		stateDict[meta.Name] = raw
	}
	return stateDict, nil
}

// Close closes the reader and the underlying file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// ReadStateDict reads a weights file of any supported format into host
// memory. The file magic decides the format: native archives are read
// directly, PyTorch checkpoints (zip magic) go through the legacy reader.
func ReadStateDict(path string) (map[string]*tensor.RawTensor, error) {
	magic, err := sniffMagic(path)
	if err != nil {
		return nil, err
	}

	if magic == MagicBytes {
		reader, err := NewReader(path)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return reader.ReadStateDict()
	}

	// torch.save wrote zip archives since 1.6 and bare pickles before
	// that; gopickle handles both, so anything non-native goes there.
	stateDict, err := ReadTorchStateDict(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	return stateDict, nil
}

func sniffMagic(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(file, magic); err != nil {
		return "", fmt.Errorf("failed to read file magic: %w", err)
	}
	return string(magic), nil
}
