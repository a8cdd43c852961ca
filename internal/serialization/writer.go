package serialization

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/formiel/adapter-transformers/internal/tensor"
)

const libraryVersion = "0.1.0"

// WriteStateDict writes a state dictionary to path in archive format.
//
// Tensors are written in name-sorted order and the data section is
// protected by a SHA-256 checksum in the fixed header.
func WriteStateDict(path string, stateDict map[string]*tensor.RawTensor, metadata map[string]string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		FormatVersion:  FormatVersion,
		LibraryVersion: libraryVersion,
		CreatedAt:      time.Now().UTC(),
		Tensors:        make([]TensorMeta, 0, len(stateDict)),
		Metadata:       metadata,
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	var offset int64
	var dataSize int64
	for _, name := range names {
		raw := stateDict[name]
		header.Tensors = append(header.Tensors, tensorMeta(name, raw, offset))
		offset += int64(raw.ByteSize())
	}
	dataSize = offset

	checksum := checksumStateDict(names, stateDict)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersion))
	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(dataSize))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := file.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	if padding := padTo(int64(FixedHeaderSize) + int64(len(headerJSON))); padding > 0 {
		if _, err := file.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	for _, name := range names {
		if _, err := file.Write(stateDict[name].Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}

	return nil
}

// checksumStateDict hashes tensor data in name order without building one
// contiguous buffer.
func checksumStateDict(names []string, stateDict map[string]*tensor.RawTensor) [32]byte {
	h := sha256.New()
	for _, name := range names {
		h.Write(stateDict[name].Data())
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
