package serialization

import "errors"

// Common errors.
var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrTensorNotFound     = errors.New("tensor not found in archive")
	ErrUnsupportedDType   = errors.New("unsupported tensor dtype")
	ErrUnknownFormat      = errors.New("unrecognized weights file format")
)
