package serialization

import (
	"crypto/sha256"
	"fmt"
)

// ComputeChecksum returns the SHA-256 checksum of the data section.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ValidateChecksum compares a computed checksum against the stored one.
func ValidateChecksum(computed, stored [32]byte) error {
	if computed != stored {
		return fmt.Errorf("%w: computed %x, stored %x", ErrChecksumMismatch, computed[:8], stored[:8])
	}
	return nil
}
