// Package serialization implements the binary weights archive used for
// adapter and prediction head artifacts.
//
// Format structure:
//
//	[0x00] magic "ADPT" (4 bytes)
//	[0x04] format version (uint32, little endian)
//	[0x08] flags (uint32)
//	[0x0C] reserved (4 bytes)
//	[0x10] header size (uint64)
//	[0x18] data size (uint64)
//	[0x20] SHA-256 checksum of the data section (32 bytes)
//	[0x40] JSON header (tensor index + metadata)
//	[ ...] padding to 64-byte alignment
//	[ ...] tensor data, tensors in name-sorted order
//
// Tensor order is deterministic (sorted by name), so two archives written
// from the same state dictionary carry identical index and data sections.
//
// The package also reads legacy PyTorch checkpoints (torch.save output)
// through gopickle, so weights saved by the original Python library load
// transparently. ReadStateDict sniffs the file magic and dispatches.
package serialization
