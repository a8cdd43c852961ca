package adapters

import "errors"

// Error taxonomy for save/load operations.
//
// Recoverable conditions (missing optional head, overwrite on load)
// degrade to a logged warning instead; everything below aborts the call.
// A partially written directory may remain after a failed save.
var (
	// ErrConfiguration covers unknown adapter types, type mismatches and
	// unregistered adapter or head names.
	ErrConfiguration = errors.New("invalid adapter configuration")

	// ErrNotFound covers missing weights or config files and identifiers
	// that resolve to nothing.
	ErrNotFound = errors.New("adapter artifact not found")

	// ErrIO wraps corrupt or unreadable weights archives.
	ErrIO = errors.New("unable to load weights from checkpoint file")

	// ErrIncompatible marks a prediction head recorded for a different
	// model class.
	ErrIncompatible = errors.New("prediction head does not match model class")

	// ErrNotADirectory marks a save path that exists but is not a directory.
	ErrNotADirectory = errors.New("save path exists and is not a directory")
)
