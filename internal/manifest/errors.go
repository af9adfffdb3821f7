package manifest

import "errors"

var (
	// ErrIncompatibleVersion is returned when the manifest version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible manifest version")

	// ErrNotFound is returned when the manifest file does not exist.
	ErrNotFound = errors.New("manifest not found")

	// ErrFingerprintMismatch is returned when the dataset list differs from the
	// one the manifest was created for.
	ErrFingerprintMismatch = errors.New("dataset fingerprint mismatch")
)
