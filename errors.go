package dupfinder

import (
	"errors"
	"fmt"

	"github.com/iobis/dupfinder/internal/manifest"
)

var (
	// ErrNoRun is returned by Resume, Results and Shortlist when the run
	// directory holds no manifest.
	ErrNoRun = errors.New("dupfinder: no run found")

	// ErrRunExists is returned by Run when the run directory already holds a
	// manifest. Use Resume or Reset.
	ErrRunExists = errors.New("dupfinder: run already exists")

	// ErrFingerprintMismatch is returned by Resume when the input describes
	// different datasets than the run.
	ErrFingerprintMismatch = manifest.ErrFingerprintMismatch

	// ErrIncompatibleRun is returned when the manifest was written by an
	// unsupported version.
	ErrIncompatibleRun = manifest.ErrIncompatibleVersion
)

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, manifest.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNoRun, err)
	}
	return err
}
