package report

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/darshan-rambhia/opticdeck/internal/deck"
)

// ErrWriteFailure is returned when a deck cannot be persisted.
var ErrWriteFailure = errors.New("report write failed")

// WriteFile serializes d to path. The package is written to a temporary file
// in the destination directory and renamed into place, so a failed write
// never leaves a partial document at path.
func WriteFile(d *deck.Deck, path string) (err error) {
	if d == nil {
		return fmt.Errorf("%w: nil deck", ErrWriteFailure)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	if err := d.Write(tmp); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: syncing %s: %w", ErrWriteFailure, tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrWriteFailure, tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	slog.Info("report written", "path", path, "slides", len(d.Slides))
	return nil
}
