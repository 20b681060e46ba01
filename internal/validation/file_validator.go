// Package validation checks dataset inputs and output directories before the
// command line tools touch them.
package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dailyanalytics/internal/dataset"
	"dailyanalytics/internal/files"
)

var (
	ErrNotExist          = errors.New("file does not exist")
	ErrIsDirectory       = errors.New("path is a directory")
	ErrUnsupportedFormat = dataset.ErrUnsupportedFormat
	ErrTemporaryFile     = errors.New("temporary office file")
	ErrNotWritable       = errors.New("directory is not writable")
)

// FileValidator logs and returns the first problem it finds with a path.
type FileValidator struct {
	logger *slog.Logger
}

func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "file_validator")),
	}
}

func (v *FileValidator) fail(level slog.Level, msg, path string, err error) error {
	v.logger.Log(context.Background(), level, msg,
		slog.String("path", path),
		slog.String("error", err.Error()))
	return err
}

// ValidateOutputDirectory creates dir if needed and proves it is writable
// with a throwaway temp file.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return v.fail(slog.LevelError, "Failed to create output directory", dir,
			fmt.Errorf("create output directory %s: %w", dir, err))
	}

	probe, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		return v.fail(slog.LevelError, "Output directory is not writable", dir,
			fmt.Errorf("%w: %s: %v", ErrNotWritable, dir, err))
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}

// ValidateFile requires path to be an existing, openable regular file.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return v.fail(slog.LevelError, "File does not exist", path, fmt.Errorf("%w: %s", ErrNotExist, path))
	case err != nil:
		return v.fail(slog.LevelError, "Failed to stat file", path, fmt.Errorf("stat %s: %w", path, err))
	case info.IsDir():
		return v.fail(slog.LevelError, "Path is a directory, not a file", path, fmt.Errorf("%w: %s", ErrIsDirectory, path))
	}

	f, err := os.Open(path)
	if err != nil {
		return v.fail(slog.LevelError, "File is not readable", path, fmt.Errorf("file %s is not readable: %w", path, err))
	}
	f.Close()

	v.logger.Debug("File validated", slog.String("file", path), slog.Int64("size", info.Size()))
	return nil
}

// ValidateDatasetFile additionally requires a .csv or .xlsx name and
// rejects ~$ office lock files.
func (v *FileValidator) ValidateDatasetFile(path string) error {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") {
		return v.fail(slog.LevelWarn, "Skipping temporary Excel file", path, fmt.Errorf("%w: %s", ErrTemporaryFile, path))
	}
	if files.DatasetFormat(base) == "" {
		return v.fail(slog.LevelError, "File is not a dataset", path, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path))
	}
	return v.ValidateFile(path)
}
