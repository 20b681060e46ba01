package validation

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyanalytics/internal/shared/testutil"
)

func newTestValidator(t *testing.T) (*FileValidator, *testutil.BufferedSlogHandler) {
	logger, handler := testutil.NewTestLogger(t)
	return NewFileValidator(logger), handler
}

func TestValidateDatasetFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("a,b\n1,2\n"), 0644))
		return p
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.csv"), 0755))

	tests := []struct {
		name    string
		path    string
		wantErr error
		wantLog string
		level   slog.Level
	}{
		{name: "csv", path: write("data.csv")},
		{name: "xlsx upper case", path: write("BOOK.XLSX")},
		{name: "missing", path: filepath.Join(dir, "gone.csv"), wantErr: ErrNotExist, wantLog: "File does not exist", level: slog.LevelError},
		{name: "directory", path: filepath.Join(dir, "folder.csv"), wantErr: ErrIsDirectory},
		{name: "unsupported", path: write("notes.txt"), wantErr: ErrUnsupportedFormat, wantLog: "File is not a dataset", level: slog.LevelError},
		{name: "legacy excel", path: write("old.xls"), wantErr: ErrUnsupportedFormat},
		{name: "lock file", path: write("~$book.xlsx"), wantErr: ErrTemporaryFile, wantLog: "Skipping temporary Excel file", level: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, logs := newTestValidator(t)
			err := v.ValidateDatasetFile(tt.path)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				testutil.AssertLogContains(t, logs, slog.LevelDebug, "File validated")
				testutil.AssertLogAttr(t, logs, "component", "file_validator")
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantLog != "" {
				testutil.AssertLogContains(t, logs, tt.level, tt.wantLog)
			}
		})
	}
}

func TestValidateOutputDirectory(t *testing.T) {
	v, _ := newTestValidator(t)

	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, v.ValidateOutputDirectory(dir))
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write probe must be removed")
}

func TestValidateOutputDirectory_NotWritable(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	v, _ := newTestValidator(t)

	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0555))
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	assert.ErrorIs(t, v.ValidateOutputDirectory(dir), ErrNotWritable)
}

func TestNewFileValidator_NilLogger(t *testing.T) {
	assert.NotNil(t, NewFileValidator(nil).logger)
}
