package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDiscovery(t *testing.T) {
	basePath := "/test/base"
	discovery := NewDiscovery(basePath)

	assert.NotNil(t, discovery)
	assert.Equal(t, basePath, discovery.basePath)
}

func TestFindDatasets(t *testing.T) {
	tests := []struct {
		name          string
		files         []string
		expectedNames []string
	}{
		{
			name:          "csv and xlsx",
			files:         []string{"sales.csv", "users.xlsx", "Report.XLSX"},
			expectedNames: []string{"Report.XLSX", "sales.csv", "users.xlsx"},
		},
		{
			name:          "unsupported types skipped",
			files:         []string{"data.csv", "doc.pdf", "old.xls", "model.gob"},
			expectedNames: []string{"data.csv"},
		},
		{
			name:          "lock and hidden files skipped",
			files:         []string{"~$book.xlsx", ".hidden.csv", "book.xlsx"},
			expectedNames: []string{"book.xlsx"},
		},
		{
			name:          "empty directory",
			files:         []string{},
			expectedNames: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := t.TempDir()
			for _, name := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(base, name), []byte("a\n1\n"), 0644))
			}
			require.NoError(t, os.Mkdir(filepath.Join(base, "models.csv"), 0755))

			found, err := NewDiscovery(base).FindDatasets("")
			require.NoError(t, err)

			names := make([]string, 0, len(found))
			for _, f := range found {
				names = append(names, f.Name)
				assert.Equal(t, f.Name, f.Path)
				assert.Equal(t, int64(4), f.Size)
				assert.NotEmpty(t, f.Format)
			}
			assert.Equal(t, tt.expectedNames, names)
		})
	}
}

func TestFindDatasets_Subdirectory(t *testing.T) {
	base := t.TempDir()
	sub := filepath.Join(base, "daily")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "day.csv"), []byte("a\n"), 0644))

	d := NewDiscovery(base)

	found, err := d.FindDatasets("daily")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "daily/day.csv", found[0].Path)
	assert.Equal(t, FormatCSV, found[0].Format)

	// absolute directories outside the base keep absolute paths
	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, "x.xlsx"), []byte("x"), 0644))
	found, err = d.FindDatasets(other)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, filepath.Join(other, "x.xlsx"), found[0].Path)
}

func TestFindDatasets_MissingDirectory(t *testing.T) {
	_, err := NewDiscovery(t.TempDir()).FindDatasets("nope")
	assert.Error(t, err)
}

func TestDatasetFormat(t *testing.T) {
	assert.Equal(t, FormatCSV, DatasetFormat("a.CSV"))
	assert.Equal(t, FormatXLSX, DatasetFormat("dir/b.xlsx"))
	assert.Empty(t, DatasetFormat("c.xls"))
	assert.Empty(t, DatasetFormat("noext"))
}

func TestGetLatestFile(t *testing.T) {
	tests := []struct {
		name        string
		files       []FileInfo
		expectFound bool
		expectedIdx int
	}{
		{
			name: "multiple files with different times",
			files: []FileInfo{
				{Name: "old.csv", ModTime: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
				{Name: "latest.csv", ModTime: time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)},
				{Name: "middle.csv", ModTime: time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)},
			},
			expectFound: true,
			expectedIdx: 1,
		},
		{
			name: "files with same time keep the first",
			files: []FileInfo{
				{Name: "file1.csv", ModTime: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
				{Name: "file2.csv", ModTime: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
			},
			expectFound: true,
			expectedIdx: 0,
		},
		{
			name:        "empty slice",
			files:       []FileInfo{},
			expectFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			latest, found := GetLatestFile(tt.files)
			assert.Equal(t, tt.expectFound, found)
			if tt.expectFound {
				assert.Equal(t, tt.files[tt.expectedIdx].Name, latest.Name)
			}
		})
	}
}
