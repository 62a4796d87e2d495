package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robpickerill/elegoo-conquerer-vision/images"
)

// TestLoadDirectoryImages orders numbered frames first and skips other files.
func TestLoadDirectoryImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"frame-10.jpg",
		"frame-2.png",
		"snapshot.webp",
		"frame-x.jpg",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "frame-1.jpg"), 0o700))

	files, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 4)

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f.Path)
		assert.Equal(t, names[i], string(f.Data))
	}
	assert.Equal(t, []string{"frame-2.png", "frame-10.jpg", "frame-x.jpg", "snapshot.webp"}, names)

	assert.Equal(t, 2, files[0].Frame)
	assert.Equal(t, images.FormatPNG, files[0].Format)
	assert.Equal(t, 10, files[1].Frame)
	assert.Equal(t, -1, files[2].Frame)
	assert.Equal(t, images.FormatWebP, files[3].Format)
}

// TestLoadDirectoryImages_Missing fails for a directory that does not exist.
func TestLoadDirectoryImages_Missing(t *testing.T) {
	_, err := LoadDirectoryImageFiles(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
