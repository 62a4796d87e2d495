package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeClassFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coco.names")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

// TestLoadCatalog verifies line order becomes class ids and whitespace is trimmed.
func TestLoadCatalog(t *testing.T) {
	path := writeClassFile(t, "person\r\n  bicycle \ncar\n\ndog\n\n\n")

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)

	assert.Equal(t, 5, catalog.Len())
	assert.Equal(t, []string{"person", "bicycle", "car", "", "dog"}, catalog.Names())

	tests := []struct {
		name string
		id   int
	}{
		{name: "person", id: 0},
		{name: "bicycle", id: 1},
		{name: " car ", id: 2},
		{name: "dog", id: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := catalog.Resolve(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
		})
	}
}

// TestLoadCatalog_Errors covers the startup error taxonomy of the class registry.
func TestLoadCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		err  error
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.names") },
			err:  ErrNotFound,
		},
		{
			name: "empty file",
			path: func(t *testing.T) string { return writeClassFile(t, "") },
			err:  ErrMalformedInput,
		},
		{
			name: "blank lines only",
			path: func(t *testing.T) string { return writeClassFile(t, "\n  \n\t\n") },
			err:  ErrMalformedInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog, err := LoadCatalog(tt.path(t))
			assert.Nil(t, catalog)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

// TestCatalog_Resolve checks exact, case-sensitive matching.
func TestCatalog_Resolve(t *testing.T) {
	catalog, err := NewCatalog([]string{"person", "dog", "cat"})
	require.NoError(t, err)

	for _, name := range []string{"Person", "DOG", "horse", ""} {
		t.Run(name, func(t *testing.T) {
			id, err := catalog.Resolve(name)
			assert.Equal(t, -1, id)
			assert.ErrorIs(t, err, ErrClassNotFound)
		})
	}

	ids, err := catalog.ResolveAll("person", "dog")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, ids)

	_, err = catalog.ResolveAll("person", "zebra")
	assert.ErrorIs(t, err, ErrClassNotFound)
	assert.Contains(t, err.Error(), "zebra")
}

// TestCatalog_Name checks id to name lookups and bounds.
func TestCatalog_Name(t *testing.T) {
	catalog, err := NewCatalog([]string{"person", "dog", "cat"})
	require.NoError(t, err)

	name, err := catalog.Name(2)
	require.NoError(t, err)
	assert.Equal(t, "cat", name)

	for _, id := range []int{-1, 3} {
		_, err := catalog.Name(id)
		assert.ErrorIs(t, err, ErrClassNotFound)
	}
}

// TestCatalog_NamesIsCopy ensures callers cannot mutate the catalog.
func TestCatalog_NamesIsCopy(t *testing.T) {
	catalog, err := NewCatalog([]string{"person", "dog"})
	require.NoError(t, err)

	names := catalog.Names()
	names[0] = "mutated"

	name, err := catalog.Name(0)
	require.NoError(t, err)
	assert.Equal(t, "person", name)
}
