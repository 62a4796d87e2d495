// Package models - Class catalogs for detection model outputs.
package models

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a class list cannot be read.
	ErrNotFound = errors.New("class list not found")
	// ErrMalformedInput is returned when a class list holds no class names.
	ErrMalformedInput = errors.New("class list is empty")
	// ErrClassNotFound is returned when a name or index has no catalog entry.
	ErrClassNotFound = errors.New("class not found")
)

// Catalog is the ordered list of class names a model was trained on. The line
// index of a name is its class id. A Catalog is immutable once built and safe
// to share.
type Catalog struct {
	// names holds one entry per class id.
	names []string
	// nameToIdx for fast lookup by name.
	nameToIdx map[string]int
}

// NewCatalog builds a catalog from an in-memory list of names.
//
// Arguments:
//   - names: Class names, index = class id. Names are whitespace-trimmed.
//
// Returns:
//   - *Catalog: The catalog.
//   - error: ErrMalformedInput if no non-blank name is present.
func NewCatalog(names []string) (*Catalog, error) {
	trimmed := make([]string, len(names))
	for i, n := range names {
		trimmed[i] = strings.TrimSpace(n)
	}

	// Drop trailing blank lines; interior blanks keep their index.
	end := len(trimmed)
	for end > 0 && trimmed[end-1] == "" {
		end--
	}
	if end == 0 {
		return nil, ErrMalformedInput
	}
	trimmed = trimmed[:end]

	c := &Catalog{
		names:     trimmed,
		nameToIdx: make(map[string]int, len(trimmed)),
	}
	for i, n := range trimmed {
		if n == "" {
			continue
		}
		// First occurrence wins, like a left-to-right search.
		if _, ok := c.nameToIdx[n]; !ok {
			c.nameToIdx[n] = i
		}
	}
	return c, nil
}

// LoadCatalog reads a class list file with one class name per line.
//
// Arguments:
//   - path: Path to the class list (e.g. coco.names).
//
// Returns:
//   - *Catalog: The loaded catalog.
//   - error: ErrNotFound if the file cannot be read, ErrMalformedInput if it is empty.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrNotFound, "open %s: %v", path, err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		names = append(names, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(ErrNotFound, "read %s: %v", path, err)
	}

	c, err := NewCatalog(names)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return c, nil
}

// Len returns the number of classes.
func (c *Catalog) Len() int {
	return len(c.names)
}

// Names returns a copy of the class names in id order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Name returns the class name for a class id.
func (c *Catalog) Name(id int) (string, error) {
	if id < 0 || id >= len(c.names) {
		return "", errors.Wrapf(ErrClassNotFound, "index %d out of range [0, %d)", id, len(c.names))
	}
	return c.names[id], nil
}

// Resolve returns the class id of name. Matching is exact and case-sensitive
// after trimming surrounding whitespace.
func (c *Catalog) Resolve(name string) (int, error) {
	name = strings.TrimSpace(name)
	idx, ok := c.nameToIdx[name]
	if !ok {
		return -1, errors.Wrapf(ErrClassNotFound, "class %q", name)
	}
	return idx, nil
}

// ResolveAll resolves every name, failing on the first one that is missing.
func (c *Catalog) ResolveAll(names ...string) ([]int, error) {
	ids := make([]int, 0, len(names))
	for _, n := range names {
		id, err := c.Resolve(n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
