package datasets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// imageExtensions lists the accepted image file extensions, compared
// case-insensitively and without the leading dot.
var imageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
}

// ListImageFiles recursively enumerates the image files under root.
//
// Directories are recursed into unconditionally; regular entries are
// kept iff their extension is one of jpg, jpeg, png or gif (any case),
// and entries without a dot in their name are skipped. The result is
// ordered lexicographically within each directory level, so the same
// tree always yields the same sequence.
func ListImageFiles(root string) ([]string, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: no data directory specified", ErrConfiguration)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: data directory %q does not exist", ErrConfiguration, root)
	}
	return listImageFiles(root)
}

func listImageFiles(dir string) ([]string, error) {
	// os.ReadDir returns entries sorted by name, which fixes the
	// traversal order within each level.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var results []string
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			sub, err := listImageFiles(full)
			if err != nil {
				return nil, err
			}
			results = append(results, sub...)
			continue
		}
		dot := strings.LastIndex(entry.Name(), ".")
		if dot < 0 {
			continue
		}
		if imageExtensions[strings.ToLower(entry.Name()[dot+1:])] {
			results = append(results, full)
		}
	}
	return results, nil
}
