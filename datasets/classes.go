package datasets

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// DeriveClasses assigns an integer class label to every path, following
// the curation convention that the class name is the part of the base
// filename before the first underscore.
//
// The set of distinct class names is sorted lexicographically and
// indexed 0..K-1, so which integer a human-readable class maps to is
// independent of the input order. It returns the per-path labels,
// aligned 1:1 with paths, and the sorted class-name table.
//
// The number of discovered classes must equal expected; a mismatch is a
// hard pre-flight failure, not a warning.
func DeriveClasses(paths []string, expected int) ([]int, []string, error) {
	perPath := make([]string, len(paths))
	seen := make(map[string]bool)
	for i, p := range paths {
		name := strings.SplitN(filepath.Base(p), "_", 2)[0]
		perPath[i] = name
		seen[name] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) != expected {
		return nil, nil, fmt.Errorf(
			"%w: declared class count %d does not match %d discovered classes",
			ErrValidation, expected, len(names))
	}

	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}
	labels := make([]int, len(paths))
	for i, name := range perPath {
		labels[i] = index[name]
	}
	return labels, names, nil
}
