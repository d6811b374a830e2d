// Package offline turns archived accelerometer trials into labeled training
// tensors using the same windowing the live pipeline sees.
package offline

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// UnknownSubject groups files whose names carry no subject identifier.
const UnknownSubject = "Unknown"

// Discover walks root recursively and returns every .txt trial file, sorted.
func Discover(ctx context.Context, root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if strings.Contains(path, "desktop.ini") || !strings.EqualFold(filepath.Ext(path), ".txt") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoTrials, root)
	}
	sort.Strings(paths)
	return paths, nil
}

// SubjectOf extracts the subject from "<activity>_<subject>_<trial>.txt".
func SubjectOf(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	parts := strings.Split(base, "_")
	if len(parts) < 2 || parts[1] == "" {
		return UnknownSubject
	}
	return parts[1]
}

// IsFall reports whether the trial records a fall. Fall activities are
// prefixed with F.
func IsFall(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "F")
}
