package batch

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"swarmlog/internal/logtable"
)

// WalkRunDirectories returns every directory under root, root included, that
// holds at least one simulator log file. Directories come in lexical order.
func WalkRunDirectories(root string) ([]string, error) {
	var dirs []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		found, err := logtable.HasLogFiles(path)
		if err != nil {
			return err
		}
		if found {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %q: %w", root, err)
	}

	return dirs, nil
}
