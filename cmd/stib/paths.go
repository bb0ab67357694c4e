package main

import (
	"os"
	"path/filepath"

	"tools.zach/dev/stib/internal/paths"
)

// DataPaths aliases [paths.DataDir] into the main package.
type DataPaths = paths.DataDir

// defaultDataDir returns ~/.stib, or ./.stib when the home directory cannot
// be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}
