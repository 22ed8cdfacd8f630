package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/npratt/onboard/internal/config"
)

// projectMarkers are directories that indicate the project root.
var projectMarkers = []string{".onboard", ".git"}

// ResolvePaths makes every relative path in paths absolute against
// basePath, or the working directory when basePath is empty.
func ResolvePaths(paths config.PathsConfig, basePath string) (config.PathsConfig, error) {
	if basePath == "" {
		var err error
		basePath, err = os.Getwd()
		if err != nil {
			return paths, fmt.Errorf("get working directory: %w", err)
		}
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(basePath, p)
	}

	return config.PathsConfig{
		State:    resolve(paths.State),
		Log:      resolve(paths.Log),
		Socket:   resolve(paths.Socket),
		Roadmaps: resolve(paths.Roadmaps),
	}, nil
}

// FindProjectRoot walks up from startDir to the nearest directory holding
// .onboard or .git. It returns the absolute startDir when neither is found.
func FindProjectRoot(startDir string) string {
	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return "."
		}
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return startDir
	}

	for dir := absDir; ; {
		for _, marker := range projectMarkers {
			if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && info.IsDir() {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir
		}
		dir = parent
	}
}
