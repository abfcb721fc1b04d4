// utils.go: filesystem helpers for configuration and data paths
package conf

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// GetDefaultConfigPaths returns the ordered list of directories searched for
// the configuration file: the working directory first, then the user config dir.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("error resolving user config directory: %w", err)
	}

	return []string{
		".",
		filepath.Join(configDir, "agriprice"),
	}, nil
}

// GetBasePath expands a possibly relative directory to an absolute path and
// ensures it exists.
func GetBasePath(path string) string {
	if path == "" {
		path = "."
	}
	if !filepath.IsAbs(path) {
		workDir, err := os.Getwd()
		if err != nil {
			log.Printf("Error getting working directory: %v", err)
			return path
		}
		path = filepath.Join(workDir, path)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		log.Printf("Error creating directory %s: %v", path, err)
	}
	return path
}
