// Package configfiles provides the embedded configuration template for
// DraftForge. It is used to materialize an initial config file during
// setup (draftforge serve --check).
package configfiles

import (
	"embed"
	"os"
	"path/filepath"
)

//go:embed draftforge.example.yaml
var configFS embed.FS

// GetConfigExample returns the example configuration file content.
func GetConfigExample() ([]byte, error) {
	return configFS.ReadFile("draftforge.example.yaml")
}

// WriteConfigExample writes the example configuration to targetPath
// unless a file already exists there. It returns true when a new file
// was created.
func WriteConfigExample(targetPath string) (bool, error) {
	if _, err := os.Stat(targetPath); err == nil {
		return false, nil
	}

	data, err := GetConfigExample()
	if err != nil {
		return false, err
	}

	if dir := filepath.Dir(targetPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return false, err
		}
	}

	if err := os.WriteFile(targetPath, data, 0644); err != nil {
		return false, err
	}
	return true, nil
}
