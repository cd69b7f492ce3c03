package assets

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed configs/*
var configFS embed.FS

// ExampleConfigName returns the embedded example config file name for a format ("yml" or "toml")
func ExampleConfigName(format string) (string, error) {
	switch format {
	case "yml", "yaml":
		return "sunday-scrims.example.yml", nil
	case "toml":
		return "sunday-scrims.example.toml", nil
	}
	return "", fmt.Errorf("unsupported config format %q", format)
}

// GetExampleConfig returns the example config content for a format
func GetExampleConfig(format string) ([]byte, error) {
	name, err := ExampleConfigName(format)
	if err != nil {
		return nil, err
	}
	return configFS.ReadFile("configs/" + name)
}

// WriteExampleConfig writes the example config to path, refusing to overwrite an existing file
func WriteExampleConfig(path, format string) error {
	content, err := GetExampleConfig(format)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, content, 0644)
}

// ListConfigs lists the embedded example configs
func ListConfigs() ([]string, error) {
	entries, err := fs.ReadDir(configFS, "configs")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
