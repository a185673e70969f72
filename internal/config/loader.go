package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default site configuration file name.
const DefaultConfigFile = ".bookbinder"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads per-site selector configuration from a YAML file.
// A missing file is reported as ErrConfigNotFound so callers can decide
// whether that is fatal (explicit --config path) or fine (default search).
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	cf := &File{Sites: make(map[string]SiteConfig)}
	err = yaml.NewDecoder(bytes.NewReader(data)).Decode(cf)
	switch {
	case errors.Is(err, io.EOF):
		// A file with only comments decodes to nothing. Treat it like
		// an empty config rather than an error.
	case err != nil:
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	return cf, nil
}

// FindConfigFile locates the site configuration file. An explicit path
// is used as-is when it exists. Otherwise the default file name is
// probed in the current directory and then in the home directory, so a
// per-book config checked in next to the output wins over a global one.
// Returns "" when nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if fileExists(configPath) {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if fileExists(c) {
			return c
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
