package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Format identifies a settings file encoding
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf picks the encoding from a file extension. Unknown extensions
// are read as TOML.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Decode parses data over the defaults, so keys missing from the file keep
// their default values.
func Decode(data []byte, format Format) (*Settings, error) {
	s := Default()

	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, s)
	default:
		err = toml.Unmarshal(data, s)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s settings: %w", format, err)
	}
	return s, nil
}

// Encode serializes s in the given format
func Encode(s *Settings, format Format) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatYAML:
		data, err = yaml.Marshal(s)
	default:
		data, err = toml.Marshal(s)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s settings: %w", format, err)
	}
	return data, nil
}

// Load reads a settings file. A missing file yields the defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return Decode(data, FormatOf(path))
}

// Save writes s to path, creating parent directories as needed. The file
// is written to a temporary name first and renamed into place, so a
// watcher never observes a half-written file.
func Save(path string, s *Settings) error {
	data, err := Encode(s, FormatOf(path))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}
