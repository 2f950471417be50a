package paths

import (
	"os"
	"path/filepath"
)

// AppName names the per-user configuration directory
const AppName = "moonlit"

// ConfigDir returns the per-user configuration directory, usually
// $XDG_CONFIG_HOME/moonlit.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppName), nil
}

// SettingsFile resolves the settings file location. Absolute paths and
// paths with a directory part are used as given. A bare file name is used
// from the working directory when it exists there and from ConfigDir
// otherwise.
func SettingsFile(path string) string {
	if path == "" || filepath.IsAbs(path) || filepath.Base(path) != path {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	dir, err := ConfigDir()
	if err != nil {
		return path
	}
	return filepath.Join(dir, path)
}
