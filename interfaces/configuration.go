package interfaces

import (
	"os"
	"path/filepath"
)

type ConfigurationSystem interface {
	LoadConfiguration() bool
	SaveConfiguration() bool
}

// ConfigDir returns the per-user directory where the UI configuration is kept.
func ConfigDir() (dir string, err error) {
	dir, err = os.UserConfigDir()
	if err != nil {
		return
	}
	dir = filepath.Join(dir, "i2cgui")
	return
}
