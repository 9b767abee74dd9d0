package helper

import (
	"os"
	"path/filepath"

	"github.com/amoylab/skirmish/internal/common/cnst"
)

const (
	// ConfigDirEnv points at an extra directory searched before the defaults
	ConfigDirEnv = "SKIRMISH_CONFIG_DIR"

	systemConfigDir = "/etc/skirmish"
	defaultPIDFile  = "/var/run/skirmish-broker.pid"
)

// ConfigPath resolves a configuration file name. Absolute paths are used as
// is; relative names are looked up in $SKIRMISH_CONFIG_DIR, the working
// directory and ./configs, falling back to /etc/skirmish.
func ConfigPath(name string) string {
	if name == "" {
		name = cnst.BrokerYaml
	}
	if filepath.IsAbs(name) {
		return name
	}

	var dirs []string
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		dirs = append(dirs, dir)
	}
	dirs = append(dirs, ".", "configs")
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			if abs, err := filepath.Abs(candidate); err == nil {
				return abs
			}
			return candidate
		}
	}
	return filepath.Join(systemConfigDir, name)
}

// PIDPath resolves the configured PID file location. Relative paths are
// anchored at the working directory.
func PIDPath(path string) string {
	if path == "" {
		return defaultPIDFile
	}
	if filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
