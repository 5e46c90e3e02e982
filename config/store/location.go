package store

import (
	"os"
	"path/filepath"
)

// Location returns the path to the config file. If no path is provided,
// different standard locations will be probed:
// - os.UserConfigDir() + /p1203/config.json
// - os.UserHomeDir() + /.config/p1203/config.json
// - ./p1203.json
// If the config doesn't exist in any of these locations, an empty path is
// returned and the defaults apply.
func Location(path string) string {
	if len(path) != 0 {
		return path
	}

	locations := []string{}

	if dir, err := os.UserConfigDir(); err == nil {
		locations = append(locations, filepath.Join(dir, "p1203", "config.json"))
	}

	if dir, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(dir, ".config", "p1203", "config.json"))
	}

	locations = append(locations, "./p1203.json")

	for _, path := range locations {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		if info.IsDir() {
			continue
		}

		return path
	}

	return ""
}
