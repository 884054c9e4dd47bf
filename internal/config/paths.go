package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const appDir = "wsbridge"

// DefaultConfigPath returns the default config file path for name
// (e.g. "wsbridge.yaml") on the running OS.
func DefaultConfigPath(name string) string {
	home, _ := os.UserHomeDir()
	return ResolveConfigPath(runtime.GOOS, home, os.Getenv("ProgramData"), name)
}

// ResolveConfigPath builds the config file path for goos from the given base
// directories.
func ResolveConfigPath(goos, home, programData, name string) string {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appDir, name)
	case "windows":
		if programData == "" {
			programData = "C:/ProgramData"
		}
		programData = strings.TrimRight(programData, "\\/")
		return filepath.Join(programData, appDir, name)
	default:
		return filepath.Join("/etc", appDir, name)
	}
}
