package paths

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.imarchive.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".imarchive")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "imarchive.log")
}

// DefaultArchivePath returns the well-known location of the Messages
// archive for the current user.
func DefaultArchivePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Messages", "chat.db")
}

// DefaultContactsPath returns the default location of the contacts export
// consumed by the identity resolver.
func DefaultContactsPath() string {
	return filepath.Join(BaseDir(), "contacts.json")
}

// EnsureDirs creates the base directory tree with proper permissions.
func EnsureDirs() error {
	for _, d := range []string{BaseDir(), LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
