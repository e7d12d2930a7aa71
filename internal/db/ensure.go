package db

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// DatabasePath extracts the file path of a SQLite DSN. It returns "" for
// in-memory databases.
func DatabasePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	return path
}

// EnsureDatabase prepares a fresh database file for dsn: the parent
// directory is created and any previous file and its journals are removed.
func EnsureDatabase(dsn string) error {
	path := DatabasePath(dsn)
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create database dir %s", dir)
		}
	}
	for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove %s", path+suffix)
		}
	}
	return nil
}
