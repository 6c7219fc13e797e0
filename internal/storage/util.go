package storage

import "os"

// EnsureDir ensures a directory exists, readable only by the user.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0700)
}
