package store

import "github.com/datarhei/p1203/config"

// Store is a read-only store for the configuration data.
type Store interface {
	// Get returns a copy of the configuration.
	Get() *config.Config

	// Path returns the path of the file the configuration has been read
	// from. It is empty if no file has been read.
	Path() string
}
