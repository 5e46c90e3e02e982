package store

import (
	"bytes"
	gojson "encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/datarhei/p1203/config"
	"github.com/datarhei/p1203/encoding/json"
)

type jsonStore struct {
	path string
	data *config.Config
}

// NewJSON reads the JSON config file from the given path on top of the default
// configuration. An empty path or a path that doesn't exist yields the defaults.
// Unknown keys in the file are an error.
func NewJSON(path string) (Store, error) {
	c := &jsonStore{
		data: config.New(),
	}

	if len(path) != 0 {
		abspath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to determine absolute path of '%s': %w", path, err)
		}

		c.path = abspath
	}

	if err := c.load(c.data); err != nil {
		return nil, fmt.Errorf("failed to read JSON from '%s': %w", path, err)
	}

	return c, nil
}

func (c *jsonStore) Get() *config.Config {
	return c.data.Clone()
}

func (c *jsonStore) Path() string {
	return c.path
}

func (c *jsonStore) load(cfg *config.Config) error {
	if len(c.path) == 0 {
		return nil
	}

	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		c.path = ""
		return nil
	}

	jsondata, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}

	if len(bytes.TrimSpace(jsondata)) == 0 {
		return nil
	}

	decoder := gojson.NewDecoder(bytes.NewReader(jsondata))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&cfg.Data); err != nil {
		return json.FormatError(jsondata, err)
	}

	cfg.MarkLoaded()

	return nil
}
