package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadOptions reads Options from a YAML file. Environment variables in the
// file are expanded.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kormite: read options: %w", err)
	}
	return ParseOptions(data)
}

// ParseOptions decodes YAML options.
func ParseOptions(data []byte) (*Options, error) {
	opts := &Options{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), opts); err != nil {
		return nil, fmt.Errorf("kormite: parse options: %w", err)
	}
	return opts, nil
}

// OpenFile opens the database described by a YAML options file.
func OpenFile(path string) (*DB, error) {
	opts, err := LoadOptions(path)
	if err != nil {
		return nil, err
	}
	if opts.Driver == "" {
		return nil, fmt.Errorf("kormite: %s: driver is required", path)
	}
	return Open(opts.Driver, opts.DSN, opts)
}
