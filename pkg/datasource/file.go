package datasource

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileDriver loads facts from a YAML file on local disk. The file maps table
// names to lists of tuples:
//
//	virtual_machine:
//	  - ["vm-1"]
//	  - ["vm-2"]
//	network:
//	  - ["vm-1", "net-1"]
//
// It is the driver of choice for tests and for feeding inventories exported
// by other tooling.
type FileDriver struct{}

// NewFileDriver creates the file driver.
func NewFileDriver() *FileDriver { return &FileDriver{} }

// Name returns the driver name.
func (d *FileDriver) Name() string { return "file" }

// Validate checks that a path is configured and exists.
func (d *FileDriver) Validate(config map[string]string) error {
	path, err := requireConfig(config, "path")
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("path %s: %w", path, err)
	}
	return nil
}

// Poll reads the file and converts its tables to facts.
func (d *FileDriver) Poll(ctx context.Context, config map[string]string) (*Snapshot, error) {
	path, err := requireConfig(config, "path")
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var tables map[string][][]interface{}
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	snap, err := NewSnapshot(tables)
	if err != nil {
		return nil, fmt.Errorf("invalid facts in %s: %w", path, err)
	}
	return snap, nil
}
