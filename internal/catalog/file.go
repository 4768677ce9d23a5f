package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog format.
//
//	tasks:
//	  laundry: [Gather clothes, Sort by color]
//	fallback: [Prepare your space, Finalize and tidy up]
type File struct {
	Tasks    map[string][]string `yaml:"tasks"`
	Fallback []string            `yaml:"fallback"`
}

// Validate checks that every list is non-empty and has no blank steps.
func (f *File) Validate() error {
	if len(f.Fallback) == 0 {
		return errors.New("fallback must list at least one step")
	}
	if err := checkSteps("fallback", f.Fallback); err != nil {
		return err
	}
	for name, steps := range f.Tasks {
		if Key(name) == "" {
			return errors.New("task name cannot be empty")
		}
		if len(steps) == 0 {
			return fmt.Errorf("task %q has no steps", name)
		}
		if err := checkSteps(name, steps); err != nil {
			return err
		}
	}
	return nil
}

func checkSteps(owner string, steps []string) error {
	for i, s := range steps {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s: step %d is empty", owner, i+1)
		}
	}
	return nil
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &f, nil
}

// LoadFile reads path into c. On error c is left untouched.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return fmt.Errorf("load catalog %s: %w", path, err)
	}
	c.Replace(f.Tasks, f.Fallback)
	return nil
}
