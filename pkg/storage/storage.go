// Package storage manages the on-disk workflow library: listing, loading,
// and guarded saves that never clobber a good workflow with a broken one.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ormasoftchile/webrun/pkg/schema"
)

// Store is a directory of workflow files.
type Store struct {
	Dir string
}

// NewStore opens (and creates, if needed) the workflow directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create workflow directory: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// RegressionError reports a save that would shrink an existing workflow
// suspiciously. A recompile that loses most of its steps usually means a
// broken trace, not an intentional edit.
type RegressionError struct {
	Name          string
	ExistingSteps int
	NewSteps      int
}

func (e *RegressionError) Error() string {
	return fmt.Sprintf("workflow %q would shrink from %d to %d steps; pass force to overwrite",
		e.Name, e.ExistingSteps, e.NewSteps)
}

// List returns workflow file names in the store, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read workflow directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml", ".json":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load reads and fully validates one workflow.
func (s *Store) Load(name string) (*schema.Workflow, error) {
	path := filepath.Join(s.Dir, name)
	w, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return nil, fmt.Errorf("workflow %q: %s", name, errs[0].Error())
	}
	return w, nil
}

// Save validates and writes a workflow. An existing file is first copied
// to name.bak, and a save that drops more than half the existing steps is
// refused unless force is set.
func (s *Store) Save(name string, w *schema.Workflow, force bool) error {
	if errs := schema.Validate(w); schema.HasErrors(errs) {
		return fmt.Errorf("refusing to save invalid workflow: %s", errs[0].Error())
	}

	path := filepath.Join(s.Dir, name)
	if existing, err := s.Load(name); err == nil && !force {
		if len(w.Steps)*2 < len(existing.Steps) {
			return &RegressionError{
				Name:          name,
				ExistingSteps: len(existing.Steps),
				NewSteps:      len(w.Steps),
			}
		}
	}

	if prev, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+".bak", prev, 0644); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
	}

	data, err := schema.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write workflow: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace workflow: %w", err)
	}
	return nil
}

// MigrateJSON converts a legacy JSON workflow to YAML alongside it and
// returns the new file name. The JSON original stays untouched.
func (s *Store) MigrateJSON(name string) (string, error) {
	if filepath.Ext(name) != ".json" {
		return "", fmt.Errorf("%q is not a JSON workflow", name)
	}
	f, err := os.Open(filepath.Join(s.Dir, name))
	if err != nil {
		return "", fmt.Errorf("open legacy workflow: %w", err)
	}
	defer f.Close()

	w, err := schema.LoadJSON(f)
	if err != nil {
		return "", fmt.Errorf("parse legacy workflow: %w", err)
	}

	yamlName := strings.TrimSuffix(name, ".json") + ".yaml"
	if _, err := os.Stat(filepath.Join(s.Dir, yamlName)); err == nil {
		return "", fmt.Errorf("migration target %q already exists", yamlName)
	}
	if err := s.Save(yamlName, w, false); err != nil {
		return "", err
	}
	return yamlName, nil
}
