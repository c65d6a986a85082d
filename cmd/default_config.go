package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/ftltrace/sim/task"
)

// defaultTasksPath is the catalog convert reads when --tasks is not given.
const defaultTasksPath = "tasks.yaml"

// loadTasksCatalog reads the task catalog at path with strict field checking.
// A missing file at the default path falls back to the built-in catalog; a
// missing file the user named explicitly is an error.
func loadTasksCatalog(path string, explicit bool) (*task.Catalog, error) {
	c, err := task.LoadCatalog(path)
	if err == nil {
		return c, nil
	}
	if !explicit && errors.Is(err, os.ErrNotExist) {
		logrus.Infof("No task catalog at %s; using built-in quick/full tasks", path)
		return task.DefaultCatalog(), nil
	}
	return nil, err
}

// resolveCatalog loads, validates and narrows the catalog to the requested
// tasks. aliasOverride, when non-empty, replaces the catalog's alias.
func resolveCatalog(path string, explicit bool, names []string, aliasOverride string) (*task.Catalog, []task.Spec, error) {
	c, err := loadTasksCatalog(path, explicit)
	if err != nil {
		return nil, nil, err
	}
	if aliasOverride != "" {
		c.Alias = aliasOverride
	}
	if err := c.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid task catalog %s: %w", path, err)
	}
	specs, err := c.Select(names)
	if err != nil {
		return nil, nil, err
	}
	return c, specs, nil
}
