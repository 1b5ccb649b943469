package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StaticCatalog serves a fixed set of tasks and applications, typically read
// from a YAML file. It backs offline tooling and tests.
type StaticCatalog struct {
	tasks        map[string]*Task
	applications []Application
}

type staticFile struct {
	Tasks        []Task        `yaml:"tasks"`
	Applications []Application `yaml:"applications"`
}

// NewStaticCatalog builds a catalog from in-memory definitions.
func NewStaticCatalog(tasks []Task, applications []Application) *StaticCatalog {
	c := &StaticCatalog{
		tasks:        make(map[string]*Task, len(tasks)),
		applications: applications,
	}
	for i := range tasks {
		t := tasks[i]
		c.tasks[t.Name] = &t
	}
	return c
}

// LoadStaticCatalog reads a YAML document with top-level `tasks` and
// `applications` lists.
func LoadStaticCatalog(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var f staticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	return NewStaticCatalog(f.Tasks, f.Applications), nil
}

func (c *StaticCatalog) ResolveTask(_ context.Context, name string) (*Task, error) {
	t, ok := c.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return t.Clone(), nil
}

func (c *StaticCatalog) ResolveApplicationsByType(_ context.Context, appType string) ([]Application, error) {
	var out []Application
	for _, app := range c.applications {
		if app.AppType == appType {
			out = append(out, app)
		}
	}
	return out, nil
}
