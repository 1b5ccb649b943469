// Package catalog resolves task and application definitions from the
// external task catalog. Rules reference tasks by name; the catalog supplies
// their declared inputs, outputs and application tags.
package catalog

import (
	"context"
	"errors"
	"slices"
)

// ErrTaskNotFound is returned when the catalog has no task with the
// requested name.
var ErrTaskNotFound = errors.New("task not found in catalog")

// TaskInput is an input declared by a catalog task.
type TaskInput struct {
	Name          string   `json:"name" yaml:"name"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	DataType      string   `json:"dataType" yaml:"dataType"`
	DefaultValue  string   `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Required      bool     `json:"required" yaml:"required"`
	AllowedValues []string `json:"allowedValues,omitempty" yaml:"allowedValues,omitempty"`
	TemplateFile  string   `json:"templateFile,omitempty" yaml:"templateFile,omitempty"`
	Format        string   `json:"format,omitempty" yaml:"format,omitempty"`
}

// TaskOutput is an output declared by a catalog task.
type TaskOutput struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	DataType    string `json:"dataType" yaml:"dataType"`
}

// Task is a catalog task definition.
type Task struct {
	Name            string              `json:"name" yaml:"name"`
	DisplayName     string              `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Description     string              `json:"description,omitempty" yaml:"description,omitempty"`
	Type            string              `json:"type,omitempty" yaml:"type,omitempty"`
	ApplicationType string              `json:"applicationType,omitempty" yaml:"applicationType,omitempty"`
	Inputs          []TaskInput         `json:"inputs" yaml:"inputs"`
	Outputs         []TaskOutput        `json:"outputs" yaml:"outputs"`
	AppTags         map[string][]string `json:"appTags,omitempty" yaml:"appTags,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	cp := *t
	if t.Inputs != nil {
		cp.Inputs = make([]TaskInput, len(t.Inputs))
		for i, in := range t.Inputs {
			in.AllowedValues = slices.Clone(in.AllowedValues)
			cp.Inputs[i] = in
		}
	}
	cp.Outputs = slices.Clone(t.Outputs)
	if t.AppTags != nil {
		cp.AppTags = make(map[string][]string, len(t.AppTags))
		for k, v := range t.AppTags {
			cp.AppTags[k] = slices.Clone(v)
		}
	}
	return &cp
}

// Input returns the declared input with the given name.
func (t *Task) Input(name string) (TaskInput, bool) {
	for _, in := range t.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return TaskInput{}, false
}

// HasOutput reports whether the task declares an output with the given name.
func (t *Task) HasOutput(name string) bool {
	for _, out := range t.Outputs {
		if out.Name == name {
			return true
		}
	}
	return false
}

// Application is an application class registered in the catalog.
type Application struct {
	Name                 string `json:"name" yaml:"name"`
	ApplicationClassName string `json:"applicationClassName" yaml:"applicationClassName"`
	AppType              string `json:"appType" yaml:"appType"`
}

// Catalog resolves tasks and applications. Implementations must be safe for
// concurrent use.
type Catalog interface {
	// ResolveTask returns the task with the given name or ErrTaskNotFound.
	ResolveTask(ctx context.Context, name string) (*Task, error)

	// ResolveApplicationsByType returns the applications registered for an
	// application type. An empty result is not an error.
	ResolveApplicationsByType(ctx context.Context, appType string) ([]Application, error)
}
